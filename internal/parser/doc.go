// Package parser extracts structured document fields from free-form text-generation responses.
//
// Responses are untrusted: they may wrap JSON in prose, prepend <think> reasoning, use code
// fences, leave trailing commas, or contain no JSON at all. The parser applies an ordered list
// of strategies and returns the first one that recovers at least one known field:
//
//  1. direct   - the trimmed response is a JSON object
//  2. cleaned  - reasoning sections, tags and code fences removed, then decoded
//  3. braces   - the span from the first '{' to the last '}' is decoded
//  4. repaired - the brace span with trailing commas and typographic quotes fixed
//  5. fields   - per-field label patterns ("title": "...", title: "...", Title: ...);
//     accepted only when at least MinRegexFields distinct fields are found
//
// Each strategy is a plain function from text to a field map, so strategies can be tested
// in isolation and the cascade can be reordered with WithStrategies.
//
// # Usage
//
//	p := parser.New()
//	analysis, ok := p.Parse(response)
//	if !ok {
//	    // no usable information: fall back to heuristics
//	}
//
// A miss is not an error. Callers treat it as "no usable information" and fall back to
// heuristic defaults.
//
// # Coercion
//
// Decoded values are coerced into types.Analysis: a bare string becomes a one-item list,
// categories and difficulties are mapped onto their enums (unknown values are dropped),
// nested "technical_details" and "business_context" objects are flattened, and template
// placeholders echoed by the model ("keyword1", "document title or main topic") are ignored.
package parser
