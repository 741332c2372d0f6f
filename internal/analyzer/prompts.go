package analyzer

import "strings"

// Pass names
const (
	PassBasicInfo = "basic_info"
	PassKeywords  = "keywords"
	PassTechnical = "technical"
	PassBusiness  = "business"
)

// Pass is one focused prompt run against every chunk.
// Template placeholders: {content} (capped chunk text) and {filename}.
type Pass struct {
	Name     string
	Template string
}

// DefaultPasses returns the four independent analysis passes
func DefaultPasses() []Pass {
	return []Pass{
		{Name: PassBasicInfo, Template: basicInfoPrompt},
		{Name: PassKeywords, Template: keywordsPrompt},
		{Name: PassTechnical, Template: technicalPrompt},
		{Name: PassBusiness, Template: businessPrompt},
	}
}

// DefaultFallbacks returns single-shot prompts of increasing strictness,
// tried in order when no pass over any chunk could be parsed
func DefaultFallbacks() []string {
	return []string{strictFallbackPrompt, explicitFallbackPrompt, seededFallbackPrompt}
}

// render substitutes the template placeholders
func render(template, content, filename string) string {
	seedTitle := strings.NewReplacer(".pdf", "", "_", " ").Replace(filename)
	return strings.NewReplacer(
		"{content}", content,
		"{filename}", filename,
		"{seed_title}", seedTitle,
		"{excerpt}", capRunes(content, 200),
	).Replace(template)
}

const basicInfoPrompt = `Analyze this document excerpt and extract basic information.
Respond with valid JSON only:
{"title": "document title or main topic", "authors": ["author1", "author2"], "summary": "summarize the document with at least 600 characters", "category": "document category (AI, Machine Learning, Data Science, Analytics, Business, Technology, Research)"}

Document excerpt:
{content}
`

const keywordsPrompt = `Extract keywords and key concepts from this document excerpt.
Respond with valid JSON only:
{"keywords": ["keyword1", "keyword2", "keyword3"], "key_concepts": ["A sentence expressing a concept1", "A sentence expressing a concept2", "A sentence expressing a concept3"]}

Document excerpt:
{content}
`

const technicalPrompt = `Identify technical details from this document excerpt.
Respond with valid JSON only:
{"technologies": ["tech1", "tech2"], "methodologies": ["method1", "method2"], "tools": ["tool1", "tool2"], "complexity_level": "basic/intermediate/advanced"}

Document excerpt:
{content}
`

const businessPrompt = `Extract business context from this document excerpt.
Respond with valid JSON only:
{"industry": "relevant industry", "use_cases": ["use_case1", "use_case2"], "stakeholders": ["stakeholder1", "stakeholder2"], "business_value": "brief description of business value"}

Document excerpt:
{content}
`

const strictFallbackPrompt = `You must respond with ONLY a JSON object. No thinking, no explanations, no other text.

{"title": "document title", "summary": "brief summary", "keywords": ["keyword1", "keyword2"], "category": "Technology", "difficulty": "Intermediate", "authors": [], "content_preview": "preview"}

Document: {filename}
Text: {content}

JSON:`

const explicitFallbackPrompt = `RETURN ONLY JSON. NO OTHER TEXT.

Analyze this document and return this exact JSON structure:
{"title": "title here", "summary": "summary here", "keywords": ["word1", "word2"], "category": "Technology", "difficulty": "Intermediate", "authors": [], "content_preview": "preview here"}

File: {filename}
Content: {content}`

const seededFallbackPrompt = `JSON only:
{"title": "{seed_title}", "summary": "summary of {filename}", "keywords": ["Technology"], "category": "Technology", "difficulty": "Intermediate", "authors": [], "content_preview": "Document content"}

Improve this JSON based on: {excerpt}`
