package parser

import (
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

const (
	// MinRegexFields is the number of distinct fields the field-extraction strategy
	// must recover before its result is accepted
	MinRegexFields = 2
)

// Strategy names, in default cascade order
const (
	StrategyDirect   = "direct"
	StrategyCleaned  = "cleaned"
	StrategyBraces   = "braces"
	StrategyRepaired = "repaired"
	StrategyFields   = "fields"
)

// Strategy extracts raw fields from a response. It reports false when it does not apply.
type Strategy struct {
	Name    string
	Extract func(raw string) (map[string]any, bool)
	// MinFields is the number of recognized fields a result needs to be accepted
	MinFields int
}

// Result is the outcome of a parse
type Result struct {
	Analysis types.Analysis
	Strategy string
	OK       bool
}

// Parser turns free-form service responses into an Analysis by trying strategies in order
type Parser struct {
	strategies []Strategy
}

// Option configures a Parser
type Option func(*Parser)

// WithStrategies replaces the default cascade
func WithStrategies(strategies ...Strategy) Option {
	return func(p *Parser) {
		p.strategies = strategies
	}
}

// New creates a Parser using DefaultStrategies unless overridden
func New(opts ...Option) *Parser {
	p := &Parser{strategies: DefaultStrategies()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultStrategies returns the cascade from strictest to most permissive
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyDirect, Extract: ParseDirect, MinFields: 1},
		{Name: StrategyCleaned, Extract: ParseCleaned, MinFields: 1},
		{Name: StrategyBraces, Extract: ParseBraces, MinFields: 1},
		{Name: StrategyRepaired, Extract: ParseRepaired, MinFields: 1},
		{Name: StrategyFields, Extract: ParseFields, MinFields: MinRegexFields},
	}
}

// Strategies returns the names of the configured strategies in order
func (p *Parser) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name
	}
	return names
}

// Parse returns the analysis from the first strategy that succeeds.
// A miss is reported as false, never as an error.
func (p *Parser) Parse(raw string) (*types.Analysis, bool) {
	res := p.ParseResult(raw)
	if !res.OK {
		return nil, false
	}
	return &res.Analysis, true
}

// ParseResult is Parse with the name of the winning strategy
func (p *Parser) ParseResult(raw string) Result {
	if isBlank(raw) {
		return Result{}
	}
	for _, s := range p.strategies {
		fields, ok := s.Extract(raw)
		if !ok {
			continue
		}
		analysis := ToAnalysis(fields)
		if analysis.FieldCount() < max(s.MinFields, 1) {
			continue
		}
		analysis.Normalize()
		return Result{Analysis: analysis, Strategy: s.Name, OK: true}
	}
	return Result{}
}
