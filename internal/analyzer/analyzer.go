package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lonardonifabio/tech-documents/internal/aggregator"
	"github.com/lonardonifabio/tech-documents/internal/chunker"
	"github.com/lonardonifabio/tech-documents/internal/config"
	"github.com/lonardonifabio/tech-documents/internal/generator"
	"github.com/lonardonifabio/tech-documents/internal/parser"
	"github.com/lonardonifabio/tech-documents/internal/validator"
	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// Analysis methods, from best to worst evidence
const (
	MethodMultiPass  = "multi-pass"
	MethodSingleShot = "single-shot"
	MethodHeuristic  = "heuristic"
)

// SingleShotConfidence is the confidence of a record recovered by a fallback prompt
const SingleShotConfidence = 0.25

// Config tunes the analyzer
type Config struct {
	Options generator.Options

	// FallbackOptions are used for the single-shot prompts
	FallbackOptions generator.Options

	MaxContentChars      int // chunk text sent with each pass
	FallbackContentChars int // document text sent with a fallback prompt
	PassConcurrency      int
	CallTimeout          time.Duration

	ChunkSize int
	Overlap   int
	MaxChunks int

	Passes    []Pass
	Fallbacks []string
}

// DefaultConfig returns the analyzer defaults
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom derives the analyzer settings from the application configuration
func ConfigFrom(c config.Config) Config {
	opts := generator.Options{
		Temperature: c.Generation.Temperature,
		TopP:        c.Generation.TopP,
		MaxTokens:   c.Generation.MaxTokens,
		Stop:        c.Generation.Stop,
	}
	return Config{
		Options: opts,
		FallbackOptions: generator.Options{
			Temperature: 0,
			TopP:        0.8,
			MaxTokens:   300,
			Stop:        c.Generation.Stop,
		},
		MaxContentChars:      c.Generation.MaxContentChars,
		FallbackContentChars: 800,
		PassConcurrency:      c.Pipeline.PassConcurrency,
		CallTimeout:          c.Service.Timeout.Duration,
		ChunkSize:            c.Chunking.ChunkSize,
		Overlap:              c.Chunking.Overlap,
		MaxChunks:            c.Chunking.MaxChunks,
		Passes:               DefaultPasses(),
		Fallbacks:            DefaultFallbacks(),
	}
}

// Result is the analysis of one document before validation
type Result struct {
	Analysis   types.Analysis
	Confidence float64
	Method     string
	Chunks     int

	SuccessfulPasses int
	AttemptedPasses  int
}

// Analyzer runs the multi-pass analysis of documents
type Analyzer struct {
	gen     generator.Generator
	parser  *parser.Parser
	chunker *chunker.Chunker
	cfg     Config
	logger  *slog.Logger
}

// New creates an analyzer. A nil generator makes every analysis heuristic.
func New(gen generator.Generator, p *parser.Parser, cfg Config, logger *slog.Logger) *Analyzer {
	if p == nil {
		p = parser.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Passes == nil {
		cfg.Passes = DefaultPasses()
	}
	if cfg.PassConcurrency <= 0 {
		cfg.PassConcurrency = len(cfg.Passes)
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 1500
	}
	if cfg.FallbackContentChars <= 0 {
		cfg.FallbackContentChars = 800
	}

	var opts []chunker.Option
	if cfg.ChunkSize > 0 {
		opts = append(opts, chunker.WithChunkSize(cfg.ChunkSize))
	}
	if cfg.Overlap > 0 {
		opts = append(opts, chunker.WithOverlap(cfg.Overlap))
	}

	return &Analyzer{
		gen:     gen,
		parser:  p,
		chunker: chunker.New(opts...),
		cfg:     cfg,
		logger:  logger,
	}
}

// AnalyzeChunk runs every pass over the chunk and merges the parsed results.
// Passes run concurrently; a failed or unparseable pass contributes no fields
// but still counts toward the confidence denominator.
func (a *Analyzer) AnalyzeChunk(ctx context.Context, chunk types.DocumentChunk) types.ChunkAnalysis {
	content := capRunes(chunk.Content, a.cfg.MaxContentChars)
	results := make([]types.PassResult, len(a.cfg.Passes))

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.PassConcurrency)
	for i, pass := range a.cfg.Passes {
		g.Go(func() error {
			results[i] = a.runPass(ctx, pass.Name, render(pass.Template, content, ""), a.cfg.Options)
			return nil
		})
	}
	_ = g.Wait()

	ca := types.ChunkAnalysis{
		ChunkIndex: chunk.Index,
		ChunkID:    chunk.ID,
		Passes:     results,
	}
	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
			ca.Analysis.Fill(r.Analysis)
		}
	}
	if len(results) > 0 {
		ca.Confidence = float64(ok) / float64(len(results))
	}
	ca.Analysis.Normalize()

	a.logger.Debug("chunk analyzed",
		"chunk", chunk.Index, "id", chunk.ID, "passes_ok", ok, "passes", len(results))
	return ca
}

// runPass performs one prompt/response cycle bounded by the per-call timeout
func (a *Analyzer) runPass(ctx context.Context, name, prompt string, opts generator.Options) types.PassResult {
	res := types.PassResult{Pass: name}

	callCtx := ctx
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}

	raw, err := a.gen.Generate(callCtx, prompt, opts)
	if err != nil {
		res.Err = err
		a.logger.Debug("pass failed", "pass", name, "error", err)
		return res
	}

	parsed := a.parser.ParseResult(raw)
	if !parsed.OK {
		a.logger.Debug("pass unparseable", "pass", name, "response_len", len(raw))
		return res
	}
	res.OK = true
	res.Strategy = parsed.Strategy
	res.Analysis = parsed.Analysis
	return res
}

// AnalyzeDocument chunks text, analyzes every chunk and aggregates the results.
//
// When no pass over any chunk succeeds, the single-shot fallback prompts are tried
// in order; when those fail too, or there is no text or no generator, the result
// is heuristic with confidence 0 and validation fills everything from the filename.
// Only cancellation of ctx is reported as an error.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, text, filename string) (*Result, error) {
	if strings.TrimSpace(text) == "" || a.gen == nil {
		return a.heuristic(filename), nil
	}

	chunks := a.chunker.Chunk(text, a.cfg.MaxChunks)
	a.logger.Debug("document chunked", "file", filename, "chunks", len(chunks))

	analyses := make([]types.ChunkAnalysis, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		analyses = append(analyses, a.AnalyzeChunk(ctx, chunk))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := aggregator.Aggregate(analyses)
	res := &Result{
		Analysis:         agg.Analysis,
		Confidence:       agg.Confidence,
		Method:           MethodMultiPass,
		Chunks:           agg.Chunks,
		SuccessfulPasses: agg.SuccessfulPasses,
		AttemptedPasses:  len(chunks) * len(a.cfg.Passes),
	}
	if agg.SuccessfulPasses > 0 {
		return res, nil
	}

	a.logger.Info("multi-pass analysis failed, trying single-shot prompts", "file", filename)
	if analysis, ok := a.singleShot(ctx, text, filename); ok {
		res.Analysis = analysis
		res.Confidence = SingleShotConfidence
		res.Method = MethodSingleShot
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := a.heuristic(filename)
	h.Chunks = res.Chunks
	h.AttemptedPasses = res.AttemptedPasses
	return h, nil
}

func (a *Analyzer) singleShot(ctx context.Context, text, filename string) (types.Analysis, bool) {
	content := capRunes(text, a.cfg.FallbackContentChars)
	for i, tmpl := range a.cfg.Fallbacks {
		if ctx.Err() != nil {
			return types.Analysis{}, false
		}
		res := a.runPass(ctx, "single_shot", render(tmpl, content, filename), a.cfg.FallbackOptions)
		if res.OK {
			a.logger.Debug("single-shot prompt succeeded", "file", filename, "attempt", i+1, "strategy", res.Strategy)
			return res.Analysis, true
		}
	}
	return types.Analysis{}, false
}

func (a *Analyzer) heuristic(filename string) *Result {
	return &Result{
		Analysis: validator.FromFilename(filename),
		Method:   MethodHeuristic,
	}
}

// capRunes cuts s to at most n runes
func capRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
