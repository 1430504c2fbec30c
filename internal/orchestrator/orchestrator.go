// Package orchestrator drives a presentation translation job end to end:
// extract text frames, consult the translation memory, batch-translate
// through a provider, optionally refine drafts with a language model, and
// write the translated document back out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/valpere/slidetran/internal/chunker"
	"github.com/valpere/slidetran/internal/document"
	"github.com/valpere/slidetran/internal/enhancer"
	"github.com/valpere/slidetran/internal/pptx"
	"github.com/valpere/slidetran/internal/store"
	"github.com/valpere/slidetran/internal/translator"
)

// ErrServiceUnavailable is returned when every translation batch failed,
// meaning the provider is down or rejecting the account.
var ErrServiceUnavailable = errors.New("translation service unavailable")

type Config struct {
	MaxConcurrentBatches      int
	MaxConcurrentEnhancements int
	MaxAttempts               int
	RetryDelay                time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentBatches:      6,
		MaxConcurrentEnhancements: 4,
		MaxAttempts:               2,
		RetryDelay:                500 * time.Millisecond,
	}
}

// Job describes one translation request.
type Job struct {
	Filename   string // uploaded document name
	SourceLang string // empty lets the provider detect
	TargetLang string
	UseLLM     bool
	LLMModel   string

	// PreserveFormatting is accepted for API compatibility. Formatting is
	// always preserved; write-back only ever touches text content.
	PreserveFormatting bool
}

// Stats summarises a finished job. ProcessingTime is in seconds.
type Stats struct {
	Success              bool    `json:"success"`
	JobID                string  `json:"job_id"`
	OutputFilename       string  `json:"output_filename"`
	SlidesTranslated     int     `json:"slides_translated"`
	TextFramesTranslated int     `json:"text_frames_translated"`
	TargetLanguage       string  `json:"target_language"`
	Skipped              int     `json:"skipped"`
	MemoryHits           int     `json:"memory_hits"`
	Failed               int     `json:"failed"`
	Enhanced             int     `json:"enhanced"`
	EnhancementFallbacks int     `json:"enhancement_fallbacks"`
	ProcessingTime       float64 `json:"processing_time"`
}

// LanguagePolicy decides when text already matches the target language and
// whether refined output still is the target language.
type LanguagePolicy interface {
	AlreadyInLanguage(text, lang string) bool
	Confirms(text, lang string) bool
}

// TranslationMemory remembers finished translations across jobs.
type TranslationMemory interface {
	Get(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error)
	Put(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string, enhanced bool) error
}

type Orchestrator struct {
	service  translator.Service
	enhancer enhancer.Enhancer // nil disables refinement
	memory   TranslationMemory // nil disables the memory
	policy   LanguagePolicy    // nil translates everything
	store    *store.Store
	config   Config
	logger   *slog.Logger
}

func New(service translator.Service, st *store.Store, config Config, logger *slog.Logger) *Orchestrator {
	if config.MaxConcurrentBatches <= 0 {
		config.MaxConcurrentBatches = DefaultConfig().MaxConcurrentBatches
	}
	if config.MaxConcurrentEnhancements <= 0 {
		config.MaxConcurrentEnhancements = DefaultConfig().MaxConcurrentEnhancements
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		service: service,
		store:   st,
		config:  config,
		logger:  logger,
	}
}

// WithEnhancer enables LLM refinement of drafts.
func (o *Orchestrator) WithEnhancer(e enhancer.Enhancer) *Orchestrator {
	o.enhancer = e
	return o
}

// WithMemory enables the translation memory.
func (o *Orchestrator) WithMemory(m TranslationMemory) *Orchestrator {
	o.memory = m
	return o
}

// WithPolicy enables skip-if-already-translated detection.
func (o *Orchestrator) WithPolicy(p LanguagePolicy) *Orchestrator {
	o.policy = p
	return o
}

// pending is one text frame awaiting translation, split into provider-sized
// chunks. Chunk results are rejoined with the recorded separators before
// write-back.
type pending struct {
	unit   *document.TextUnit
	chunks []string
	seps   []string
	drafts []string
	failed bool
}

// Translate runs the full pipeline for job and returns its stats. The
// translated document lands in the output store under
// store.OutputName(job.Filename, job.TargetLang).
func (o *Orchestrator) Translate(ctx context.Context, job Job) (*Stats, error) {
	start := time.Now()
	stats := &Stats{JobID: uuid.NewString()}
	log := o.logger.With("job_id", stats.JobID, "filename", job.Filename, "target", job.TargetLang)

	if job.TargetLang == "" {
		return nil, fmt.Errorf("target language is required")
	}

	doc, err := pptx.Open(o.store.UploadPath(job.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	content, err := doc.Extract(job.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	units := content.Units()
	limits := o.service.Limits()

	// Resolve what we can without the provider.
	var work []*pending
	for _, u := range units {
		if o.policy != nil && o.policy.AlreadyInLanguage(u.OriginalText, job.TargetLang) {
			u.TranslatedText = u.OriginalText
			stats.Skipped++
			continue
		}
		if o.memory != nil {
			if remembered, ok, err := o.memory.Get(ctx, u.OriginalText, job.SourceLang, job.TargetLang); err != nil {
				log.Warn("memory lookup failed", "unit", u.ID, "error", err)
			} else if ok {
				u.TranslatedText = remembered
				stats.MemoryHits++
				continue
			}
		}
		p := &pending{unit: u}
		p.chunks, p.seps = chunker.Chunk(u.OriginalText, limits.MaxChars)
		p.drafts = make([]string, len(p.chunks))
		work = append(work, p)
	}

	if len(work) > 0 {
		if err := o.translatePending(ctx, job, work, limits, stats, log); err != nil {
			return nil, err
		}
	}

	if job.UseLLM && o.enhancer != nil {
		o.enhanceDrafts(ctx, job, work, stats, log)
	}

	// Remember successful translations for future jobs.
	if o.memory != nil {
		for _, p := range work {
			if p.failed || p.unit.TranslatedText == "" {
				continue
			}
			enhanced := job.UseLLM && o.enhancer != nil
			if err := o.memory.Put(ctx, p.unit.OriginalText, job.SourceLang, job.TargetLang,
				p.unit.TranslatedText, o.service.Name(), enhanced); err != nil {
				log.Warn("memory store failed", "unit", p.unit.ID, "error", err)
			}
		}
	}

	replacements := make(map[string]string)
	slides := make(map[int]bool)
	for _, u := range units {
		// Untranslated frames and frames already in the target language keep
		// their original runs untouched.
		if u.TranslatedText == "" || u.TranslatedText == u.OriginalText {
			continue
		}
		replacements[u.ID] = u.TranslatedText
		slides[u.SlideIndex] = true
	}
	if err := doc.ReplaceTexts(replacements); err != nil {
		return nil, fmt.Errorf("failed to write translations: %w", err)
	}

	stats.OutputFilename = store.OutputName(job.Filename, job.TargetLang)
	out, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := o.store.WriteOutput(stats.OutputFilename, out); err != nil {
		return nil, fmt.Errorf("failed to save output: %w", err)
	}

	elapsed := time.Since(start)
	stats.Success = true
	stats.SlidesTranslated = len(slides)
	stats.TextFramesTranslated = len(replacements)
	stats.TargetLanguage = job.TargetLang
	stats.ProcessingTime = elapsed.Seconds()
	log.Info("translation job finished",
		"output", stats.OutputFilename,
		"frames", stats.TextFramesTranslated,
		"skipped", stats.Skipped,
		"memory_hits", stats.MemoryHits,
		"failed", stats.Failed,
		"elapsed", elapsed)
	return stats, nil
}

// batchItem addresses one chunk of one pending unit.
type batchItem struct {
	pending  *pending
	chunkIdx int
}

// translatePending batches all chunks through the provider. Individual batch
// failures degrade the affected units to their original text; only a total
// provider failure aborts the job.
func (o *Orchestrator) translatePending(ctx context.Context, job Job, work []*pending, limits translator.BatchLimits, stats *Stats, log *slog.Logger) error {
	var items []batchItem
	for _, p := range work {
		for i := range p.chunks {
			items = append(items, batchItem{pending: p, chunkIdx: i})
		}
	}

	batches := partition(items, limits)
	failures := make([]bool, len(batches))

	var g errgroup.Group
	g.SetLimit(o.config.MaxConcurrentBatches)
	for bi, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, it := range batch {
				texts[i] = it.pending.chunks[it.chunkIdx]
			}

			results, err := o.translateWithRetry(ctx, texts, job.SourceLang, job.TargetLang)
			if err != nil {
				log.Warn("batch translation failed", "batch", bi, "size", len(texts), "error", err)
				failures[bi] = true
				return nil
			}
			for i, it := range batch {
				it.pending.drafts[it.chunkIdx] = results[i].Text
			}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	// Fold batch failures into their pendings only after every goroutine is
	// done; a unit whose chunks span two batches is touched by both.
	allFailed := len(batches) > 0
	for bi, f := range failures {
		if !f {
			allFailed = false
			continue
		}
		for _, it := range batches[bi] {
			it.pending.failed = true
		}
	}
	if allFailed {
		return fmt.Errorf("%w: all %d batches failed", ErrServiceUnavailable, len(batches))
	}

	for _, p := range work {
		if p.failed {
			stats.Failed++
			continue
		}
		p.unit.TranslatedText = chunker.Join(p.drafts, p.seps)
	}
	return nil
}

func (o *Orchestrator) translateWithRetry(ctx context.Context, texts []string, sourceLang, targetLang string) ([]translator.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(o.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		results, err := o.service.TranslateBatch(ctx, texts, sourceLang, targetLang)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// enhanceDrafts refines successfully translated units. Failures fall back
// to the machine draft and never fail the job.
func (o *Orchestrator) enhanceDrafts(ctx context.Context, job Job, work []*pending, stats *Stats, log *slog.Logger) {
	sem := semaphore.NewWeighted(int64(o.config.MaxConcurrentEnhancements))
	type outcome struct{ enhanced, fallback bool }
	outcomes := make([]outcome, len(work))

	var g errgroup.Group
	for i, p := range work {
		if p.failed || p.unit.TranslatedText == "" {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			refined, err := o.enhancer.Enhance(ctx, enhancer.Request{
				OriginalText: p.unit.OriginalText,
				DraftText:    p.unit.TranslatedText,
				SourceLang:   job.SourceLang,
				TargetLang:   job.TargetLang,
				Model:        job.LLMModel,
			})
			if err != nil {
				log.Warn("enhancement failed, keeping draft", "unit", p.unit.ID, "error", err)
				outcomes[i].fallback = true
				return nil
			}
			if o.policy != nil && !o.policy.Confirms(refined, job.TargetLang) {
				log.Warn("enhancement drifted from target language, keeping draft", "unit", p.unit.ID)
				outcomes[i].fallback = true
				return nil
			}
			if refined != p.unit.TranslatedText {
				p.unit.TranslatedText = refined
			}
			outcomes[i].enhanced = true
			return nil
		})
	}
	g.Wait()

	for _, oc := range outcomes {
		if oc.enhanced {
			stats.Enhanced++
		}
		if oc.fallback {
			stats.EnhancementFallbacks++
		}
	}
}

// partition splits items into batches respecting the provider's text count
// and character limits. A single chunk is never split further here; chunker
// already sized chunks under MaxChars.
func partition(items []batchItem, limits translator.BatchLimits) [][]batchItem {
	maxTexts := limits.MaxTexts
	if maxTexts <= 0 {
		maxTexts = len(items)
	}

	var batches [][]batchItem
	var current []batchItem
	currentChars := 0
	for _, it := range items {
		n := len([]rune(it.pending.chunks[it.chunkIdx]))
		exceedsChars := limits.MaxChars > 0 && currentChars+n > limits.MaxChars
		if len(current) > 0 && (len(current) >= maxTexts || exceedsChars) {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}
		current = append(current, it)
		currentChars += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
