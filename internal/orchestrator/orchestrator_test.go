package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/valpere/slidetran/internal/enhancer"
	"github.com/valpere/slidetran/internal/pptx"
	"github.com/valpere/slidetran/internal/pptx/pptxtest"
	"github.com/valpere/slidetran/internal/store"
	"github.com/valpere/slidetran/internal/translator"
)

type mockService struct {
	name        string
	limits      translator.BatchLimits
	mu          sync.Mutex
	calls       [][]string
	translateFn func(texts []string, sourceLang, targetLang string) ([]translator.Result, error)
}

func (m *mockService) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockService) Limits() translator.BatchLimits {
	if m.limits.MaxTexts == 0 && m.limits.MaxChars == 0 {
		return translator.BatchLimits{MaxTexts: 100, MaxChars: 50000}
	}
	return m.limits
}

func (m *mockService) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]translator.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, texts)
	m.mu.Unlock()
	if m.translateFn != nil {
		return m.translateFn(texts, sourceLang, targetLang)
	}
	results := make([]translator.Result, len(texts))
	for i, t := range texts {
		results[i] = translator.Result{Text: strings.ToUpper(targetLang) + ":" + t}
	}
	return results, nil
}

type mockEnhancer struct {
	enhanceFn func(req enhancer.Request) (string, error)
}

func (m *mockEnhancer) Name() string { return "mock-llm" }

func (m *mockEnhancer) Enhance(ctx context.Context, req enhancer.Request) (string, error) {
	return m.enhanceFn(req)
}

type mockMemory struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMockMemory() *mockMemory {
	return &mockMemory{entries: make(map[string]string)}
}

func (m *mockMemory) key(src, sl, tl string) string { return src + "|" + sl + "|" + tl }

func (m *mockMemory) Get(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.entries[m.key(sourceText, sourceLang, targetLang)]
	return text, ok, nil
}

func (m *mockMemory) Put(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string, enhanced bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.key(sourceText, sourceLang, targetLang)] = finalText
	return nil
}

type stubPolicy struct {
	alreadyFn  func(text, lang string) bool
	confirmsFn func(text, lang string) bool
}

func (p *stubPolicy) AlreadyInLanguage(text, lang string) bool {
	if p.alreadyFn == nil {
		return false
	}
	return p.alreadyFn(text, lang)
}

func (p *stubPolicy) Confirms(text, lang string) bool {
	if p.confirmsFn == nil {
		return true
	}
	return p.confirmsFn(text, lang)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "uploads"), filepath.Join(dir, "outputs"), 0)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func uploadSampleDeck(t *testing.T, s *store.Store) string {
	t.Helper()
	if err := os.WriteFile(s.UploadPath("deck.pptx"), pptxtest.SampleDeck(), 0o644); err != nil {
		t.Fatalf("writing sample deck: %v", err)
	}
	return "deck.pptx"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outputTexts(t *testing.T, s *store.Store, filename string) map[string]string {
	t.Helper()
	data, err := s.ReadOutput(filename)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	doc, err := pptx.New(data)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	content, err := doc.Extract(filename)
	if err != nil {
		t.Fatalf("extracting output: %v", err)
	}
	texts := make(map[string]string)
	for _, u := range content.Units() {
		texts[u.ID] = u.OriginalText
	}
	return texts
}

func TestTranslate_FullDeck(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	svc := &mockService{}

	o := New(svc, s, DefaultConfig(), discardLogger())
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.TextFramesTranslated != 5 {
		t.Errorf("TextFramesTranslated = %d, want 5", stats.TextFramesTranslated)
	}
	if stats.SlidesTranslated != 3 {
		t.Errorf("SlidesTranslated = %d, want 3", stats.SlidesTranslated)
	}
	if stats.Failed != 0 || stats.Skipped != 0 {
		t.Errorf("unexpected failed=%d skipped=%d", stats.Failed, stats.Skipped)
	}
	if stats.OutputFilename != "deck_es.pptx" {
		t.Errorf("OutputFilename = %q", stats.OutputFilename)
	}
	if !stats.Success {
		t.Error("Success not set on a finished job")
	}
	if stats.TargetLanguage != "es" {
		t.Errorf("TargetLanguage = %q, want es", stats.TargetLanguage)
	}

	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_0_shape_0"] != "ES:Hello world" {
		t.Errorf("slide_0_shape_0 = %q", texts["slide_0_shape_0"])
	}
	if texts["slide_2_shape_0"] != "ES:Closing remarks" {
		t.Errorf("slide_2_shape_0 = %q", texts["slide_2_shape_0"])
	}
}

func TestTranslate_RequiresTargetLanguage(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)

	o := New(&mockService{}, s, DefaultConfig(), discardLogger())
	if _, err := o.Translate(context.Background(), Job{Filename: name}); err == nil {
		t.Fatal("expected error for missing target language")
	}
}

func TestTranslate_MissingFile(t *testing.T) {
	s := newTestStore(t)

	o := New(&mockService{}, s, DefaultConfig(), discardLogger())
	if _, err := o.Translate(context.Background(), Job{Filename: "absent.pptx", TargetLang: "es"}); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestTranslate_PartialBatchFailure(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	svc := &mockService{
		limits: translator.BatchLimits{MaxTexts: 1, MaxChars: 50000},
		translateFn: func(texts []string, _, targetLang string) ([]translator.Result, error) {
			if texts[0] == "Cell one" {
				return nil, errors.New("transient provider error")
			}
			return []translator.Result{{Text: "ES:" + texts[0]}}, nil
		},
	}

	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	o := New(svc, s, cfg, discardLogger())
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.TextFramesTranslated != 4 {
		t.Errorf("TextFramesTranslated = %d, want 4", stats.TextFramesTranslated)
	}

	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_0_shape_1"] != "Cell one" {
		t.Errorf("failed frame = %q, want original kept", texts["slide_0_shape_1"])
	}
	if texts["slide_0_shape_2"] != "ES:Cell two" {
		t.Errorf("sibling frame = %q, want translated", texts["slide_0_shape_2"])
	}
}

func TestTranslate_AllBatchesFail(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	svc := &mockService{
		translateFn: func([]string, string, string) ([]translator.Result, error) {
			return nil, errors.New("provider down")
		},
	}

	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	o := New(svc, s, cfg, discardLogger())
	_, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if s.OutputExists("deck_es.pptx") {
		t.Error("output written despite total failure")
	}
}

func TestTranslate_RetriesTransientFailure(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)

	var attempts int
	var mu sync.Mutex
	svc := &mockService{
		translateFn: func(texts []string, _, _ string) ([]translator.Result, error) {
			mu.Lock()
			attempts++
			first := attempts == 1
			mu.Unlock()
			if first {
				return nil, errors.New("transient")
			}
			results := make([]translator.Result, len(texts))
			for i, txt := range texts {
				results[i] = translator.Result{Text: "ES:" + txt}
			}
			return results, nil
		},
	}

	cfg := DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.RetryDelay = 0
	o := New(svc, s, cfg, discardLogger())
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d after retry, want 0", stats.Failed)
	}
}

func TestTranslate_SkipsTargetLanguageText(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	svc := &mockService{}
	policy := &stubPolicy{alreadyFn: func(text, lang string) bool { return true }}

	o := New(svc, s, DefaultConfig(), discardLogger()).WithPolicy(policy)
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.Skipped != 5 {
		t.Errorf("Skipped = %d, want 5", stats.Skipped)
	}
	if stats.TextFramesTranslated != 0 {
		t.Errorf("TextFramesTranslated = %d, want 0", stats.TextFramesTranslated)
	}
	if len(svc.calls) != 0 {
		t.Errorf("provider called %d times for fully skipped deck", len(svc.calls))
	}

	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_0_shape_0"] != "Hello world" {
		t.Errorf("skipped frame = %q, want untouched", texts["slide_0_shape_0"])
	}
}

func TestTranslate_MemoryHitsSkipProvider(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	svc := &mockService{}
	mem := newMockMemory()
	mem.Put(context.Background(), "Hello world", "", "es", "Hola mundo", "mock", false)

	o := New(svc, s, DefaultConfig(), discardLogger()).WithMemory(mem)
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.MemoryHits != 1 {
		t.Errorf("MemoryHits = %d, want 1", stats.MemoryHits)
	}
	for _, call := range svc.calls {
		for _, text := range call {
			if text == "Hello world" {
				t.Error("remembered text still sent to provider")
			}
		}
	}

	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_0_shape_0"] != "Hola mundo" {
		t.Errorf("slide_0_shape_0 = %q, want remembered translation", texts["slide_0_shape_0"])
	}
}

func TestTranslate_StoresResultsInMemory(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	mem := newMockMemory()

	o := New(&mockService{}, s, DefaultConfig(), discardLogger()).WithMemory(mem)
	if _, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"}); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if got, ok, _ := mem.Get(context.Background(), "Closing remarks", "", "es"); !ok || got != "ES:Closing remarks" {
		t.Errorf("memory entry = %q found=%v", got, ok)
	}
}

func TestTranslate_EnhancementApplied(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	enh := &mockEnhancer{enhanceFn: func(req enhancer.Request) (string, error) {
		return req.DraftText + " (polished)", nil
	}}

	o := New(&mockService{}, s, DefaultConfig(), discardLogger()).WithEnhancer(enh)
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es", UseLLM: true})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.Enhanced != 5 {
		t.Errorf("Enhanced = %d, want 5", stats.Enhanced)
	}
	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_1_shape_0"] != "ES:Grouped text (polished)" {
		t.Errorf("slide_1_shape_0 = %q", texts["slide_1_shape_0"])
	}
}

func TestTranslate_EnhancementFallsBackOnError(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	enh := &mockEnhancer{enhanceFn: func(req enhancer.Request) (string, error) {
		return "", errors.New("model overloaded")
	}}

	o := New(&mockService{}, s, DefaultConfig(), discardLogger()).WithEnhancer(enh)
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es", UseLLM: true})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.Enhanced != 0 {
		t.Errorf("Enhanced = %d, want 0", stats.Enhanced)
	}
	if stats.EnhancementFallbacks != 5 {
		t.Errorf("EnhancementFallbacks = %d, want 5", stats.EnhancementFallbacks)
	}
	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_0_shape_0"] != "ES:Hello world" {
		t.Errorf("slide_0_shape_0 = %q, want machine draft kept", texts["slide_0_shape_0"])
	}
}

func TestTranslate_EnhancementRejectedByPolicy(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	enh := &mockEnhancer{enhanceFn: func(req enhancer.Request) (string, error) {
		return "completely wrong language", nil
	}}
	policy := &stubPolicy{confirmsFn: func(text, lang string) bool { return false }}

	o := New(&mockService{}, s, DefaultConfig(), discardLogger()).WithEnhancer(enh).WithPolicy(policy)
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es", UseLLM: true})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.EnhancementFallbacks != 5 {
		t.Errorf("EnhancementFallbacks = %d, want 5", stats.EnhancementFallbacks)
	}
	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_0_shape_0"] != "ES:Hello world" {
		t.Errorf("slide_0_shape_0 = %q, want draft kept", texts["slide_0_shape_0"])
	}
}

func TestTranslate_ChunksOversizedFrames(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	svc := &mockService{limits: translator.BatchLimits{MaxTexts: 100, MaxChars: 12}}

	o := New(svc, s, DefaultConfig(), discardLogger())
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	// "Closing remarks" exceeds 12 runes and is split at the word boundary,
	// translated chunk by chunk, and rejoined with the space the split
	// consumed.
	texts := outputTexts(t, s, stats.OutputFilename)
	if texts["slide_2_shape_0"] != "ES:Closing ES:remarks" {
		t.Errorf("slide_2_shape_0 = %q", texts["slide_2_shape_0"])
	}
}

func TestTranslate_ChunksSpanningBatchesFailTogether(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)
	// One chunk per batch, so the two chunks of "Closing remarks" travel in
	// separate batches.
	svc := &mockService{
		limits: translator.BatchLimits{MaxTexts: 1, MaxChars: 12},
		translateFn: func(texts []string, _, _ string) ([]translator.Result, error) {
			if texts[0] == "remarks" {
				return nil, errors.New("transient provider error")
			}
			return []translator.Result{{Text: "ES:" + texts[0]}}, nil
		},
	}

	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	o := New(svc, s, cfg, discardLogger())
	stats, err := o.Translate(context.Background(), Job{Filename: name, TargetLang: "es"})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	texts := outputTexts(t, s, stats.OutputFilename)
	// A unit with one failed chunk keeps its original text entirely.
	if texts["slide_2_shape_0"] != "Closing remarks" {
		t.Errorf("slide_2_shape_0 = %q, want original kept", texts["slide_2_shape_0"])
	}
	if texts["slide_0_shape_1"] != "ES:Cell one" {
		t.Errorf("slide_0_shape_1 = %q, want translated", texts["slide_0_shape_1"])
	}
}

func TestTranslate_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	name := uploadSampleDeck(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(&mockService{}, s, DefaultConfig(), discardLogger())
	if _, err := o.Translate(ctx, Job{Filename: name, TargetLang: "es"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestPartition(t *testing.T) {
	mkItems := func(texts ...string) []batchItem {
		items := make([]batchItem, len(texts))
		for i, txt := range texts {
			items[i] = batchItem{pending: &pending{chunks: []string{txt}}, chunkIdx: 0}
		}
		return items
	}

	tests := []struct {
		name   string
		texts  []string
		limits translator.BatchLimits
		want   int
	}{
		{"all in one", []string{"a", "b", "c"}, translator.BatchLimits{MaxTexts: 10, MaxChars: 100}, 1},
		{"split by count", []string{"a", "b", "c"}, translator.BatchLimits{MaxTexts: 2, MaxChars: 100}, 2},
		{"split by chars", []string{"aaaa", "bbbb", "cc"}, translator.BatchLimits{MaxTexts: 10, MaxChars: 8}, 2},
		{"no limits", []string{"a", "b"}, translator.BatchLimits{}, 1},
		{"empty", nil, translator.BatchLimits{MaxTexts: 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := partition(mkItems(tt.texts...), tt.limits)
			if len(got) != tt.want {
				t.Errorf("partition produced %d batches, want %d", len(got), tt.want)
			}
			var total int
			for _, b := range got {
				total += len(b)
			}
			if total != len(tt.texts) {
				t.Errorf("items lost: %d != %d", total, len(tt.texts))
			}
		})
	}
}
