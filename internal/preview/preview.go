package preview

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/slidetran/internal/document"
	"github.com/valpere/slidetran/internal/pptx"
	"github.com/valpere/slidetran/internal/store"
)

// ErrUnavailable is returned when no preview can be produced, typically
// because the document or slide does not exist.
var ErrUnavailable = errors.New("preview unavailable")

// maxCachedPreviews bounds the in-memory cache.
const maxCachedPreviews = 20

type cacheEntry struct {
	modTime time.Time
	png     []byte
}

// Service renders and caches slide previews for documents in the output
// store. Cache entries are keyed by filename and slide and validated
// against the file's modification time, so applied edits invalidate stale
// images automatically.
type Service struct {
	store    *store.Store
	renderer Renderer

	mu    sync.Mutex
	cache map[string]*cacheEntry
	order []string // insertion order for eviction
}

func NewService(st *store.Store, renderer Renderer) *Service {
	if renderer == nil {
		renderer = NewTextRenderer()
	}
	return &Service{
		store:    st,
		renderer: renderer,
		cache:    make(map[string]*cacheEntry),
	}
}

// Slide returns the PNG preview of slide (1-based) of a translated
// document.
func (s *Service) Slide(filename string, slide int) ([]byte, error) {
	modTime, err := s.store.OutputInfo(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, filename)
	}

	key := fmt.Sprintf("%s#%d", filename, slide)
	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && entry.modTime.Equal(modTime) {
		png := entry.png
		s.mu.Unlock()
		return png, nil
	}
	s.mu.Unlock()

	png, err := s.render(filename, slide)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.cache[key]; !exists {
		s.order = append(s.order, key)
		if len(s.order) > maxCachedPreviews {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.cache, oldest)
		}
	}
	s.cache[key] = &cacheEntry{modTime: modTime, png: png}
	s.mu.Unlock()

	return png, nil
}

// Invalidate drops all cached previews of one document.
func (s *Service) Invalidate(filename string) {
	prefix := filename + "#"
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, key := range s.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.cache, key)
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
}

// SlideWithEdits renders slide (1-based) with edits applied to an
// in-memory copy of the document, so the editor can preview unsaved
// changes. Nothing is persisted and the cache is left alone. Edits whose
// unit id does not resolve are ignored.
func (s *Service) SlideWithEdits(filename string, slide int, edits map[string]string) ([]byte, error) {
	doc, content, err := s.load(filename)
	if err != nil {
		return nil, err
	}

	applicable := make(map[string]string)
	for id, text := range edits {
		if u := content.Lookup(id); u != nil && u.OriginalText != text {
			applicable[id] = text
		}
	}
	if len(applicable) > 0 {
		if err := doc.ReplaceTexts(applicable); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if content, err = doc.Extract(filename); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, filename)
		}
	}
	return s.renderSlide(content, filename, slide)
}

func (s *Service) render(filename string, slide int) ([]byte, error) {
	_, content, err := s.load(filename)
	if err != nil {
		return nil, err
	}
	return s.renderSlide(content, filename, slide)
}

func (s *Service) load(filename string) (*pptx.Document, *document.Content, error) {
	data, err := s.store.ReadOutput(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnavailable, filename)
	}
	doc, err := pptx.New(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s is not a valid document", ErrUnavailable, filename)
	}
	content, err := doc.Extract(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnavailable, filename)
	}
	return doc, content, nil
}

func (s *Service) renderSlide(content *document.Content, filename string, slide int) ([]byte, error) {
	if slide < 1 || slide > content.TotalSlides {
		return nil, fmt.Errorf("%w: slide %d of %s", ErrUnavailable, slide, filename)
	}
	for _, sc := range content.Slides {
		if sc.SlideNumber == slide {
			return s.renderer.RenderSlide(sc, content.TotalSlides)
		}
	}
	// Slide exists but holds no text frames.
	return s.renderer.RenderSlide(document.SlideContent{SlideNumber: slide}, content.TotalSlides)
}
