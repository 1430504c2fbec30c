// Package pptx reads and mutates PowerPoint (.pptx) packages at the byte
// level. A .pptx file is a zip of XML parts; the only parts this package
// ever rewrites are the slide XMLs, and inside those only the character
// content of <a:t> run elements is touched. Every other byte — shape
// geometry, fonts, colors, relationships — passes through untouched, which
// is what guarantees formatting preservation across a translate or edit
// cycle.
package pptx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/valpere/slidetran/internal/document"
)

// ParseError reports a file that is not a readable pptx package. It is
// fatal for the operation that triggered the parse.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("cannot parse %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("cannot parse presentation: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

type part struct {
	name string
	data []byte
}

// Document is an in-memory pptx package. Parts keep their original order so
// a save produces a structurally equivalent zip.
type Document struct {
	parts  []part
	index  map[string]int // part name -> parts position
	slides []int          // parts positions of slide XMLs, presentation order
}

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Open reads a pptx file from disk.
func Open(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &ParseError{Path: filePath, Reason: "cannot read file", Err: err}
	}
	doc, err := New(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = filePath
		}
		return nil, err
	}
	return doc, nil
}

// New parses a pptx package from raw bytes.
func New(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Reason: "not a zip archive", Err: err}
	}

	d := &Document{index: make(map[string]int)}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("cannot open part %s", f.Name), Err: err}
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("cannot read part %s", f.Name), Err: err}
		}
		d.index[f.Name] = len(d.parts)
		d.parts = append(d.parts, part{name: f.Name, data: content})
	}

	if _, ok := d.index["[Content_Types].xml"]; !ok {
		return nil, &ParseError{Reason: "missing [Content_Types].xml, not an OOXML package"}
	}

	if err := d.resolveSlideOrder(); err != nil {
		return nil, err
	}
	if len(d.slides) == 0 {
		return nil, &ParseError{Reason: "package contains no slides"}
	}
	return d, nil
}

// resolveSlideOrder establishes presentation order for the slide parts. The
// authoritative order is the sldIdLst in ppt/presentation.xml resolved
// through the presentation relationships; when either part is missing the
// numeric suffix of the part name is used instead.
func (d *Document) resolveSlideOrder() error {
	ordered := d.slideOrderFromPresentation()
	if ordered == nil {
		ordered = d.slideOrderByNumber()
	}
	d.slides = ordered
	return nil
}

func (d *Document) slideOrderFromPresentation() []int {
	presIdx, ok := d.index["ppt/presentation.xml"]
	if !ok {
		return nil
	}
	relIdx, ok := d.index["ppt/_rels/presentation.xml.rels"]
	if !ok {
		return nil
	}

	targets, err := relationshipTargets(d.parts[relIdx].data)
	if err != nil {
		return nil
	}
	relIDs, err := slideRelationshipIDs(d.parts[presIdx].data)
	if err != nil || len(relIDs) == 0 {
		return nil
	}

	var order []int
	for _, rid := range relIDs {
		target, ok := targets[rid]
		if !ok {
			return nil
		}
		name := path.Clean(path.Join("ppt", target))
		idx, ok := d.index[name]
		if !ok {
			return nil
		}
		order = append(order, idx)
	}
	return order
}

func (d *Document) slideOrderByNumber() []int {
	type numbered struct {
		n   int
		idx int
	}
	var found []numbered
	for i, p := range d.parts {
		m := slidePartRe.FindStringSubmatch(p.name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{n: n, idx: i})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	order := make([]int, len(found))
	for i, f := range found {
		order[i] = f.idx
	}
	return order
}

// SlideCount returns the number of slides in presentation order.
func (d *Document) SlideCount() int { return len(d.slides) }

// slideData returns the raw XML of the slide at the given 0-based index.
func (d *Document) slideData(slideIndex int) ([]byte, error) {
	if slideIndex < 0 || slideIndex >= len(d.slides) {
		return nil, fmt.Errorf("slide index %d out of range [0,%d)", slideIndex, len(d.slides))
	}
	return d.parts[d.slides[slideIndex]].data, nil
}

// Extract walks every slide and returns the logical text model: one unit per
// non-blank text body, in slide-then-shape encounter order. The document is
// not modified; calling Extract twice on the same bytes yields identical
// unit IDs and ordering.
func (d *Document) Extract(filename string) (*document.Content, error) {
	content := &document.Content{
		Filename:    filename,
		TotalSlides: len(d.slides),
	}

	for slideIdx := range d.slides {
		data, err := d.slideData(slideIdx)
		if err != nil {
			return nil, err
		}
		bodies, err := scanBodies(data)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("slide %d has malformed XML", slideIdx+1), Err: err}
		}

		slide := document.SlideContent{SlideNumber: slideIdx + 1}
		for shapeIdx, b := range bodies {
			unit := document.TextUnit{
				ID:           document.UnitID(slideIdx, shapeIdx),
				SlideIndex:   slideIdx,
				ShapeIndex:   shapeIdx,
				OriginalText: b.text(),
			}
			if unit.IsBlank() {
				continue
			}
			slide.TextUnits = append(slide.TextUnits, unit)
		}
		if len(slide.TextUnits) > 0 {
			content.Slides = append(content.Slides, slide)
		}
	}
	return content, nil
}

// ReplaceTexts writes new text into the shapes addressed by unit ID. Each
// entry maps a slide_<n>_shape_<m> ID to its replacement text. Shape
// formatting is untouched: the full text lands in the shape's first run and
// the remaining runs are emptied. Unknown IDs are an error and nothing is
// written in that case.
func (d *Document) ReplaceTexts(texts map[string]string) error {
	if len(texts) == 0 {
		return nil
	}

	// Group replacements by slide so each slide XML is scanned once.
	bySlide := make(map[int]map[int]string)
	for id, text := range texts {
		slideIdx, shapeIdx, err := document.ParseUnitID(id)
		if err != nil {
			return err
		}
		if slideIdx >= len(d.slides) {
			return fmt.Errorf("unit %s: slide index out of range", id)
		}
		if bySlide[slideIdx] == nil {
			bySlide[slideIdx] = make(map[int]string)
		}
		bySlide[slideIdx][shapeIdx] = text
	}

	// Validate everything before mutating anything.
	type pendingSlide struct {
		slideIdx int
		patched  []byte
	}
	var pending []pendingSlide
	for slideIdx, shapes := range bySlide {
		data, err := d.slideData(slideIdx)
		if err != nil {
			return err
		}
		bodies, err := scanBodies(data)
		if err != nil {
			return &ParseError{Reason: fmt.Sprintf("slide %d has malformed XML", slideIdx+1), Err: err}
		}
		var patches []patch
		for shapeIdx, text := range shapes {
			if shapeIdx >= len(bodies) {
				return fmt.Errorf("unit %s: no such shape on slide %d",
					document.UnitID(slideIdx, shapeIdx), slideIdx+1)
			}
			ps, err := bodies[shapeIdx].replacementPatches(text)
			if err != nil {
				return fmt.Errorf("unit %s: %w", document.UnitID(slideIdx, shapeIdx), err)
			}
			patches = append(patches, ps...)
		}
		patched, err := applyPatches(data, patches)
		if err != nil {
			return fmt.Errorf("slide %d: %w", slideIdx+1, err)
		}
		pending = append(pending, pendingSlide{slideIdx: slideIdx, patched: patched})
	}

	for _, p := range pending {
		d.parts[d.slides[p.slideIdx]].data = p.patched
	}
	return nil
}

// Bytes serializes the package back into a pptx zip.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range d.parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the package to disk via a temp file and rename, so readers
// never observe a half-written presentation.
func (d *Document) Save(filePath string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
