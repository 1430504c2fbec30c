// Package document defines the logical text model projected out of a
// presentation file: a flat, positionally-identified list of translatable
// text units grouped by slide. The model is disposable — it is recomputed
// from the physical file whenever the file changes and never carries
// formatting information itself.
package document

import (
	"fmt"
	"strings"
)

// TextUnit is one addressable piece of translatable text bound to a specific
// shape on a specific slide. Its ID is derived from the positional key
// (slide index, shape index), so re-extracting an unmodified file yields the
// same IDs in the same order.
type TextUnit struct {
	ID             string `json:"id"`
	SlideIndex     int    `json:"slide_index"`
	ShapeIndex     int    `json:"shape_index"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text,omitempty"`
	EditedText     string `json:"edited_text,omitempty"`
}

// FinalText returns the text that should end up in the output document:
// a user edit wins over a translation, which wins over the original.
func (u *TextUnit) FinalText() string {
	if u.EditedText != "" {
		return u.EditedText
	}
	if u.TranslatedText != "" {
		return u.TranslatedText
	}
	return u.OriginalText
}

// IsBlank reports whether the unit holds no translatable content.
func (u *TextUnit) IsBlank() bool {
	return strings.TrimSpace(u.OriginalText) == ""
}

// SlideContent groups the text units of a single slide in shape-encounter
// order. SlideNumber is 1-based, matching what a presenter sees.
type SlideContent struct {
	SlideNumber int        `json:"slide_number"`
	TextUnits   []TextUnit `json:"text_units"`
}

// Content is the logical view of one presentation file.
type Content struct {
	Filename    string         `json:"filename"`
	TotalSlides int            `json:"total_slides"`
	Slides      []SlideContent `json:"slides"`
}

// Units returns pointers to every text unit in slide-then-shape order.
// Mutations through the returned pointers are visible in the Content.
func (c *Content) Units() []*TextUnit {
	var units []*TextUnit
	for i := range c.Slides {
		for j := range c.Slides[i].TextUnits {
			units = append(units, &c.Slides[i].TextUnits[j])
		}
	}
	return units
}

// Lookup returns the unit with the given ID, or nil if no such unit exists.
func (c *Content) Lookup(id string) *TextUnit {
	for _, u := range c.Units() {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// UnitID builds the stable identifier for the text body at the given
// 0-based slide and shape position.
func UnitID(slideIndex, shapeIndex int) string {
	return fmt.Sprintf("slide_%d_shape_%d", slideIndex, shapeIndex)
}

// ParseUnitID is the inverse of UnitID. It returns an error for IDs that do
// not follow the slide_<n>_shape_<m> form.
func ParseUnitID(id string) (slideIndex, shapeIndex int, err error) {
	n, err := fmt.Sscanf(id, "slide_%d_shape_%d", &slideIndex, &shapeIndex)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("malformed unit id %q", id)
	}
	if slideIndex < 0 || shapeIndex < 0 {
		return 0, 0, fmt.Errorf("malformed unit id %q", id)
	}
	return slideIndex, shapeIndex, nil
}
