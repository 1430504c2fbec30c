// Package preview renders slide preview images for the editor UI and
// caches them against the document's modification time so edits show up
// without unbounded re-rendering.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/valpere/slidetran/internal/document"
)

const (
	previewWidth  = 960
	previewHeight = 720
)

// Renderer produces one slide's preview image as PNG bytes.
type Renderer interface {
	RenderSlide(slide document.SlideContent, totalSlides int) ([]byte, error)
}

// TextRenderer draws a plain rendition of the slide's text frames. It makes
// no attempt at layout fidelity; its job is to let editors see current text
// per slide, including their own edits.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer { return &TextRenderer{} }

func (r *TextRenderer) RenderSlide(slide document.SlideContent, totalSlides int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, previewWidth, previewHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	drawBorder(img, color.RGBA{R: 0xAA, G: 0xAA, B: 0xAA, A: 0xFF})

	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 6
	y := 40

	header := fmt.Sprintf("Slide %d of %d", slide.SlideNumber, totalSlides)
	drawText(img, face, 40, y, header, color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xFF})
	y += lineHeight * 2

	black := color.RGBA{A: 0xFF}
	for _, unit := range slide.TextUnits {
		for _, line := range wrapLines(unit.FinalText(), 120) {
			if y > previewHeight-40 {
				break
			}
			drawText(img, face, 40, y, line, black)
			y += lineHeight
		}
		y += lineHeight / 2
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img draw.Image, face font.Face, x, y int, text string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawBorder(img *image.RGBA, c color.Color) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.Set(x, b.Min.Y, c)
		img.Set(x, b.Max.Y-1, c)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.Set(b.Min.X, y, c)
		img.Set(b.Max.X-1, y, c)
	}
}

// wrapLines splits text on newlines and breaks long lines at word
// boundaries so they fit the preview width.
func wrapLines(text string, maxRunes int) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		if len([]rune(raw)) <= maxRunes {
			out = append(out, raw)
			continue
		}
		var line strings.Builder
		n := 0
		for _, word := range strings.Fields(raw) {
			w := len([]rune(word))
			if n > 0 && n+1+w > maxRunes {
				out = append(out, line.String())
				line.Reset()
				n = 0
			}
			if n > 0 {
				line.WriteString(" ")
				n++
			}
			line.WriteString(word)
			n += w
		}
		if line.Len() > 0 {
			out = append(out, line.String())
		}
	}
	return out
}
