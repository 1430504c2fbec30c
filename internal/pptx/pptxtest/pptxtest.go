// Package pptxtest builds minimal but well-formed pptx packages in memory
// for tests. The XML mirrors what PowerPoint emits closely enough for the
// extractor and patcher: namespaced slide parts, shape trees, tables and
// grouped shapes.
package pptxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
</Types>`

// Run renders a single text run with explicit formatting attributes, so
// tests can assert those attributes survive a rewrite.
func Run(text string) string {
	return `<a:r><a:rPr lang="en-US" sz="2400" b="1"/><a:t>` + text + `</a:t></a:r>`
}

// EmptyRun renders a self-closed run with no text.
func EmptyRun() string {
	return `<a:r><a:rPr lang="en-US"/><a:t/></a:r>`
}

// Paragraph wraps pre-rendered runs into one paragraph.
func Paragraph(runs ...string) string {
	return "<a:p>" + strings.Join(runs, "") + "</a:p>"
}

// Shape renders a plain shape whose single paragraph holds one run per
// argument. The shape carries position and extent attributes for
// formatting-preservation assertions.
func Shape(runs ...string) string {
	rendered := make([]string, len(runs))
	for i, r := range runs {
		rendered[i] = Run(r)
	}
	return ShapeRaw(Paragraph(rendered...))
}

// ShapeRaw renders a shape around pre-rendered paragraph XML.
func ShapeRaw(paragraphs ...string) string {
	return `<p:sp><p:spPr><a:xfrm><a:off x="1524000" y="381000"/><a:ext cx="6096000" cy="1143000"/></a:xfrm></p:spPr>` +
		`<p:txBody><a:bodyPr/>` + strings.Join(paragraphs, "") + `</p:txBody></p:sp>`
}

// Table renders a one-row table with one cell per argument.
func Table(cells ...string) string {
	var sb strings.Builder
	sb.WriteString(`<p:graphicFrame><a:graphic><a:graphicData><a:tbl><a:tr h="370840">`)
	for _, c := range cells {
		sb.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>`)
		sb.WriteString(c)
		sb.WriteString(`</a:t></a:r></a:p></a:txBody></a:tc>`)
	}
	sb.WriteString(`</a:tr></a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
	return sb.String()
}

// Group nests pre-rendered shapes inside a grouped shape.
func Group(shapes ...string) string {
	return `<p:grpSp><p:grpSpPr/>` + strings.Join(shapes, "") + `</p:grpSp>`
}

// Slide wraps pre-rendered shapes into a complete slide part.
func Slide(shapes ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:cSld><p:spTree>` + strings.Join(shapes, "") + `</p:spTree></p:cSld></p:sld>`
}

// Presentation assembles slide parts (in presentation order) into a pptx
// zip, wiring the sldIdLst and relationships accordingly.
func Presentation(slides ...string) []byte {
	var sldIds, rels strings.Builder
	for i := range slides {
		rid := fmt.Sprintf("rId%d", i+2)
		fmt.Fprintf(&sldIds, `<p:sldId id="%d" r:id="%s"/>`, 256+i, rid)
		fmt.Fprintf(&rels, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, rid, i+1)
	}

	presentation := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:sldIdLst>` + sldIds.String() + `</p:sldIdLst></p:presentation>`

	relsPart := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + rels.String() + `</Relationships>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, data string) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			panic(err)
		}
	}
	write("[Content_Types].xml", contentTypes)
	write("ppt/presentation.xml", presentation)
	write("ppt/_rels/presentation.xml.rels", relsPart)
	for i, s := range slides {
		write(fmt.Sprintf("ppt/slides/slide%d.xml", i+1), s)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// SampleDeck returns the canonical 3-slide test deck with 5 text units:
// slide 1 holds a two-run shape and a two-cell table, slide 2 a grouped
// shape, slide 3 a closing shape.
func SampleDeck() []byte {
	return Presentation(
		Slide(
			Shape("Hello ", "world"),
			Table("Cell one", "Cell two"),
		),
		Slide(
			Group(Shape("Grouped text")),
		),
		Slide(
			Shape("Closing remarks"),
		),
	)
}
