package pptx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DrawingML puts every piece of visible shape text inside <a:t> run elements
// nested in a <txBody> (p:txBody for plain shapes, a:txBody for table
// cells; grouped shapes just nest further). scanBodies tokenizes a slide XML
// and records, for each text body in encounter order, the exact byte ranges
// of its run contents. Those ranges are all a replacement is allowed to
// touch.

// textRun locates one <a:t> element inside the slide XML.
type textRun struct {
	tagStart     int64 // byte offset of '<' of the opening tag
	contentStart int64 // first byte of character content
	contentEnd   int64 // byte offset of '<' of the closing tag
	selfClosing  bool  // <a:t/> — no content range exists
	rawTag       string
	text         string
}

type paragraph struct {
	runs []textRun
}

// textBody is one shape text body: its paragraphs and their runs, in
// document order.
type textBody struct {
	paragraphs []paragraph
}

// text assembles the body's visible text: runs concatenated within a
// paragraph, paragraphs joined with newlines. Trailing empty paragraphs
// carry no visible text and are not part of the result.
func (b *textBody) text() string {
	parts := make([]string, len(b.paragraphs))
	for i, p := range b.paragraphs {
		var sb strings.Builder
		for _, r := range p.runs {
			sb.WriteString(r.text)
		}
		parts[i] = sb.String()
	}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, "\n")
}

func (b *textBody) runCount() int {
	n := 0
	for _, p := range b.paragraphs {
		n += len(p.runs)
	}
	return n
}

// scanBodies walks the slide XML and returns every text body in encounter
// order. Offsets index into data.
func scanBodies(data []byte) ([]*textBody, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		bodies    []*textBody
		current   *textBody
		bodyDepth int // element nesting depth at which the open txBody started
		depth     int
		inRun     bool
		run       textRun
		runText   strings.Builder
	)

	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		end := dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "txBody":
				if current == nil {
					current = &textBody{}
					bodyDepth = depth
				}
			case "p":
				if current != nil && !inRun {
					current.paragraphs = append(current.paragraphs, paragraph{})
				}
			case "t":
				if current != nil && len(current.paragraphs) > 0 && !inRun {
					inRun = true
					run = textRun{
						tagStart:     start,
						contentStart: end,
						rawTag:       string(data[start:end]),
					}
					runText.Reset()
				}
			}
		case xml.CharData:
			if inRun {
				runText.Write([]byte(t))
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inRun {
				inRun = false
				run.contentEnd = start
				// A self-closed <a:t/> produces a zero-width end token
				// sitting exactly where the start tag finished.
				if start == end && start == run.contentStart {
					run.selfClosing = true
					run.contentEnd = run.contentStart
				}
				run.text = runText.String()
				p := &current.paragraphs[len(current.paragraphs)-1]
				p.runs = append(p.runs, run)
			}
			if t.Name.Local == "txBody" && current != nil && depth == bodyDepth {
				bodies = append(bodies, current)
				current = nil
			}
			depth--
		}
	}

	if current != nil {
		return nil, fmt.Errorf("unterminated text body")
	}
	return bodies, nil
}

// patch replaces data[start:end) with repl.
type patch struct {
	start, end int64
	repl       []byte
}

// replacementPatches produces the byte patches that put newText into the
// body. The text is split on newlines and the lines are distributed over
// the existing paragraphs so bullet structure and per-paragraph formatting
// survive: line i goes into paragraph i's first run, every other run of
// that paragraph is emptied. Lines beyond the paragraph count stay in the
// last paragraph as explicit line breaks; paragraphs beyond the line count
// are emptied. Bodies without runs cannot take text without structural
// edits, which this package refuses to make.
func (b *textBody) replacementPatches(newText string) ([]patch, error) {
	if b.runCount() == 0 {
		return nil, fmt.Errorf("shape has no text runs")
	}

	lastWritable := -1
	for i, p := range b.paragraphs {
		if len(p.runs) > 0 {
			lastWritable = i
		}
	}

	lines := strings.Split(newText, "\n")
	var patches []patch
	li := 0
	for pi, p := range b.paragraphs {
		if len(p.runs) == 0 {
			// A run-less paragraph renders as a blank line and stands for
			// one in the extracted text.
			if li < len(lines) && lines[li] == "" {
				li++
			}
			continue
		}
		var line string
		switch {
		case pi == lastWritable && li < len(lines):
			line = strings.Join(lines[li:], "\n")
			li = len(lines)
		case li < len(lines):
			line = lines[li]
			li++
		}
		patches = append(patches, runPatches(p.runs[0], line)...)
		for _, r := range p.runs[1:] {
			patches = append(patches, runPatches(r, "")...)
		}
	}
	return patches, nil
}

// runPatches rewrites a single run's content to text, expanding self-closed
// tags only when there is text to carry.
func runPatches(r textRun, text string) []patch {
	switch {
	case r.selfClosing && text == "":
		return nil
	case r.selfClosing:
		return []patch{{start: r.tagStart, end: r.contentStart, repl: expandSelfClosing(r.rawTag, text)}}
	case text == "" && r.contentStart == r.contentEnd:
		return nil
	default:
		return []patch{{start: r.contentStart, end: r.contentEnd, repl: escapeXMLText(text)}}
	}
}

// expandSelfClosing rewrites a self-closed run tag like <a:t/> into
// <a:t>text</a:t>, preserving the original tag name and prefix.
func expandSelfClosing(rawTag, text string) []byte {
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(rawTag, "<"), "/>"))
	var buf bytes.Buffer
	buf.WriteByte('<')
	buf.WriteString(name)
	buf.WriteByte('>')
	buf.Write(escapeXMLText(text))
	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
	return buf.Bytes()
}

func escapeXMLText(s string) []byte {
	var buf bytes.Buffer
	// EscapeText only fails on a failing writer; bytes.Buffer never does.
	xml.EscapeText(&buf, []byte(s))
	return buf.Bytes()
}

// applyPatches rewrites data with the given non-overlapping patches and
// returns the result. Bytes outside the patch ranges are copied verbatim.
func applyPatches(data []byte, patches []patch) ([]byte, error) {
	sort.Slice(patches, func(i, j int) bool { return patches[i].start < patches[j].start })

	var out bytes.Buffer
	out.Grow(len(data))
	cursor := int64(0)
	for _, p := range patches {
		if p.start < cursor || p.end > int64(len(data)) {
			return nil, fmt.Errorf("overlapping or out-of-range text patch")
		}
		out.Write(data[cursor:p.start])
		out.Write(p.repl)
		cursor = p.end
	}
	out.Write(data[cursor:])
	return out.Bytes(), nil
}

// relationshipTargets parses a .rels part into an Id -> Target map.
func relationshipTargets(data []byte) (map[string]string, error) {
	var rels struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		targets[r.ID] = r.Target
	}
	return targets, nil
}

// slideRelationshipIDs returns the relationship IDs referenced by the
// presentation's sldIdLst, in presentation order.
func slideRelationshipIDs(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var ids []string
	inList := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sldIdLst":
				inList = true
			case "sldId":
				if !inList {
					continue
				}
				for _, attr := range t.Attr {
					if attr.Name.Local == "id" && strings.Contains(attr.Name.Space, "relationships") {
						ids = append(ids, attr.Value)
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "sldIdLst" {
				inList = false
			}
		}
	}
	return ids, nil
}
