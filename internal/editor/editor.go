// Package editor exposes translated documents for review and reconciles
// user edits back into the physical file without disturbing layout or
// formatting.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/valpere/slidetran/internal/document"
	"github.com/valpere/slidetran/internal/pptx"
	"github.com/valpere/slidetran/internal/store"
)

// UnknownUnitError reports an edit addressed to a text frame the document
// does not contain.
type UnknownUnitError struct {
	Filename string
	UnitID   string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("document %s has no text frame %s", e.Filename, e.UnitID)
}

// Edit replaces the text of one frame.
type Edit struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// EditBatch carries all edits of one save action.
type EditBatch struct {
	Filename string `json:"filename"`
	Edits    []Edit `json:"edits"`
}

// Editor reads and rewrites translated documents in the output store.
type Editor struct {
	store  *store.Store
	logger *slog.Logger
}

func New(st *store.Store, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{store: st, logger: logger}
}

// GetContent extracts the editable text frames of a translated document,
// grouped by slide in presentation order.
func (e *Editor) GetContent(filename string) (*document.Content, error) {
	data, err := e.store.ReadOutput(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := pptx.New(data)
	if err != nil {
		return nil, err
	}
	return doc.Extract(filename)
}

// ApplyEdits writes a batch of edits into the document. The batch is
// atomic: every edit is validated against the document before any byte is
// changed, and an unknown unit rejects the whole batch. Re-applying the
// same batch is a no-op beyond rewriting identical content.
func (e *Editor) ApplyEdits(batch EditBatch) error {
	if len(batch.Edits) == 0 {
		return nil
	}

	return e.store.WithLock(batch.Filename, func() error {
		data, err := e.store.ReadOutput(batch.Filename)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		doc, err := pptx.New(data)
		if err != nil {
			return err
		}
		content, err := doc.Extract(batch.Filename)
		if err != nil {
			return err
		}

		replacements := make(map[string]string, len(batch.Edits))
		for _, ed := range batch.Edits {
			if content.Lookup(ed.ID) == nil {
				return &UnknownUnitError{Filename: batch.Filename, UnitID: ed.ID}
			}
			replacements[ed.ID] = ed.Text
		}

		if err := doc.ReplaceTexts(replacements); err != nil {
			return fmt.Errorf("failed to apply edits: %w", err)
		}
		out, err := doc.Bytes()
		if err != nil {
			return fmt.Errorf("failed to serialize document: %w", err)
		}
		if err := e.store.WriteOutput(batch.Filename, out); err != nil {
			return err
		}

		e.logger.Info("edits applied", "filename", batch.Filename, "edits", len(batch.Edits))
		return nil
	})
}
