// Package memory persists finished translations so repeated text frames
// across decks are resolved without another provider call.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

type Memory struct {
	db *sql.DB
}

func Open(dbPath string) (*Memory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Memory{db: db}
	if err := m.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return m, nil
}

func (m *Memory) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		final_text TEXT NOT NULL,
		service_used TEXT,
		enhanced BOOLEAN DEFAULT FALSE,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_lang, target_lang)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, source_lang, target_lang);
	`

	_, err := m.db.Exec(schema)
	return err
}

// Get returns the remembered translation for sourceText, if any. A hit bumps
// the usage count. sourceLang may be empty when detection was left to the
// provider; entries are keyed on whatever was requested.
func (m *Memory) Get(ctx context.Context, sourceText, sourceLang, targetLang string) (string, bool, error) {
	key := normalizeText(sourceText)

	var finalText string
	err := m.db.QueryRowContext(ctx,
		`SELECT final_text FROM translation_memory WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		key, sourceLang, targetLang).Scan(&finalText)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = m.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
		time.Now(), key, sourceLang, targetLang)

	return finalText, true, err
}

// Put stores or replaces the remembered translation for sourceText.
func (m *Memory) Put(ctx context.Context, sourceText, sourceLang, targetLang, finalText, serviceUsed string, enhanced bool) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, source_text, source_lang, target_lang, final_text, service_used, enhanced, usage_count, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		uuid.NewString(), normalizeText(sourceText), sourceLang, targetLang, finalText, serviceUsed, enhanced, time.Now(), time.Now())
	return err
}

// Clear removes all remembered translations and reports how many were dropped.
func (m *Memory) Clear(ctx context.Context) (int64, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats summarises translation memory usage.
type Stats struct {
	TotalEntries    int
	EnhancedEntries int
	TotalUsage      int
}

func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := m.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN enhanced THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.EnhancedEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (m *Memory) Close() error {
	return m.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent memory key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
