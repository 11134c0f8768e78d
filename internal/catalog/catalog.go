// Package catalog loads the read-only question bank.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Catalog is an immutable question bank, safe for concurrent reads.
type Catalog struct {
	questions   []model.Question
	byID        map[int64]int
	fingerprint string
}

// Options tune how tabular sources are read.
type Options struct {
	// Sheet is the XLSX sheet to read. Empty means the first sheet.
	Sheet string
}

// Load reads a catalog from a .csv, .xlsx or .json file.
func Load(path string, opts Options) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rows []rawQuestion
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = parseCSV(data)
	case ".xlsx":
		rows, err = parseXLSX(data, opts.Sheet)
	case ".json":
		rows, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	c, err := build(rows)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	c.fingerprint = hex.EncodeToString(sum[:])
	return c, nil
}

// New builds a catalog from questions already in memory.
func New(questions []model.Question) (*Catalog, error) {
	rows := make([]rawQuestion, len(questions))
	for i, q := range questions {
		id := q.ID
		rows[i] = rawQuestion{row: i + 1, id: &id, text: q.Text, answer: q.ReferenceAnswer, label: string(q.Label)}
	}
	return build(rows)
}

// rawQuestion is one unvalidated catalog row. id is nil when the source has no id column.
type rawQuestion struct {
	row    int
	id     *int64
	text   string
	answer string
	label  string
}

func build(rows []rawQuestion) (*Catalog, error) {
	c := &Catalog{
		questions: make([]model.Question, 0, len(rows)),
		byID:      make(map[int64]int, len(rows)),
	}
	for i, r := range rows {
		id := int64(i)
		if r.id != nil {
			id = *r.id
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return nil, fmt.Errorf("row %d: empty question text", r.row)
		}
		label, err := model.ParseCognitiveLevel(r.label)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.row, err)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("row %d: duplicate question id %d", r.row, id)
		}
		c.byID[id] = len(c.questions)
		c.questions = append(c.questions, model.Question{
			ID:              id,
			Text:            text,
			ReferenceAnswer: strings.TrimSpace(r.answer),
			Label:           label,
		})
	}
	return c, nil
}

// All returns a copy of the questions in catalog order.
func (c *Catalog) All() []model.Question {
	out := make([]model.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// Get returns the question with the given id.
func (c *Catalog) Get(id int64) (model.Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Question{}, false
	}
	return c.questions[i], true
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// CountByLevel returns how many questions each level has.
func (c *Catalog) CountByLevel() map[model.CognitiveLevel]int {
	counts := make(map[model.CognitiveLevel]int, 3)
	for _, q := range c.questions {
		counts[q.Label]++
	}
	return counts
}

// Fingerprint is the SHA-256 of the source file, empty for in-memory catalogs.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}
