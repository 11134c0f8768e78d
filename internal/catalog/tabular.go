package catalog

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Accepted header names per column, compared case-insensitively.
var headerAliases = map[string][]string{
	"id":       {"id"},
	"question": {"question", "text"},
	"answer":   {"answer", "reference_answer", "referenceanswer"},
	"label":    {"label", "level", "cognitive_level"},
}

type columns struct {
	id, question, answer, label int
}

func mapHeader(header []string) (columns, error) {
	cols := columns{id: -1, question: -1, answer: -1, label: -1}
	targets := map[string]*int{
		"id":       &cols.id,
		"question": &cols.question,
		"answer":   &cols.answer,
		"label":    &cols.label,
	}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for field, aliases := range headerAliases {
			if slices.Contains(aliases, h) {
				*targets[field] = i
			}
		}
	}
	var missing []string
	if cols.question < 0 {
		missing = append(missing, "Question")
	}
	if cols.answer < 0 {
		missing = append(missing, "Answer")
	}
	if cols.label < 0 {
		missing = append(missing, "Label")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("missing column(s) %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// parseRows converts header-led records into raw questions. Blank rows are skipped.
func parseRows(records [][]string) ([]rawQuestion, error) {
	if len(records) == 0 {
		return nil, errors.New("no header row")
	}
	cols, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}

	cell := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []rawQuestion
	for n, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rowNum := n + 2
		r := rawQuestion{
			row:    rowNum,
			text:   cell(rec, cols.question),
			answer: cell(rec, cols.answer),
			label:  cell(rec, cols.label),
		}
		if cols.id >= 0 {
			id, err := parseID(cell(rec, cols.id))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", rowNum, err)
			}
			r.id = &id
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func parseCSV(data []byte) ([]rawQuestion, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		records = append(records, rec)
	}
	return parseRows(records)
}

func parseXLSX(data []byte, sheet string) ([]rawQuestion, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return parseRows(records)
}

type jsonQuestion struct {
	ID       *int64 `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Label    string `json:"label"`
}

func parseJSON(data []byte) ([]rawQuestion, error) {
	var items []jsonQuestion
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	rows := make([]rawQuestion, len(items))
	for i, it := range items {
		rows[i] = rawQuestion{row: i + 1, id: it.ID, text: it.Question, answer: it.Answer, label: it.Label}
	}
	return rows, nil
}

// parseID accepts integers, including spreadsheet floats such as "12.0".
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid question id %q", s)
	}
	return int64(f), nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
