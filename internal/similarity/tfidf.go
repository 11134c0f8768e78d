// Package similarity grades free-text answers against a reference answer
// using TF-IDF vectors built from the two texts alone.
package similarity

import (
	"math"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Threshold is the minimum similarity counted as a correct answer.
const Threshold = 0.7

// minTokenLen drops single-character tokens such as "a" or "I".
const minTokenLen = 2

// Scorer compares a reference answer with a learner's response.
type Scorer struct {
	threshold float64
}

// NewScorer returns a Scorer using the default correctness threshold.
func NewScorer() *Scorer {
	return &Scorer{threshold: Threshold}
}

// Score returns the cosine similarity of the TF-IDF vectors of reference and
// response, fitted on a two-document corpus made of exactly these texts.
// Texts without any token score 0.
func (s *Scorer) Score(reference, response string) float64 {
	ref := termCounts(reference)
	resp := termCounts(response)
	if len(ref) == 0 || len(resp) == 0 {
		return 0
	}

	idf := make(map[string]float64, len(ref)+len(resp))
	for term := range ref {
		idf[term] = inverseDocFreq(term, ref, resp)
	}
	for term := range resp {
		if _, ok := idf[term]; !ok {
			idf[term] = inverseDocFreq(term, ref, resp)
		}
	}

	var dot, refNorm, respNorm float64
	for term, w := range idf {
		a := float64(ref[term]) * w
		b := float64(resp[term]) * w
		dot += a * b
		refNorm += a * a
		respNorm += b * b
	}
	if refNorm == 0 || respNorm == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(refNorm) * math.Sqrt(respNorm))
	return math.Max(0, math.Min(1, sim))
}

// Binarize turns a similarity into 1 (correct) or 0 (incorrect).
func (s *Scorer) Binarize(similarity float64) int {
	if similarity >= s.threshold {
		return 1
	}
	return 0
}

// Grade scores a submitted answer against its question.
func (s *Scorer) Grade(q model.Question, a model.SubmittedAnswer) model.GradedAnswer {
	sim := s.Score(q.ReferenceAnswer, a.Response)
	return model.GradedAnswer{
		QuestionID: q.ID,
		Response:   a.Response,
		Similarity: sim,
		Correct:    s.Binarize(sim),
		Weight:     q.Weight(),
		Label:      q.Label,
		TimeTaken:  a.EndTime - a.StartTime,
	}
}

// inverseDocFreq is the smoothed idf over the two-document corpus:
// ln((1+n)/(1+df)) + 1 with n = 2.
func inverseDocFreq(term string, docs ...map[string]int) float64 {
	df := 0
	for _, d := range docs {
		if d[term] > 0 {
			df++
		}
	}
	n := float64(len(docs))
	return math.Log((1+n)/(1+float64(df))) + 1
}

// termCounts lower-cases text and counts word tokens of at least two characters.
// A word is a maximal run of letters, numbers and underscores.
func termCounts(text string) map[string]int {
	// A Caser holds state, so each call gets its own.
	lower := cases.Lower(language.Und).String(text)

	counts := make(map[string]int)
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := lower[start:end]
		if utf8.RuneCountInString(tok) >= minTokenLen {
			counts[tok]++
		}
		start = -1
	}
	for i, r := range lower {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(lower))
	return counts
}
