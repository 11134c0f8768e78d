package model

import (
	"fmt"
	"strings"
	"time"
)

// CognitiveLevel is one of the three ordered question categories.
type CognitiveLevel string

const (
	LevelRemembering   CognitiveLevel = "Remembering"
	LevelUnderstanding CognitiveLevel = "Understanding"
	LevelApplying      CognitiveLevel = "Applying"
)

// Levels returns the cognitive levels in ascending order of difficulty.
func Levels() []CognitiveLevel {
	return []CognitiveLevel{LevelRemembering, LevelUnderstanding, LevelApplying}
}

// ParseCognitiveLevel maps a catalog label to a level, ignoring case and surrounding space.
func ParseCognitiveLevel(s string) (CognitiveLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remembering":
		return LevelRemembering, nil
	case "understanding":
		return LevelUnderstanding, nil
	case "applying":
		return LevelApplying, nil
	}
	return "", fmt.Errorf("unknown cognitive level %q", s)
}

// Weight returns the scoring weight of the level: 1, 2 or 3.
// An unknown level has weight 0.
func (l CognitiveLevel) Weight() int {
	switch l {
	case LevelRemembering:
		return 1
	case LevelUnderstanding:
		return 2
	case LevelApplying:
		return 3
	}
	return 0
}

// Valid reports whether l is one of the three known levels.
func (l CognitiveLevel) Valid() bool {
	return l.Weight() != 0
}

// LevelWeights is a sampling distribution over cognitive levels.
type LevelWeights map[CognitiveLevel]float64

// UniformWeights returns 1/3 for every level.
func UniformWeights() LevelWeights {
	w := make(LevelWeights, 3)
	for _, l := range Levels() {
		w[l] = 1.0 / 3.0
	}
	return w
}

// Question is an immutable catalog item.
type Question struct {
	ID              int64          `json:"id"`
	Text            string         `json:"text"`
	ReferenceAnswer string         `json:"reference_answer"`
	Label           CognitiveLevel `json:"label"`
}

// Weight is derived from the question's label.
func (q Question) Weight() int {
	return q.Label.Weight()
}

// LearnerProfile is the cumulative state of one learner.
type LearnerProfile struct {
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	TotalScore         float64   `json:"total_score"`
	RememberingScore   float64   `json:"remembering_score"`
	UnderstandingScore float64   `json:"understanding_score"`
	ApplyingScore      float64   `json:"applying_score"`
	NumSessions        int       `json:"num_sessions"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LevelScore returns the cumulative score for a level.
func (p LearnerProfile) LevelScore(l CognitiveLevel) float64 {
	switch l {
	case LevelRemembering:
		return p.RememberingScore
	case LevelUnderstanding:
		return p.UnderstandingScore
	case LevelApplying:
		return p.ApplyingScore
	}
	return 0
}

// AddLevelScore adds v to the cumulative score for a level.
func (p *LearnerProfile) AddLevelScore(l CognitiveLevel, v float64) {
	switch l {
	case LevelRemembering:
		p.RememberingScore += v
	case LevelUnderstanding:
		p.UnderstandingScore += v
	case LevelApplying:
		p.ApplyingScore += v
	}
}

// SubmittedAnswer is one answer as received from the client.
// StartTime and EndTime are epoch milliseconds.
type SubmittedAnswer struct {
	QuestionID int64
	Response   string
	StartTime  float64
	EndTime    float64
}

// GradedAnswer is a submitted answer after similarity scoring.
type GradedAnswer struct {
	QuestionID int64          `json:"question_id"`
	Response   string         `json:"response"`
	Similarity float64        `json:"similarity"`
	Correct    int            `json:"correct"`
	Weight     int            `json:"weight"`
	Label      CognitiveLevel `json:"label"`
	TimeTaken  float64        `json:"time_taken"`
}

// FeedbackLevel classifies a total score for the learner-facing message.
type FeedbackLevel string

const (
	FeedbackExcellent        FeedbackLevel = "excellent"
	FeedbackGood             FeedbackLevel = "good"
	FeedbackNeedsImprovement FeedbackLevel = "needs_improvement"
)

// LevelFeedbackLevel classifies performance at a single cognitive level.
type LevelFeedbackLevel string

const (
	LevelStrong        LevelFeedbackLevel = "strong"
	LevelFair          LevelFeedbackLevel = "fair"
	LevelNeedsPractice LevelFeedbackLevel = "needs_practice"
)

// SessionResult is what a learner sees after submitting a batch.
type SessionResult struct {
	SessionID          string        `json:"session_id"`
	TotalScore         float64       `json:"total_score"`
	SessionDelta       float64       `json:"session_delta"`
	Correct            int           `json:"correct_answers"`
	Incorrect          int           `json:"incorrect_answers"`
	RememberingScore   float64       `json:"remembering_score"`
	UnderstandingScore float64       `json:"understanding_score"`
	ApplyingScore      float64       `json:"applying_score"`
	Feedback           FeedbackLevel `json:"feedback_level"`
	AverageTimeTaken   float64       `json:"average_time_taken"`
	NormalizedScores   []float64     `json:"normalized_scores"`
}

// SessionRecord is a completed session as persisted alongside the profile update.
type SessionRecord struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	CompletedAt  time.Time      `json:"completed_at"`
	SessionDelta float64        `json:"session_delta"`
	TotalScore   float64        `json:"total_score"`
	Correct      int            `json:"correct"`
	Incorrect    int            `json:"incorrect"`
	AvgTimeTaken float64        `json:"avg_time_taken"`
	Answers      []GradedAnswer `json:"answers,omitempty"`
}

// LevelBreakdown summarizes all recorded answers of one learner at one level.
type LevelBreakdown struct {
	Level          CognitiveLevel `json:"level"`
	Answered       int            `json:"answered"`
	Correct        int            `json:"correct"`
	EarnedPoints   float64        `json:"earned_points"`
	PossiblePoints float64        `json:"possible_points"`
}

// Percent is the share of achievable points earned, 0 when nothing was answered.
func (b LevelBreakdown) Percent() float64 {
	if b.PossiblePoints == 0 {
		return 0
	}
	return 100 * b.EarnedPoints / b.PossiblePoints
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	BatchSize   int
	Lang        string
	CORSOrigins []string
}
