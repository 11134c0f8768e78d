package model

import "time"

// LearnerExport is the top-level JSON structure for the export command.
type LearnerExport struct {
	ExportedAt         time.Time       `json:"exported_at"`
	CatalogFingerprint string          `json:"catalog_fingerprint"`
	Learners           []LearnerResult `json:"learners"`
}

// LearnerResult holds one learner's profile and full session history for export.
type LearnerResult struct {
	Username           string           `json:"username"`
	TotalScore         float64          `json:"total_score"`
	RememberingScore   float64          `json:"remembering_score"`
	UnderstandingScore float64          `json:"understanding_score"`
	ApplyingScore      float64          `json:"applying_score"`
	NumSessions        int              `json:"num_sessions"`
	CreatedAt          time.Time        `json:"created_at"`
	Sessions           []SessionRecord  `json:"sessions"`
	Levels             []LevelBreakdown `json:"levels"`
}
