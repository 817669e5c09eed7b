package feedback

import "time"

// Correction is an analyst's fix for an insight the model got wrong. The
// original insight is never modified; corrections layer on top of it.
type Correction struct {
	ID             string    `json:"id"`
	InsightID      string    `json:"insight_id"`
	CorrectedValue string    `json:"corrected_value"`
	Note           string    `json:"note,omitempty"`
	Author         string    `json:"author,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskAccuracy reports how often a task's insights survive review: an
// insight with at least one correction counts as wrong.
type TaskAccuracy struct {
	Task      string  `json:"task"`
	Total     int     `json:"total"`
	Corrected int     `json:"corrected"`
	Agreement float64 `json:"agreement"`
}

// DriftReport compares the sentiment label distribution of a recent window
// against a baseline window.
type DriftReport struct {
	Baseline      map[string]int `json:"baseline"`
	Current       map[string]int `json:"current"`
	Distance      float64        `json:"distance"`
	DriftDetected bool           `json:"drift_detected"`
}
