package insights

import "time"

// Task identifies the extraction task that produced an insight.
type Task string

const (
	TaskMetric    Task = "metric"
	TaskRisk      Task = "risk"
	TaskSentiment Task = "sentiment"
	TaskSummary   Task = "summary"
)

// AllTasks lists every extraction task, in the order analyze runs them.
var AllTasks = []Task{TaskMetric, TaskRisk, TaskSentiment, TaskSummary}

// ParseTask maps a user-supplied string to a known Task.
func ParseTask(s string) (Task, bool) {
	switch Task(s) {
	case TaskMetric, TaskRisk, TaskSentiment, TaskSummary:
		return Task(s), true
	}
	return "", false
}

// Insight is a provenance-linked extraction result. Rows are append-only:
// re-running a task inserts new insights and never mutates old ones, which
// keeps the audit trail intact.
type Insight struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	Task          Task      `json:"task"`
	Metric        string    `json:"metric,omitempty"`
	Value         string    `json:"value"`
	Insufficient  bool      `json:"insufficient,omitempty"`
	SegmentIDs    []string  `json:"segment_ids"`
	Model         string    `json:"model"`
	PromptVersion string    `json:"prompt_version"`
	Confidence    *float64  `json:"confidence,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Filter controls which insights Query returns.
type Filter struct {
	Company string
	DocType string
	Metric  string
	Task    Task
	Since   *time.Time
	Until   *time.Time
	Limit   int
}
