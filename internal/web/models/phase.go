package models

// ============================================================
// Processing Phases
// ============================================================

type Phase struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Phases фиксированная последовательность отображения прогресса, индексы 1..4.
var Phases = []Phase{
	{Index: 1, Name: "Analyzing", Label: "Analyzing Image"},
	{Index: 2, Name: "Segmenting", Label: "Segmenting Floorplan"},
	{Index: 3, Name: "Vectorizing", Label: "Vectorizing Layout"},
	{Index: 4, Name: "Generating 3D Model", Label: "Generating 3D Model"},
}

type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobStatus снимок задачи обработки для страницы и /processing/status.
type JobStatus struct {
	Phase    int      `json:"phase"`
	Total    int      `json:"total"`
	State    JobState `json:"state"`
	Progress int      `json:"progress"`
	Error    string   `json:"error,omitempty"`
}
