// Package report writes Allure-compatible result files and publishes
// step events to observers.
package report

import "time"

// Status indicates the outcome of a case or step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusBroken  Status = "broken"
	StatusSkipped Status = "skipped"
)

// Stage is the lifecycle stage of a case or step.
type Stage string

const (
	StageRunning  Stage = "running"
	StageFinished Stage = "finished"
)

// StatusDetails carries the failure message of a case or step.
type StatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Attachment references a file written next to the result.
type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// Label is an Allure label (suite, feature, severity...).
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StepResult is one reported step.
type StepResult struct {
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         Stage          `json:"stage"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop,omitempty"`
	Steps         []StepResult   `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
}

// TestResult is the content of a <uuid>-result.json file.
type TestResult struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         Stage          `json:"stage"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
	Steps         []StepResult   `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Labels        []Label        `json:"labels,omitempty"`
}

// Label returns the value of the first label called name.
func (r TestResult) Label(name string) string {
	for _, l := range r.Labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}

// Duration is Stop-Start.
func (r TestResult) Duration() time.Duration {
	return time.Duration(r.Stop-r.Start) * time.Millisecond
}

func millis(t time.Time) int64 { return t.UnixMilli() }
