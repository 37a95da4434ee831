package model

import "time"

// Status is the result of extracting one event for one client.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// Outcome records one (client, event) iteration of an extraction run.
type Outcome struct {
	Client   string
	Event    string
	Status   Status
	Rows     int
	Columns  int
	Path     string
	Err      error
	Duration time.Duration
}

// ErrorMessage returns the failure reason, or "" when the iteration did not fail.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary collects the outcomes of one run in client order.
type Summary struct {
	RunID      string
	Event      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

func (s Summary) count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (s Summary) Succeeded() int { return s.count(StatusSuccess) }
func (s Summary) Empty() int     { return s.count(StatusEmpty) }
func (s Summary) Failed() int    { return s.count(StatusFailed) }

// Outcome returns the outcome for a client.
func (s Summary) Outcome(client string) (Outcome, bool) {
	for _, o := range s.Outcomes {
		if o.Client == client {
			return o, true
		}
	}
	return Outcome{}, false
}

// Rows returns the total number of rows persisted by the run.
func (s Summary) Rows() int {
	total := 0
	for _, o := range s.Outcomes {
		if o.Status == StatusSuccess {
			total += o.Rows
		}
	}
	return total
}
