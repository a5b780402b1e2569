package conformance

import (
	"time"
)

// Status is the outcome of a single case.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Result records one case run.
type Result struct {
	Suite    string        `json:"suite" yaml:"suite"`
	Case     string        `json:"case" yaml:"case"`
	Status   Status        `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the outcome of running suites against one backend.
type Report struct {
	Started  time.Time     `json:"started" yaml:"started"`
	ID       string        `json:"id" yaml:"id"`
	Backend  string        `json:"backend" yaml:"backend"`
	Features string        `json:"features" yaml:"features"`
	Results  []Result      `json:"results" yaml:"results"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Counts tallies results by status.
func (r *Report) Counts() (pass, fail, skip int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skip++
		}
	}
	return pass, fail, skip
}

// Failed reports whether any case failed.
func (r *Report) Failed() bool {
	_, fail, _ := r.Counts()
	return fail > 0
}

// Failures returns the failed results in run order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFail {
			out = append(out, res)
		}
	}
	return out
}
