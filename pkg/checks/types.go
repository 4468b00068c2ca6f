package checks

import (
	"time"

	"github.com/edgeops/opsctl/pkg/header"
)

// Kind is the document kind of a check result.
const Kind = "CheckResult"

// Phase groups checks by when they apply.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// OverallStatus summarizes a run.
type OverallStatus string

const (
	OverallPass    OverallStatus = "pass"
	OverallWarn    OverallStatus = "warn"
	OverallFail    OverallStatus = "fail"
	OverallPartial OverallStatus = "partial"
)

// Check is the outcome of one evaluated check.
type Check struct {
	Name     string `json:"name" yaml:"name"`
	Phase    Phase  `json:"phase" yaml:"phase"`
	Service  string `json:"service,omitempty" yaml:"service,omitempty"`
	Status   Status `json:"status" yaml:"status"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Summary counts check outcomes.
type Summary struct {
	Total    int           `json:"total" yaml:"total"`
	Passed   int           `json:"passed" yaml:"passed"`
	Warnings int           `json:"warnings" yaml:"warnings"`
	Failed   int           `json:"failed" yaml:"failed"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Status   OverallStatus `json:"status" yaml:"status"`
}

// Result is the document produced by one check run.
type Result struct {
	header.Header `json:",inline" yaml:",inline"`

	Namespace      string  `json:"namespace" yaml:"namespace"`
	OpsService     string  `json:"opsService" yaml:"opsService"`
	PreDeployment  bool    `json:"preDeployment" yaml:"preDeployment"`
	PostDeployment bool    `json:"postDeployment" yaml:"postDeployment"`
	Checks         []Check `json:"checks" yaml:"checks"`
	Summary        Summary `json:"summary" yaml:"summary"`
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	r.Summary.Total++
	switch c.Status {
	case StatusPassed:
		r.Summary.Passed++
	case StatusWarning:
		r.Summary.Warnings++
	case StatusFailed:
		r.Summary.Failed++
	case StatusSkipped:
		r.Summary.Skipped++
	}
}

func (r *Result) finish(d time.Duration) {
	r.Summary.Duration = d
	switch {
	case r.Summary.Failed > 0:
		r.Summary.Status = OverallFail
	case r.Summary.Skipped > 0:
		r.Summary.Status = OverallPartial
	case r.Summary.Warnings > 0:
		r.Summary.Status = OverallWarn
	default:
		r.Summary.Status = OverallPass
	}
}

// HasFailures reports whether any check failed.
func (r *Result) HasFailures() bool {
	return r.Summary.Failed > 0
}
