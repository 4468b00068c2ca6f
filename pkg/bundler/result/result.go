// Package result holds the outcome of a bundle run: one Result per collected
// ops service and an Output aggregating them with the archive location.
package result

import (
	"fmt"
	"time"

	"github.com/edgeops/opsctl/pkg/opsservice"
)

// Result is the outcome of collecting one ops service.
type Result struct {
	Service  opsservice.Type `json:"service" yaml:"service"`
	Files    []string        `json:"files" yaml:"files"`
	Size     int64           `json:"size" yaml:"size"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
	Success  bool            `json:"success" yaml:"success"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors   []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewResult creates an empty Result for svc.
func NewResult(svc opsservice.Type) *Result {
	return &Result{
		Service: svc,
		Files:   make([]string, 0),
		Errors:  make([]string, 0),
	}
}

// AddFile records an archive path and its size.
func (r *Result) AddFile(path string, size int64) {
	r.Files = append(r.Files, path)
	r.Size += size
}

// AddError records err. Nil errors are ignored.
func (r *Result) AddError(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err.Error())
}

// AddWarnings records isolated failures that did not fail the service.
func (r *Result) AddWarnings(w ...string) {
	r.Warnings = append(r.Warnings, w...)
}

// MarkSuccess marks the service as collected.
func (r *Result) MarkSuccess() {
	r.Success = true
}

// HasContent reports whether the service produced at least one file.
func (r *Result) HasContent() bool {
	return len(r.Files) > 0
}

// ServiceError is a service-level failure.
type ServiceError struct {
	Service opsservice.Type `json:"service" yaml:"service"`
	Error   string          `json:"error" yaml:"error"`
}

// Output is the aggregated outcome of a bundle run.
type Output struct {
	RunID       string          `json:"runId" yaml:"runId"`
	ArchivePath string          `json:"archivePath" yaml:"archivePath"`
	Namespace   string          `json:"namespace" yaml:"namespace"`
	Scope       opsservice.Type `json:"scope" yaml:"scope"`
	Results     []*Result       `json:"results" yaml:"results"`
	Errors      []ServiceError  `json:"errors,omitempty" yaml:"errors,omitempty"`

	TotalFiles    int           `json:"totalFiles" yaml:"totalFiles"`
	TotalSize     int64         `json:"totalSize" yaml:"totalSize"`
	ArchiveSize   int64         `json:"archiveSize" yaml:"archiveSize"`
	TotalDuration time.Duration `json:"totalDuration" yaml:"totalDuration"`
}

// HasErrors reports whether any service failed.
func (o *Output) HasErrors() bool {
	return len(o.Errors) > 0
}

// HasContent reports whether any service produced a file.
func (o *Output) HasContent() bool {
	for _, r := range o.Results {
		if r.HasContent() {
			return true
		}
	}
	return false
}

// SuccessCount returns the number of services collected without error.
func (o *Output) SuccessCount() int {
	n := 0
	for _, r := range o.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// FailureCount returns the number of services that failed.
func (o *Output) FailureCount() int {
	return len(o.Results) - o.SuccessCount()
}

// WarningCount returns the number of isolated failures across services.
func (o *Output) WarningCount() int {
	n := 0
	for _, r := range o.Results {
		n += len(r.Warnings)
	}
	return n
}

// ByService returns results keyed by service.
func (o *Output) ByService() map[opsservice.Type]*Result {
	m := make(map[opsservice.Type]*Result, len(o.Results))
	for _, r := range o.Results {
		m[r.Service] = r
	}
	return m
}

// FailedServices returns the services recorded in Errors.
func (o *Output) FailedServices() []opsservice.Type {
	out := make([]opsservice.Type, 0, len(o.Errors))
	for _, e := range o.Errors {
		out = append(out, e.Service)
	}
	return out
}

// SuccessfulServices returns the services collected without error.
func (o *Output) SuccessfulServices() []opsservice.Type {
	out := make([]opsservice.Type, 0, len(o.Results))
	for _, r := range o.Results {
		if r.Success {
			out = append(out, r.Service)
		}
	}
	return out
}

// Summary returns a one-line human readable summary.
func (o *Output) Summary() string {
	s := fmt.Sprintf("Collected %d files (%s) in %s, %d/%d services succeeded",
		o.TotalFiles, formatBytes(o.TotalSize), o.TotalDuration.Round(100*time.Millisecond),
		o.SuccessCount(), len(o.Results))
	if w := o.WarningCount(); w > 0 {
		s += fmt.Sprintf(", %d warnings", w)
	}
	return s
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
