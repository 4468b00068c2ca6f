package collector

import (
	"context"
	"path"
	"time"

	"github.com/edgeops/opsctl/pkg/opsservice"
)

// File is one named payload destined for the bundle.
type File struct {
	Namespace string
	Service   opsservice.Type
	// Subfolder is optional, e.g. "traces".
	Subfolder string
	Name      string
	Data      []byte
}

// Dir returns the directory of the file inside the bundle.
func (f File) Dir() string {
	return path.Join(f.Namespace, string(f.Service), f.Subfolder)
}

// Path returns the archive path <namespace>/<service>/[subfolder/]<name>.
func (f File) Path() string {
	return path.Join(f.Dir(), f.Name)
}

// Request is the per-run input shared by every collector.
type Request struct {
	// Namespace is the detected platform namespace.
	Namespace string
	// Now is the collection start time. All cutoffs are computed from it.
	Now time.Time
	// LogAge bounds log and trace entries to [Now-LogAge, Now].
	LogAge time.Duration
	// IncludeTraces enables the trace fetcher for services that expose traces.
	IncludeTraces bool
}

// Since returns the inclusive cutoff for log and trace entries.
func (r Request) Since() time.Time {
	return r.Now.Add(-r.LogAge)
}

// Result is what one collector produced.
type Result struct {
	Service opsservice.Type
	Files   []File
	// Dirs lists directories that must exist even when empty, such as a
	// traces folder for a window without traces.
	Dirs []string
}

// Collector gathers the diagnostics of one ops service.
// Implementations isolate per-resource failures and report them as warnings;
// an error return means the service as a whole could not be collected.
type Collector interface {
	Service() opsservice.Type
	Collect(ctx context.Context, req Request) (*Result, error)
}
