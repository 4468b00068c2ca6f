package collector

import (
	"github.com/edgeops/opsctl/pkg/collector/traces"
	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/opsservice"
)

// Factory creates collectors with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateCollector(spec opsservice.Service) Collector
}

// DefaultFactory creates ServiceCollectors sharing one discoverer, log
// reader, trace source and reporter.
type DefaultFactory struct {
	Discoverer     *discovery.Discoverer
	Logs           LogReader
	Traces         traces.Source
	Reporter       *Reporter
	LogConcurrency int
}

// CreateCollector returns the collector for spec. The meta service also
// produces the image inventory.
func (f *DefaultFactory) CreateCollector(spec opsservice.Service) Collector {
	return &ServiceCollector{
		Spec:           spec,
		Discoverer:     f.Discoverer,
		Logs:           f.Logs,
		Traces:         f.Traces,
		Reporter:       f.Reporter,
		Images:         spec.Name == opsservice.TypeMeta,
		LogConcurrency: f.LogConcurrency,
	}
}
