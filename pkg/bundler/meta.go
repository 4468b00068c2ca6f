package bundler

import (
	"fmt"
	"time"

	"github.com/edgeops/opsctl/pkg/bundler/result"
	"github.com/edgeops/opsctl/pkg/header"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"gopkg.in/yaml.v3"
)

const (
	// MetaKind is the document kind of bundle.yaml.
	MetaKind = "SupportBundle"
	// MetaFileName is written under <namespace>/meta/.
	MetaFileName = "bundle.yaml"
)

// Meta describes one bundle run.
type Meta struct {
	header.Header `json:",inline" yaml:",inline"`

	RunID            string            `json:"runId" yaml:"runId"`
	CollectedAt      time.Time         `json:"collectedAt" yaml:"collectedAt"`
	Namespace        string            `json:"namespace" yaml:"namespace"`
	RequestedScope   opsservice.Type   `json:"requestedScope" yaml:"requestedScope"`
	ResolvedServices []opsservice.Type `json:"resolvedServices" yaml:"resolvedServices"`
	DeployedServices []opsservice.Type `json:"deployedServices,omitempty" yaml:"deployedServices,omitempty"`
	LogAgeSeconds    int64             `json:"logAgeSeconds" yaml:"logAgeSeconds"`
	IncludeTraces    bool              `json:"includeTraces" yaml:"includeTraces"`
	Tool             ToolInfo          `json:"tool" yaml:"tool"`
	Cluster          ClusterInfo       `json:"cluster" yaml:"cluster"`
	Services         []ServiceSummary  `json:"services" yaml:"services"`
}

// ToolInfo identifies the binary that produced the bundle.
type ToolInfo struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// ClusterInfo describes the cluster the bundle was collected from.
type ClusterInfo struct {
	Host          string `json:"host,omitempty" yaml:"host,omitempty"`
	ServerVersion string `json:"serverVersion,omitempty" yaml:"serverVersion,omitempty"`
	Platform      string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// ServiceSummary is the per-service outcome recorded in bundle.yaml.
type ServiceSummary struct {
	Name     opsservice.Type `json:"name" yaml:"name"`
	Success  bool            `json:"success" yaml:"success"`
	Files    int             `json:"files" yaml:"files"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func newMeta(now time.Time) *Meta {
	m := &Meta{CollectedAt: now.UTC()}
	m.Set(MetaKind, now)
	return m
}

func (m *Meta) addResults(results []*result.Result) {
	for _, r := range results {
		s := ServiceSummary{
			Name:     r.Service,
			Success:  r.Success,
			Files:    len(r.Files),
			Warnings: r.Warnings,
		}
		if len(r.Errors) > 0 {
			s.Error = r.Errors[0]
		}
		m.Services = append(m.Services, s)
	}
}

func (m *Meta) marshal() ([]byte, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle metadata: %w", err)
	}
	return b, nil
}
