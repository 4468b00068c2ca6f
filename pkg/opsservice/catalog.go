package opsservice

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// WorkloadKind names a core workload type collected alongside custom resources.
type WorkloadKind string

const (
	WorkloadDeployment  WorkloadKind = "deployment"
	WorkloadStatefulSet WorkloadKind = "statefulset"
	WorkloadDaemonSet   WorkloadKind = "daemonset"
	WorkloadReplicaSet  WorkloadKind = "replicaset"
	WorkloadService     WorkloadKind = "service"
	WorkloadPod         WorkloadKind = "pod"
	WorkloadJob         WorkloadKind = "job"
	WorkloadCronJob     WorkloadKind = "cronjob"
)

// DefaultWorkloadKinds is used when a service does not list workload kinds.
func DefaultWorkloadKinds() []WorkloadKind {
	return []WorkloadKind{
		WorkloadDeployment,
		WorkloadStatefulSet,
		WorkloadDaemonSet,
		WorkloadReplicaSet,
		WorkloadService,
		WorkloadPod,
		WorkloadJob,
	}
}

func (k WorkloadKind) isValid() bool {
	switch k {
	case WorkloadDeployment, WorkloadStatefulSet, WorkloadDaemonSet, WorkloadReplicaSet,
		WorkloadService, WorkloadPod, WorkloadJob, WorkloadCronJob:
		return true
	}
	return false
}

// API is one served group/version and the custom resource kinds a service owns in it.
type API struct {
	Group   string   `json:"group" yaml:"group"`
	Version string   `json:"version" yaml:"version"`
	Kinds   []string `json:"kinds" yaml:"kinds"`
}

// GroupVersion returns the API as a schema.GroupVersion.
func (a API) GroupVersion() schema.GroupVersion {
	return schema.GroupVersion{Group: a.Group, Version: a.Version}
}

// Workloads selects core workloads by name pattern and/or label selector.
type Workloads struct {
	Names         []string       `json:"names,omitempty" yaml:"names,omitempty"`
	LabelSelector string         `json:"labelSelector,omitempty" yaml:"labelSelector,omitempty"`
	Kinds         []WorkloadKind `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

// IsEmpty reports whether no workload selection is configured.
func (w Workloads) IsEmpty() bool {
	return len(w.Names) == 0 && w.LabelSelector == ""
}

// EffectiveKinds returns the configured kinds or the defaults.
func (w Workloads) EffectiveKinds() []WorkloadKind {
	if len(w.Kinds) == 0 {
		return DefaultWorkloadKinds()
	}
	return w.Kinds
}

// ExtraNamespace collects additional workloads for a service outside the platform namespace.
type ExtraNamespace struct {
	Namespace string    `json:"namespace" yaml:"namespace"`
	Workloads Workloads `json:"workloads" yaml:"workloads"`
}

// TraceEndpoint locates a diagnostics service that exports distributed traces.
type TraceEndpoint struct {
	Service string `json:"service" yaml:"service"`
	Port    string `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
	Scheme  string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
}

// Service describes what belongs to one ops service.
type Service struct {
	Name                    Type             `json:"name" yaml:"name"`
	APIs                    []API            `json:"apis,omitempty" yaml:"apis,omitempty"`
	Workloads               Workloads        `json:"workloads,omitempty" yaml:"workloads,omitempty"`
	ExtraNamespaces         []ExtraNamespace `json:"extraNamespaces,omitempty" yaml:"extraNamespaces,omitempty"`
	Traces                  *TraceEndpoint   `json:"traces,omitempty" yaml:"traces,omitempty"`
	AlwaysPresent           bool             `json:"alwaysPresent,omitempty" yaml:"alwaysPresent,omitempty"`
	RequiresCustomResources bool             `json:"requiresCustomResources,omitempty" yaml:"requiresCustomResources,omitempty"`
}

// Catalog is the full set of service definitions.
type Catalog struct {
	DefaultNamespace string    `json:"defaultNamespace" yaml:"defaultNamespace"`
	Services         []Service `json:"services" yaml:"services"`
}

// DefaultNamespace is used when the platform namespace cannot be detected.
const DefaultNamespace = "azure-iot-operations"

var (
	//go:embed data/catalog.yaml
	catalogData []byte

	catalogOnce   sync.Once
	cachedCatalog *Catalog
	cachedErr     error
)

// Default returns the embedded catalog. It is parsed once per process.
func Default() (*Catalog, error) {
	catalogOnce.Do(func() {
		cachedCatalog, cachedErr = Parse(catalogData)
	})
	return cachedCatalog, cachedErr
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse service catalog: %w", err)
	}
	if c.DefaultNamespace == "" {
		c.DefaultNamespace = DefaultNamespace
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every concrete and synthetic service is defined exactly once.
func (c *Catalog) Validate() error {
	seen := make(map[Type]bool, len(c.Services))
	for _, s := range c.Services {
		if !s.Name.IsConcrete() {
			return fmt.Errorf("service catalog: unknown service %q", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("service catalog: service %q defined more than once", s.Name)
		}
		seen[s.Name] = true

		for _, api := range s.APIs {
			if api.Version == "" || len(api.Kinds) == 0 {
				return fmt.Errorf("service catalog: %s api %q needs a version and at least one kind", s.Name, api.Group)
			}
		}
		for _, k := range s.Workloads.Kinds {
			if !k.isValid() {
				return fmt.Errorf("service catalog: %s has unknown workload kind %q", s.Name, k)
			}
		}
		for _, ns := range s.ExtraNamespaces {
			if ns.Namespace == "" {
				return fmt.Errorf("service catalog: %s has an extra namespace without a name", s.Name)
			}
		}
		if s.Traces != nil && (s.Traces.Service == "" || s.Traces.Port == "") {
			return fmt.Errorf("service catalog: %s trace endpoint needs service and port", s.Name)
		}
	}

	required := append(Concrete(), Synthetic()...)
	for _, t := range required {
		if !seen[t] {
			return fmt.Errorf("service catalog: missing definition for service %q", t)
		}
	}
	return nil
}

// Get returns the definition for t.
func (c *Catalog) Get(t Type) (Service, bool) {
	for _, s := range c.Services {
		if s.Name == t {
			return s, true
		}
	}
	return Service{}, false
}

// ControllerAPI returns the orchestration resource-controller API, whose
// presence marks the platform as deployed.
func (c *Catalog) ControllerAPI() (API, bool) {
	s, ok := c.Get(TypeOrc)
	if !ok || len(s.APIs) == 0 {
		return API{}, false
	}
	return s.APIs[0], true
}
