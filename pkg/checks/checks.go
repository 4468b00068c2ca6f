package checks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/k8s/client"
	"github.com/edgeops/opsctl/pkg/opsservice"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilversion "k8s.io/apimachinery/pkg/util/version"
)

// DefaultMinKubernetesVersion is the oldest cluster version the platform supports.
const DefaultMinKubernetesVersion = "1.25.0"

// Checker evaluates pre- and post-deployment health checks against a cluster.
type Checker struct {
	version    string
	minVersion string
	clients    *client.Clients
	catalog    *opsservice.Catalog
}

// Option is a functional option for configuring Checker instances.
type Option func(*Checker)

// WithVersion sets the tool version recorded in results.
func WithVersion(version string) Option {
	return func(c *Checker) {
		c.version = version
	}
}

// WithMinKubernetesVersion overrides DefaultMinKubernetesVersion.
func WithMinKubernetesVersion(v string) Option {
	return func(c *Checker) {
		if v != "" {
			c.minVersion = v
		}
	}
}

// WithClients sets the cluster clients.
func WithClients(cl *client.Clients) Option {
	return func(c *Checker) {
		c.clients = cl
	}
}

// WithCatalog sets the service catalog.
func WithCatalog(cat *opsservice.Catalog) Option {
	return func(c *Checker) {
		c.catalog = cat
	}
}

// New creates a new Checker with the provided options.
func New(opts ...Option) *Checker {
	c := &Checker{minVersion: DefaultMinKubernetesVersion}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request selects what a run evaluates.
type Request struct {
	OpsService opsservice.Type
	// Namespace overrides namespace detection when set.
	Namespace      string
	PreDeployment  bool
	PostDeployment bool
}

// Run evaluates the requested phases and returns a result document.
// Individual check failures are reported in the result, not as errors.
func (c *Checker) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if c.clients == nil {
		return nil, fmt.Errorf("cluster clients are required")
	}
	if c.catalog == nil {
		cat, err := opsservice.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load service catalog: %w", err)
		}
		c.catalog = cat
	}

	disc := discovery.New(c.clients.Kube, c.clients.Dynamic, c.clients.Discovery)

	ns := req.Namespace
	if ns == "" {
		detected, err := disc.DetectNamespace(ctx, c.catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to detect platform namespace: %w", err)
		}
		ns = detected
	}

	res := &Result{
		Namespace:      ns,
		OpsService:     req.OpsService.String(),
		PreDeployment:  req.PreDeployment,
		PostDeployment: req.PostDeployment,
	}
	res.Set(Kind, start)
	if c.version != "" {
		res.Metadata["version"] = c.version
	}

	if req.PreDeployment {
		res.add(c.checkKubernetesVersion(ctx, disc))
		res.add(c.checkNodes(ctx))
	}

	if req.PostDeployment {
		services, err := c.postServices(ctx, disc, req.OpsService, ns)
		if err != nil {
			return nil, err
		}
		for _, svc := range services {
			for _, chk := range c.checkService(ctx, disc, svc, ns) {
				res.add(chk)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.finish(time.Since(start))

	slog.Debug("checks completed",
		"passed", res.Summary.Passed,
		"warnings", res.Summary.Warnings,
		"failed", res.Summary.Failed,
		"status", res.Summary.Status,
		"duration", res.Summary.Duration)

	return res, nil
}

func (c *Checker) checkKubernetesVersion(ctx context.Context, disc *discovery.Discoverer) Check {
	chk := Check{
		Name:     "kubernetes-version",
		Phase:    PhasePre,
		Expected: ">= " + c.minVersion,
	}

	info, err := disc.ServerVersion(ctx)
	if err != nil {
		chk.Status = StatusFailed
		chk.Message = err.Error()
		return chk
	}
	chk.Actual = info.GitVersion

	have, err := utilversion.ParseGeneric(info.GitVersion)
	if err != nil {
		chk.Status = StatusSkipped
		chk.Message = fmt.Sprintf("unparsable server version: %v", err)
		return chk
	}
	want, err := utilversion.ParseGeneric(c.minVersion)
	if err != nil {
		chk.Status = StatusSkipped
		chk.Message = fmt.Sprintf("invalid minimum version: %v", err)
		return chk
	}

	if have.AtLeast(want) {
		chk.Status = StatusPassed
	} else {
		chk.Status = StatusFailed
		chk.Message = fmt.Sprintf("expected %s, got %s", chk.Expected, chk.Actual)
	}
	return chk
}

func (c *Checker) checkNodes(ctx context.Context) Check {
	chk := Check{
		Name:     "nodes",
		Phase:    PhasePre,
		Expected: "all nodes Ready",
	}

	nodes, err := c.clients.Kube.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		chk.Status = StatusFailed
		chk.Message = fmt.Sprintf("failed to list nodes: %v", err)
		return chk
	}
	if len(nodes.Items) == 0 {
		chk.Status = StatusFailed
		chk.Actual = "0 nodes"
		chk.Message = "cluster has no nodes"
		return chk
	}

	var notReady []string
	for i := range nodes.Items {
		if !nodeReady(&nodes.Items[i]) {
			notReady = append(notReady, nodes.Items[i].Name)
		}
	}
	ready := len(nodes.Items) - len(notReady)
	chk.Actual = fmt.Sprintf("%d/%d Ready", ready, len(nodes.Items))

	switch {
	case ready == 0:
		chk.Status = StatusFailed
		chk.Message = "no node is Ready"
	case len(notReady) > 0:
		chk.Status = StatusWarning
		chk.Message = "not ready: " + strings.Join(notReady, ", ")
	default:
		chk.Status = StatusPassed
	}
	return chk
}

func nodeReady(n *corev1.Node) bool {
	for _, cond := range n.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// postServices resolves the services post-deployment checks cover. Auto
// covers every concrete service that is deployed.
func (c *Checker) postServices(ctx context.Context, disc *discovery.Discoverer, t opsservice.Type, ns string) ([]opsservice.Service, error) {
	if t != opsservice.TypeAuto {
		svc, ok := c.catalog.Get(t)
		if !ok {
			return nil, fmt.Errorf("no catalog entry for %s", t)
		}
		return []opsservice.Service{svc}, nil
	}

	var out []opsservice.Service
	for _, st := range opsservice.Concrete() {
		svc, ok := c.catalog.Get(st)
		if !ok {
			continue
		}
		a, _, err := disc.Availability(ctx, svc, ns)
		if err != nil {
			return nil, err
		}
		if a.Deployed(svc) {
			out = append(out, svc)
		}
	}
	return out, nil
}

// checkService runs the post-deployment checks of one service: its APIs are
// served, its custom resources exist and its pods are healthy.
func (c *Checker) checkService(ctx context.Context, disc *discovery.Discoverer, svc opsservice.Service, ns string) []Check {
	name := svc.Name.String()
	var out []Check

	for _, api := range svc.APIs {
		gv := api.GroupVersion()
		chk := Check{Name: "api", Phase: PhasePost, Service: name, Expected: gv.String() + " served"}
		deployed, err := discovery.IsDeployed(ctx, c.clients.Discovery, gv)
		switch {
		case err != nil:
			chk.Status = StatusFailed
			chk.Message = err.Error()
		case deployed:
			chk.Status = StatusPassed
			chk.Actual = "served"
		default:
			chk.Status = StatusFailed
			chk.Actual = "not served"
		}
		out = append(out, chk)
	}

	if len(svc.APIs) > 0 {
		chk := Check{Name: "custom-resources", Phase: PhasePost, Service: name}
		crs, warns, err := disc.CustomResources(ctx, svc.APIs, ns)
		switch {
		case err != nil:
			chk.Status = StatusFailed
			chk.Message = err.Error()
		case len(warns) > 0:
			chk.Status = StatusWarning
			chk.Actual = fmt.Sprintf("%d", len(crs))
			chk.Message = warns[0].String()
		case len(crs) == 0 && svc.RequiresCustomResources:
			chk.Status = StatusFailed
			chk.Expected = ">= 1"
			chk.Actual = "0"
			chk.Message = "no custom resources found in " + ns
		case len(crs) == 0:
			chk.Status = StatusWarning
			chk.Actual = "0"
			chk.Message = "no custom resources found in " + ns
		default:
			chk.Status = StatusPassed
			chk.Actual = fmt.Sprintf("%d", len(crs))
		}
		out = append(out, chk)
	}

	if !svc.Workloads.IsEmpty() {
		out = append(out, c.checkPods(ctx, disc, svc, ns))
	}
	return out
}

func (c *Checker) checkPods(ctx context.Context, disc *discovery.Discoverer, svc opsservice.Service, ns string) Check {
	chk := Check{Name: "pods", Phase: PhasePost, Service: svc.Name.String(), Expected: "all pods Running"}

	w := svc.Workloads
	w.Kinds = []opsservice.WorkloadKind{opsservice.WorkloadPod}
	pods, warns, err := disc.Workloads(ctx, ns, w)
	if err != nil {
		chk.Status = StatusFailed
		chk.Message = err.Error()
		return chk
	}
	if len(warns) > 0 {
		chk.Status = StatusWarning
		chk.Message = warns[0].String()
		return chk
	}
	if len(pods) == 0 {
		chk.Status = StatusFailed
		chk.Actual = "0 pods"
		chk.Message = "no pods found in " + ns
		return chk
	}

	var unhealthy, restarted []string
	running := 0
	for _, r := range pods {
		p, ok := r.Pod()
		if !ok {
			continue
		}
		switch p.Status.Phase {
		case corev1.PodRunning, corev1.PodSucceeded:
			running++
		default:
			unhealthy = append(unhealthy, fmt.Sprintf("%s (%s)", p.Name, p.Status.Phase))
		}
		for _, cs := range p.Status.ContainerStatuses {
			if cs.RestartCount > 0 {
				restarted = append(restarted, fmt.Sprintf("%s/%s x%d", p.Name, cs.Name, cs.RestartCount))
			}
		}
	}
	chk.Actual = fmt.Sprintf("%d/%d Running", running, len(pods))

	switch {
	case len(unhealthy) > 0:
		chk.Status = StatusFailed
		chk.Message = "not running: " + strings.Join(unhealthy, ", ")
	case len(restarted) > 0:
		chk.Status = StatusWarning
		chk.Message = "restarted: " + strings.Join(restarted, ", ")
	default:
		chk.Status = StatusPassed
	}
	return chk
}
