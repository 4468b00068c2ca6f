package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/edgeops/opsctl/pkg/opsservice"
	"golang.org/x/time/rate"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

const (
	// DefaultQPS is the steady-state rate of API calls across one collection run.
	DefaultQPS = 20
	// DefaultBurst is the number of API calls allowed above DefaultQPS in a burst.
	DefaultBurst = 40
)

// Resource describes one live object found for a service.
type Resource struct {
	APIVersion string
	// Kind uses the Kubernetes spelling, e.g. "Broker" or "Pod".
	Kind      string
	Namespace string
	Name      string
	Labels    map[string]string
	Object    runtime.Object
}

// FileKind is the lowercase kind used in bundle file names.
func (r Resource) FileKind() string {
	return strings.ToLower(r.Kind)
}

// Pod returns the typed pod when r is a pod.
func (r Resource) Pod() (*corev1.Pod, bool) {
	p, ok := r.Object.(*corev1.Pod)
	return p, ok
}

// Warning records a failure isolated to one kind.
type Warning struct {
	Kind      string
	Namespace string
	Err       error
}

func (w Warning) String() string {
	if w.Namespace == "" {
		return fmt.Sprintf("%s: %v", w.Kind, w.Err)
	}
	return fmt.Sprintf("%s in %s: %v", w.Kind, w.Namespace, w.Err)
}

// Result is the outcome of discovering one service in one namespace.
// Resources are ordered: custom resources in catalog order, then workloads
// in kind order, each group sorted by name.
type Result struct {
	Resources []Resource
	Warnings  []Warning
}

// Discoverer lists custom resources and workloads for ops services.
// It is safe for concurrent use; list results are cached for its lifetime,
// so one Discoverer should serve exactly one collection run.
type Discoverer struct {
	kube      kubernetes.Interface
	dynamic   dynamic.Interface
	discovery discovery.DiscoveryInterface
	limiter   *rate.Limiter

	mu        sync.Mutex
	lists     map[string][]Resource
	apiGroups map[schema.GroupVersion]*metav1.APIResourceList
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLimiter sets the limiter shared by every API call.
func WithLimiter(l *rate.Limiter) Option {
	return func(d *Discoverer) {
		if l != nil {
			d.limiter = l
		}
	}
}

// New returns a Discoverer over the given clients.
// If disc is nil, kube.Discovery() is used.
func New(kube kubernetes.Interface, dyn dynamic.Interface, disc discovery.DiscoveryInterface, opts ...Option) *Discoverer {
	if disc == nil && kube != nil {
		disc = kube.Discovery()
	}
	d := &Discoverer{
		kube:      kube,
		dynamic:   dyn,
		discovery: disc,
		limiter:   rate.NewLimiter(rate.Limit(DefaultQPS), DefaultBurst),
		lists:     make(map[string][]Resource),
		apiGroups: make(map[schema.GroupVersion]*metav1.APIResourceList),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns the custom resources and workloads of svc in namespace.
// Per-kind failures are returned as warnings. The only error is context
// cancellation.
func (d *Discoverer) Discover(ctx context.Context, svc opsservice.Service, namespace string) (*Result, error) {
	res := &Result{}

	crs, warns, err := d.CustomResources(ctx, svc.APIs, namespace)
	if err != nil {
		return nil, err
	}
	res.Resources = append(res.Resources, crs...)
	res.Warnings = append(res.Warnings, warns...)

	wls, warns, err := d.Workloads(ctx, namespace, svc.Workloads)
	if err != nil {
		return nil, err
	}
	res.Resources = append(res.Resources, wls...)
	res.Warnings = append(res.Warnings, warns...)

	slog.Debug("discovered service resources",
		slog.String("service", svc.Name.String()),
		slog.String("namespace", namespace),
		slog.Int("resources", len(res.Resources)),
		slog.Int("warnings", len(res.Warnings)))

	return res, nil
}

// CustomResources lists the catalog kinds of apis in namespace. Kinds whose
// API is not served are skipped without a warning.
func (d *Discoverer) CustomResources(ctx context.Context, apis []opsservice.API, namespace string) ([]Resource, []Warning, error) {
	var (
		out   []Resource
		warns []Warning
	)
	for _, api := range apis {
		gv := api.GroupVersion()
		list, err := d.serverResources(ctx, gv)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			warns = append(warns, Warning{Kind: gv.String(), Err: err})
			continue
		}
		if list == nil {
			continue
		}

		for _, kind := range api.Kinds {
			ar, ok := findAPIResource(list, kind)
			if !ok {
				continue
			}
			items, err := d.listCustomResources(ctx, gv.WithResource(ar.Name), kind, ar.Namespaced, namespace)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				warns = append(warns, Warning{Kind: kind, Namespace: namespace, Err: err})
				slog.Warn("failed to list custom resources",
					slog.String("kind", kind),
					slog.String("group", gv.Group),
					slog.String("error", err.Error()))
				continue
			}
			out = append(out, items...)
		}
	}
	return out, warns, nil
}

// Workloads lists the core workloads selected by w in namespace.
func (d *Discoverer) Workloads(ctx context.Context, namespace string, w opsservice.Workloads) ([]Resource, []Warning, error) {
	if w.IsEmpty() {
		return nil, nil, nil
	}

	filter, err := newWorkloadFilter(w)
	if err != nil {
		return nil, []Warning{{Kind: "labelSelector", Namespace: namespace, Err: err}}, nil
	}

	var (
		out   []Resource
		warns []Warning
	)
	for _, kind := range w.EffectiveKinds() {
		all, err := d.listWorkloads(ctx, namespace, kind)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			warns = append(warns, Warning{Kind: string(kind), Namespace: namespace, Err: err})
			slog.Warn("failed to list workloads",
				slog.String("kind", string(kind)),
				slog.String("namespace", namespace),
				slog.String("error", err.Error()))
			continue
		}
		for _, r := range all {
			if filter.match(r) {
				out = append(out, r)
			}
		}
	}
	return out, warns, nil
}

// Pods returns every pod in namespace, sharing the workload cache.
func (d *Discoverer) Pods(ctx context.Context, namespace string) ([]Resource, error) {
	return d.listWorkloads(ctx, namespace, opsservice.WorkloadPod)
}

// ServerVersion returns the cluster's version information.
func (d *Discoverer) ServerVersion(ctx context.Context) (*version.Info, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	info, err := d.discovery.ServerVersion()
	observeCall("server_version", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get kubernetes version: %w", err)
	}
	return info, nil
}

// IsServed reports whether the API group/version is served by the cluster.
func (d *Discoverer) IsServed(ctx context.Context, gv schema.GroupVersion) (bool, error) {
	list, err := d.serverResources(ctx, gv)
	if err != nil {
		return false, err
	}
	return list != nil, nil
}

// serverResources returns the API resource list for gv, or nil when gv is
// not served. Results are cached.
func (d *Discoverer) serverResources(ctx context.Context, gv schema.GroupVersion) (*metav1.APIResourceList, error) {
	d.mu.Lock()
	list, ok := d.apiGroups[gv]
	d.mu.Unlock()
	if ok {
		return list, nil
	}

	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	list, err := d.discovery.ServerResourcesForGroupVersion(gv.String())
	observeCall("server_resources", err)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to discover %s: %w", gv, err)
		}
		list = nil
	}

	d.mu.Lock()
	d.apiGroups[gv] = list
	d.mu.Unlock()
	return list, nil
}

func (d *Discoverer) listCustomResources(ctx context.Context, gvr schema.GroupVersionResource, kind string, namespaced bool, namespace string) ([]Resource, error) {
	scope := namespace
	if !namespaced {
		scope = ""
	}
	key := fmt.Sprintf("cr/%s/%s", gvr.String(), scope)
	if cached, ok := d.cached(key); ok {
		return cached, nil
	}

	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	var ri dynamic.ResourceInterface = d.dynamic.Resource(gvr)
	if namespaced {
		ri = d.dynamic.Resource(gvr).Namespace(namespace)
	}
	list, err := ri.List(ctx, metav1.ListOptions{})
	observeCall("list_custom_resources", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", gvr.Resource, err)
	}

	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		out = append(out, Resource{
			APIVersion: gvr.GroupVersion().String(),
			Kind:       kind,
			Namespace:  item.GetNamespace(),
			Name:       item.GetName(),
			Labels:     item.GetLabels(),
			Object:     item,
		})
	}
	sortByName(out)

	d.store(key, out)
	return out, nil
}

func (d *Discoverer) cached(key string) ([]Resource, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.lists[key]
	return r, ok
}

func (d *Discoverer) store(key string, r []Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lists[key] = r
}

func (d *Discoverer) wait(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// findAPIResource returns the top-level resource serving kind. Subresources
// such as "brokers/status" are skipped.
func findAPIResource(list *metav1.APIResourceList, kind string) (metav1.APIResource, bool) {
	for _, ar := range list.APIResources {
		if strings.Contains(ar.Name, "/") {
			continue
		}
		if ar.Kind == kind {
			return ar, true
		}
	}
	return metav1.APIResource{}, false
}

func sortByName(rs []Resource) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Namespace != rs[j].Namespace {
			return rs[i].Namespace < rs[j].Namespace
		}
		return rs[i].Name < rs[j].Name
	})
}
