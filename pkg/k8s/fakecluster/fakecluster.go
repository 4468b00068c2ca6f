// Package fakecluster builds in-memory clusters from client-go fakes for tests.
//
// A Cluster serves the discovery documents for the API groups it is told about,
// holds custom resources in a fake dynamic client and typed workloads in a fake
// clientset. Resource names are derived the same way the dynamic fake tracker
// derives them, so discovery and listing always agree.
package fakecluster

import (
	"fmt"

	"github.com/edgeops/opsctl/pkg/k8s/client"
	"github.com/edgeops/opsctl/pkg/opsservice"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	kubefake "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"
)

// ServerVersion is the version every fake cluster reports.
const ServerVersion = "v1.31.2"

// Cluster is a fake cluster.
type Cluster struct {
	Kube      *kubefake.Clientset
	Dynamic   *dynamicfake.FakeDynamicClient
	Discovery *fakediscovery.FakeDiscovery
}

type config struct {
	apis    []opsservice.API
	objects []runtime.Object
	crs     []runtime.Object
}

// Option configures a Cluster.
type Option func(*config)

// WithAPIs makes the cluster serve the given API groups.
func WithAPIs(apis ...opsservice.API) Option {
	return func(c *config) {
		c.apis = append(c.apis, apis...)
	}
}

// WithServices makes the cluster serve every API of the given catalog services.
func WithServices(cat *opsservice.Catalog, types ...opsservice.Type) Option {
	return func(c *config) {
		for _, t := range types {
			if svc, ok := cat.Get(t); ok {
				c.apis = append(c.apis, svc.APIs...)
			}
		}
	}
}

// WithObjects adds typed workload objects.
func WithObjects(objs ...runtime.Object) Option {
	return func(c *config) {
		c.objects = append(c.objects, objs...)
	}
}

// WithCustomResources adds custom resources. Their API group must be served.
func WithCustomResources(objs ...*unstructured.Unstructured) Option {
	return func(c *config) {
		for _, o := range objs {
			c.crs = append(c.crs, o)
		}
	}
}

// New builds a fake cluster.
func New(opts ...Option) *Cluster {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	kube := kubefake.NewClientset(cfg.objects...)
	disc := kube.Discovery().(*fakediscovery.FakeDiscovery)
	disc.FakedServerVersion = &version.Info{
		GitVersion: ServerVersion,
		Platform:   "linux/amd64",
		GoVersion:  "go1.23.4",
	}

	listKinds := make(map[schema.GroupVersionResource]string)
	byGV := make(map[string]*metav1.APIResourceList)
	var order []string
	for _, api := range cfg.apis {
		gv := api.GroupVersion().String()
		list, ok := byGV[gv]
		if !ok {
			list = &metav1.APIResourceList{GroupVersion: gv}
			byGV[gv] = list
			order = append(order, gv)
		}
		for _, kind := range api.Kinds {
			gvr := Resource(api.GroupVersion().WithKind(kind))
			listKinds[gvr] = kind + "List"
			list.APIResources = append(list.APIResources,
				metav1.APIResource{Name: gvr.Resource, Kind: kind, Namespaced: true},
				metav1.APIResource{Name: gvr.Resource + "/status", Kind: kind, Namespaced: true},
			)
		}
	}
	for _, gv := range order {
		disc.Resources = append(disc.Resources, byGV[gv])
	}

	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, cfg.crs...)

	return &Cluster{Kube: kube, Dynamic: dyn, Discovery: disc}
}

// Clients returns the fake cluster as client.Clients.
func (c *Cluster) Clients() *client.Clients {
	return &client.Clients{
		Kube:      c.Kube,
		Dynamic:   c.Dynamic,
		Discovery: c.Discovery,
		Config:    &rest.Config{Host: "https://fake.cluster.local"},
	}
}

// Resource returns the plural resource the fake tracker derives for gvk.
func Resource(gvk schema.GroupVersionKind) schema.GroupVersionResource {
	gvr, _ := meta.UnsafeGuessKindToResource(gvk)
	return gvr
}

// CustomResource returns a namespaced custom resource.
func CustomResource(api opsservice.API, kind, namespace, name string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetAPIVersion(api.GroupVersion().String())
	u.SetKind(kind)
	u.SetNamespace(namespace)
	u.SetName(name)
	_ = unstructured.SetNestedField(u.Object, map[string]interface{}{"ready": true}, "spec")
	return u
}

// Pod returns a running pod with one container per name. Restarts is applied
// to every container status.
func Pod(namespace, name string, restarts int32, containers ...string) *corev1.Pod {
	p := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{"app": name},
			ManagedFields: []metav1.ManagedFieldsEntry{
				{Manager: "kubelet", Operation: metav1.ManagedFieldsOperationUpdate},
			},
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning},
	}
	for i, c := range containers {
		p.Spec.Containers = append(p.Spec.Containers, corev1.Container{
			Name:  c,
			Image: fmt.Sprintf("mcr.microsoft.com/azureiotoperations/%s:1.%d.0", c, i),
		})
		p.Status.ContainerStatuses = append(p.Status.ContainerStatuses, corev1.ContainerStatus{
			Name:         c,
			RestartCount: restarts,
		})
	}
	return p
}

// Deployment returns a deployment.
func Deployment(namespace, name string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{"app": name},
		},
	}
}

// Service returns a core service.
func Service(namespace, name string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
	}
}
