package discovery

import (
	"context"
	"fmt"

	"github.com/edgeops/opsctl/pkg/opsservice"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// object is any typed API object with object metadata.
type object interface {
	metav1.Object
	runtime.Object
}

// listWorkloads returns every object of kind in namespace, sorted by name.
// Results are cached per (namespace, kind) so services sharing a namespace
// do not list it twice.
func (d *Discoverer) listWorkloads(ctx context.Context, namespace string, kind opsservice.WorkloadKind) ([]Resource, error) {
	key := fmt.Sprintf("workload/%s/%s", kind, namespace)
	if cached, ok := d.cached(key); ok {
		return cached, nil
	}

	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	out, err := d.listTyped(ctx, namespace, kind)
	observeCall("list_"+string(kind), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list %ss: %w", kind, err)
	}
	sortByName(out)

	d.store(key, out)
	return out, nil
}

func (d *Discoverer) listTyped(ctx context.Context, ns string, kind opsservice.WorkloadKind) ([]Resource, error) {
	opts := metav1.ListOptions{}
	var out []Resource

	add := func(apiVersion, k string, obj object) {
		out = append(out, Resource{
			APIVersion: apiVersion,
			Kind:       k,
			Namespace:  obj.GetNamespace(),
			Name:       obj.GetName(),
			Labels:     obj.GetLabels(),
			Object:     obj,
		})
	}

	switch kind {
	case opsservice.WorkloadDeployment:
		l, err := d.kube.AppsV1().Deployments(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("apps/v1", "Deployment", &l.Items[i])
		}
	case opsservice.WorkloadStatefulSet:
		l, err := d.kube.AppsV1().StatefulSets(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("apps/v1", "StatefulSet", &l.Items[i])
		}
	case opsservice.WorkloadDaemonSet:
		l, err := d.kube.AppsV1().DaemonSets(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("apps/v1", "DaemonSet", &l.Items[i])
		}
	case opsservice.WorkloadReplicaSet:
		l, err := d.kube.AppsV1().ReplicaSets(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("apps/v1", "ReplicaSet", &l.Items[i])
		}
	case opsservice.WorkloadService:
		l, err := d.kube.CoreV1().Services(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("v1", "Service", &l.Items[i])
		}
	case opsservice.WorkloadPod:
		l, err := d.kube.CoreV1().Pods(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("v1", "Pod", &l.Items[i])
		}
	case opsservice.WorkloadJob:
		l, err := d.kube.BatchV1().Jobs(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("batch/v1", "Job", &l.Items[i])
		}
	case opsservice.WorkloadCronJob:
		l, err := d.kube.BatchV1().CronJobs(ns).List(ctx, opts)
		if err != nil {
			return nil, err
		}
		for i := range l.Items {
			add("batch/v1", "CronJob", &l.Items[i])
		}
	default:
		return nil, fmt.Errorf("unsupported workload kind %q", kind)
	}
	return out, nil
}
