// Package discovery finds the live cluster objects that belong to an ops service.
//
// A Discoverer resolves the custom resource kinds named in the service catalog
// through the discovery API, lists them with the dynamic client, and lists core
// workloads (deployments, statefulsets, daemonsets, replicasets, services, pods,
// jobs, cronjobs) with the typed clientset, filtered by name pattern or label
// selector.
//
// # Failure Isolation
//
// A failure listing one kind never aborts discovery of other kinds. It is
// returned as a Warning and recorded in the bundle summary. An API group the
// cluster does not serve is not a failure; it simply yields no resources.
//
// # Rate Limiting and Caching
//
// Every API call waits on a shared golang.org/x/time/rate limiter (DefaultQPS,
// DefaultBurst). Lists are cached per (kind, namespace) for the Discoverer's
// lifetime, so auto scope does not list the same namespace once per service.
//
// # Usage
//
//	d := discovery.New(clients.Kube, clients.Dynamic, clients.Discovery)
//	ns, err := d.DetectNamespace(ctx, catalog)
//	if err != nil {
//	    return err
//	}
//	svc, _ := catalog.Get(opsservice.TypeBroker)
//	res, err := d.Discover(ctx, svc, ns)
//	for _, w := range res.Warnings {
//	    slog.Warn("discovery warning", slog.String("detail", w.String()))
//	}
//
// # Deployment Probe
//
// IsDeployed answers whether the orchestration controller API is served with a
// single discovery call. The check command uses it to pick its defaults.
package discovery
