// Package checks evaluates platform health before and after deployment.
//
// Pre-deployment checks look at the cluster itself: the Kubernetes server
// version and node readiness. Post-deployment checks look at one ops service
// (or every deployed service for auto): its APIs are served, its custom
// resources exist and its pods are running without restarts.
//
// ResolvePhases turns the optional --pre and --post flags into the phases to
// run. Without flags, pre-deployment checks run only when the orchestration
// controller API is not yet served.
//
// Results are documents with a standard header and can be rendered as YAML,
// JSON or an aligned table:
//
//	c := checks.New(checks.WithClients(clients), checks.WithVersion(version))
//	res, err := c.Run(ctx, checks.Request{OpsService: opsservice.TypeBroker, PostDeployment: true})
package checks
