package discovery

import (
	"context"
	"log/slog"

	"github.com/edgeops/opsctl/pkg/opsservice"
)

// Availability is the derived deployment state of one service.
type Availability struct {
	Service            opsservice.Type `json:"service" yaml:"service"`
	APIServed          bool            `json:"apiServed" yaml:"apiServed"`
	HasCustomResources bool            `json:"hasCustomResources" yaml:"hasCustomResources"`
	HasWorkloads       bool            `json:"hasWorkloads" yaml:"hasWorkloads"`
}

// Deployed reports whether the service counts as deployed for auto scope.
func (a Availability) Deployed(svc opsservice.Service) bool {
	switch {
	case svc.RequiresCustomResources:
		return a.HasCustomResources
	case len(svc.APIs) == 0:
		return a.HasWorkloads
	default:
		return a.APIServed
	}
}

// Availability computes the deployment state of svc in namespace.
func (d *Discoverer) Availability(ctx context.Context, svc opsservice.Service, namespace string) (Availability, []Warning, error) {
	a := Availability{Service: svc.Name}
	var warns []Warning

	for _, api := range svc.APIs {
		served, err := d.IsServed(ctx, api.GroupVersion())
		if err != nil {
			if ctx.Err() != nil {
				return a, nil, ctx.Err()
			}
			warns = append(warns, Warning{Kind: api.GroupVersion().String(), Err: err})
			continue
		}
		a.APIServed = a.APIServed || served
	}

	if a.APIServed {
		crs, w, err := d.CustomResources(ctx, svc.APIs, namespace)
		if err != nil {
			return a, nil, err
		}
		warns = append(warns, w...)
		a.HasCustomResources = len(crs) > 0
	}

	if len(svc.APIs) == 0 {
		wls, w, err := d.Workloads(ctx, namespace, svc.Workloads)
		if err != nil {
			return a, nil, err
		}
		warns = append(warns, w...)
		a.HasWorkloads = len(wls) > 0
	}

	slog.Debug("service availability",
		slog.String("service", svc.Name.String()),
		slog.Bool("apiServed", a.APIServed),
		slog.Bool("hasCustomResources", a.HasCustomResources))

	return a, warns, nil
}
