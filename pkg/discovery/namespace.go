package discovery

import (
	"context"
	"log/slog"

	"github.com/edgeops/opsctl/pkg/opsservice"
)

// DetectNamespace finds the namespace the platform is deployed in. It looks
// for the platform instance resource first, then orchestration resources,
// and falls back to the catalog default.
func (d *Discoverer) DetectNamespace(ctx context.Context, catalog *opsservice.Catalog) (string, error) {
	for _, t := range []opsservice.Type{opsservice.TypeMeta, opsservice.TypeOrc} {
		svc, ok := catalog.Get(t)
		if !ok {
			continue
		}
		crs, _, err := d.CustomResources(ctx, svc.APIs, "")
		if err != nil {
			return "", err
		}
		for _, r := range crs {
			if r.Namespace != "" {
				slog.Debug("detected platform namespace",
					slog.String("namespace", r.Namespace),
					slog.String("from", r.Kind+"/"+r.Name))
				return r.Namespace, nil
			}
		}
	}

	slog.Debug("platform namespace not detected, using default",
		slog.String("namespace", catalog.DefaultNamespace))
	return catalog.DefaultNamespace, nil
}
