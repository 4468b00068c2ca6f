package discovery

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
)

// IsDeployed reports whether the cluster serves gv. It issues exactly one
// discovery call; a NotFound response means not deployed.
func IsDeployed(ctx context.Context, disc discovery.DiscoveryInterface, gv schema.GroupVersion) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := disc.ServerResourcesForGroupVersion(gv.String())
	observeCall("probe", err)
	if err == nil {
		return true, nil
	}
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to probe %s: %w", gv, err)
}
