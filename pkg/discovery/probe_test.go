package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/edgeops/opsctl/pkg/k8s/fakecluster"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"
)

func TestIsDeployed(t *testing.T) {
	cat := testCatalog(t)
	api, ok := cat.ControllerAPI()
	require.True(t, ok)

	tests := []struct {
		name    string
		cluster *fakecluster.Cluster
		want    bool
	}{
		{
			name:    "controller API served",
			cluster: fakecluster.New(fakecluster.WithAPIs(api)),
			want:    true,
		},
		{
			name:    "controller API absent",
			cluster: fakecluster.New(fakecluster.WithServices(cat, opsservice.TypeBroker)),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsDeployed(context.Background(), tt.cluster.Discovery, api.GroupVersion())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDeployed_Error(t *testing.T) {
	cat := testCatalog(t)
	api, _ := cat.ControllerAPI()

	c := fakecluster.New()
	c.Discovery.PrependReactor("get", "resource", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("unauthorized")
	})

	_, err := IsDeployed(context.Background(), c.Discovery, api.GroupVersion())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestAvailability(t *testing.T) {
	cat := testCatalog(t)
	dr := service(t, cat, opsservice.TypeDeviceRegistry)

	t.Run("device registry needs resources", func(t *testing.T) {
		c := fakecluster.New(fakecluster.WithServices(cat, opsservice.TypeDeviceRegistry))
		a, warns, err := newDiscoverer(c).Availability(context.Background(), dr, testNS)
		require.NoError(t, err)
		assert.Empty(t, warns)
		assert.True(t, a.APIServed)
		assert.False(t, a.HasCustomResources)
		assert.False(t, a.Deployed(dr))
	})

	t.Run("device registry with an asset", func(t *testing.T) {
		c := fakecluster.New(
			fakecluster.WithServices(cat, opsservice.TypeDeviceRegistry),
			fakecluster.WithCustomResources(fakecluster.CustomResource(dr.APIs[0], "Asset", testNS, "thermostat")),
		)
		a, _, err := newDiscoverer(c).Availability(context.Background(), dr, testNS)
		require.NoError(t, err)
		assert.True(t, a.Deployed(dr))
	})

	t.Run("broker is deployed when its API is served", func(t *testing.T) {
		broker := service(t, cat, opsservice.TypeBroker)
		c := fakecluster.New(fakecluster.WithServices(cat, opsservice.TypeBroker))
		a, _, err := newDiscoverer(c).Availability(context.Background(), broker, testNS)
		require.NoError(t, err)
		assert.True(t, a.Deployed(broker))
	})
}

func TestDetectNamespace(t *testing.T) {
	cat := testCatalog(t)
	meta := service(t, cat, opsservice.TypeMeta)
	orc := service(t, cat, opsservice.TypeOrc)

	tests := []struct {
		name    string
		cluster *fakecluster.Cluster
		want    string
	}{
		{
			name: "from instance resource",
			cluster: fakecluster.New(
				fakecluster.WithServices(cat, opsservice.TypeMeta, opsservice.TypeOrc),
				fakecluster.WithCustomResources(fakecluster.CustomResource(meta.APIs[0], "Instance", "edge-ops", "aio")),
			),
			want: "edge-ops",
		},
		{
			name: "from orchestration resources",
			cluster: fakecluster.New(
				fakecluster.WithServices(cat, opsservice.TypeOrc),
				fakecluster.WithCustomResources(fakecluster.CustomResource(orc.APIs[0], "Target", "orc-ns", "t1")),
			),
			want: "orc-ns",
		},
		{
			name:    "default",
			cluster: fakecluster.New(),
			want:    opsservice.DefaultNamespace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newDiscoverer(tt.cluster).DetectNamespace(context.Background(), cat)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
