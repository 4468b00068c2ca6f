package collector

import (
	"testing"

	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/edgeops/opsctl/pkg/k8s/fakecluster"
	"github.com/edgeops/opsctl/pkg/opsservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestManifest_TypedObject(t *testing.T) {
	pod := fakecluster.Pod("ns", "aio-broker-0", 0, "broker")
	r := discovery.Resource{APIVersion: "v1", Kind: "Pod", Namespace: "ns", Name: pod.Name, Object: pod}

	data, err := Manifest(r)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "v1", doc["apiVersion"])
	assert.Equal(t, "Pod", doc["kind"])

	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "aio-broker-0", meta["name"])
	assert.NotContains(t, meta, "managedFields")

	// The source object is untouched.
	assert.NotEmpty(t, pod.ManagedFields)
	assert.Equal(t, "pod.aio-broker-0.yaml", manifestFileName(r))
}

func TestManifest_CustomResource(t *testing.T) {
	api := opsservice.API{Group: "mqttbroker.iotoperations.azure.com", Version: "v1beta1"}
	cr := fakecluster.CustomResource(api, "Broker", "ns", "default")
	r := discovery.Resource{APIVersion: api.GroupVersion().String(), Kind: "Broker", Name: "default", Object: cr}

	data, err := Manifest(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiVersion: mqttbroker.iotoperations.azure.com/v1beta1")
	assert.Contains(t, string(data), "ready: true")
	assert.Equal(t, "broker.default.yaml", manifestFileName(r))
}

func TestManifest_NoObject(t *testing.T) {
	_, err := Manifest(discovery.Resource{Kind: "Pod", Name: "x"})
	assert.Error(t, err)
}
