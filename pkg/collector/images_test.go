package collector

import (
	"context"
	"testing"
	"time"

	"github.com/edgeops/opsctl/pkg/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func podResource(p *corev1.Pod) discovery.Resource {
	return discovery.Resource{APIVersion: "v1", Kind: "Pod", Namespace: p.Namespace, Name: p.Name, Object: p}
}

func TestCollectImages(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "pod-a", Namespace: "ns"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Name: "c1", Image: "mcr.microsoft.com/azureiotoperations/broker:1.0.0"},
				{Name: "c2", Image: "busybox"},
			},
			InitContainers: []corev1.Container{
				{Name: "init", Image: "repo/init@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"},
			},
		},
	}

	inv, err := CollectImages(context.Background(), []discovery.Resource{podResource(pod)}, now)
	require.NoError(t, err)
	assert.Equal(t, ImageInventoryKind, inv.Kind)
	require.Len(t, inv.Images, 3)

	byRef := make(map[string]Image)
	for _, img := range inv.Images {
		byRef[img.Reference] = img
	}

	broker := byRef["mcr.microsoft.com/azureiotoperations/broker:1.0.0"]
	assert.Equal(t, "mcr.microsoft.com", broker.Domain)
	assert.Equal(t, "azureiotoperations/broker", broker.Repository)
	assert.Equal(t, "1.0.0", broker.Tag)
	assert.Equal(t, []string{"ns/pod-a:c1"}, broker.Locations)

	bb := byRef["busybox"]
	assert.Equal(t, "docker.io", bb.Domain)
	assert.Equal(t, "library/busybox", bb.Repository)

	init := byRef["repo/init@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"]
	assert.Equal(t, []string{"ns/pod-a:init-init"}, init.Locations)
	assert.NotEmpty(t, init.Digest)

	data, err := inv.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: ImageInventory")
}

func TestCollectImages_InvalidReference(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "p", Namespace: "ns"},
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "c", Image: "UPPER/Case:tag"}}},
	}
	inv, err := CollectImages(context.Background(), []discovery.Resource{podResource(pod)}, time.Now())
	require.NoError(t, err)
	require.Len(t, inv.Images, 1)
	assert.NotEmpty(t, inv.Images[0].Error)
}

func TestCollectImages_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "p", Namespace: "ns"}}
	inv, err := CollectImages(ctx, []discovery.Resource{podResource(pod)}, time.Now())
	assert.Nil(t, inv)
	assert.Equal(t, context.Canceled, err)
}
