package serializer

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgeops/opsctl/pkg/k8s/client"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ParseConfigMapURI splits cm://namespace/name.
func ParseConfigMapURI(uri string) (namespace, name string, err error) {
	rest := strings.TrimPrefix(uri, ConfigMapURIScheme)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI %q, expected %snamespace/name", uri, ConfigMapURIScheme)
	}
	return parts[0], parts[1], nil
}

// ConfigMapWriter stores the serialized document in a ConfigMap, creating
// or updating it.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	kube      kubernetes.Interface
}

// NewConfigMapWriter returns a writer for namespace/name. The cluster client
// is resolved on first use.
func NewConfigMapWriter(namespace, name string, format Format) *ConfigMapWriter {
	if format.IsUnknown() {
		format = FormatJSON
	}
	return &ConfigMapWriter{namespace: namespace, name: name, format: format}
}

// WithClient sets the client used to write the ConfigMap.
func (w *ConfigMapWriter) WithClient(kube kubernetes.Interface) *ConfigMapWriter {
	w.kube = kube
	return w
}

// Serialize implements Serializer.
func (w *ConfigMapWriter) Serialize(ctx context.Context, data any) error {
	b, err := Marshal(w.format, data)
	if err != nil {
		return err
	}

	kube := w.kube
	if kube == nil {
		clients, err := client.GetClients()
		if err != nil {
			return fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		kube = clients.Kube
	}

	cms := kube.CoreV1().ConfigMaps(w.namespace)
	existing, err := cms.Get(ctx, w.name, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		cm := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Name:      w.name,
				Namespace: w.namespace,
				Labels:    map[string]string{"app.kubernetes.io/managed-by": "opsctl"},
			},
			Data: map[string]string{ConfigMapDataKey: string(b)},
		}
		if _, err := cms.Create(ctx, cm, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("failed to create configmap %s/%s: %w", w.namespace, w.name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to get configmap %s/%s: %w", w.namespace, w.name, err)
	}

	if existing.Data == nil {
		existing.Data = make(map[string]string)
	}
	existing.Data[ConfigMapDataKey] = string(b)
	if _, err := cms.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update configmap %s/%s: %w", w.namespace, w.name, err)
	}
	return nil
}
