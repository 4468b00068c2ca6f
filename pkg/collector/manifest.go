package collector

import (
	"fmt"

	"github.com/edgeops/opsctl/pkg/discovery"
	"gopkg.in/yaml.v3"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// Manifest renders r as a YAML document with apiVersion and kind set and
// managed fields removed.
func Manifest(r discovery.Resource) ([]byte, error) {
	var obj map[string]interface{}
	switch o := r.Object.(type) {
	case nil:
		return nil, fmt.Errorf("resource %s/%s has no object", r.Kind, r.Name)
	case *unstructured.Unstructured:
		obj = o.DeepCopy().Object
	default:
		var err error
		obj, err = runtime.DefaultUnstructuredConverter.ToUnstructured(r.Object)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s/%s: %w", r.Kind, r.Name, err)
		}
	}

	obj["apiVersion"] = r.APIVersion
	obj["kind"] = r.Kind
	unstructured.RemoveNestedField(obj, "metadata", "managedFields")

	data, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s/%s: %w", r.Kind, r.Name, err)
	}
	return data, nil
}

// manifestFileName returns <kind>.<name>.yaml.
func manifestFileName(r discovery.Resource) string {
	return fmt.Sprintf("%s.%s.yaml", r.FileKind(), r.Name)
}
