package serializer

// Destinations accepted by --output.
const (
	// ConfigMapURIScheme selects a ConfigMap destination, cm://namespace/name.
	// Used by the agent to leave a bundle summary or check result in-cluster.
	ConfigMapURIScheme = "cm://"

	// StdoutURI writes to stdout. An empty --output means the same.
	StdoutURI = "-"

	// ConfigMapDataKey is the key the serialized document is stored under.
	ConfigMapDataKey = "result"
)
