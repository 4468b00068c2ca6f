package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Clients bundles the API clients the collector needs against one cluster.
type Clients struct {
	Kube      kubernetes.Interface
	Dynamic   dynamic.Interface
	Discovery discovery.DiscoveryInterface
	Config    *rest.Config
}

var (
	clientOnce    sync.Once
	cachedClients *Clients
	clientErr     error
)

// GetClients returns singleton clients for the default kubeconfig and current
// context, creating them on first call. Long-running server mode uses this so
// every request shares one connection pool.
//
// For explicit kubeconfig paths or contexts, use Build directly.
func GetClients() (*Clients, error) {
	clientOnce.Do(func() {
		cachedClients, clientErr = Build("", "")
	})
	return cachedClients, clientErr
}

// Build creates clients from the given kubeconfig file and context.
//
// Parameters:
//   - kubeconfig: Path to kubeconfig file. If empty, uses automatic discovery:
//     1. KUBECONFIG environment variable
//     2. ~/.kube/config (if it exists)
//     3. In-cluster configuration (service account)
//   - kubeContext: Context name to use. If empty, the kubeconfig's current
//     context is used.
//
// Example:
//
//	clients, err := client.Build("", "edge-cluster")
//	if err != nil {
//	    return fmt.Errorf("failed to build clients: %w", err)
//	}
func Build(kubeconfig, kubeContext string) (*Clients, error) {
	config, err := RestConfig(kubeconfig, kubeContext)
	if err != nil {
		return nil, err
	}
	return ForConfig(config)
}

// RestConfig resolves the rest.Config for kubeconfig and kubeContext.
func RestConfig(kubeconfig, kubeContext string) (*rest.Config, error) {
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")

		if kubeconfig == "" {
			kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
			if _, err := os.Stat(kubeconfig); os.IsNotExist(err) {
				kubeconfig = ""
			}
		}
	}

	// Nothing on disk and no context requested: try in-cluster.
	if kubeconfig == "" && kubeContext == "" {
		config, err := clientcmd.BuildConfigFromFlags("", "")
		if err != nil {
			return nil, fmt.Errorf("failed to build kube config: %w", err)
		}
		return config, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = kubeconfig
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build kube config for context %q: %w", kubeContext, err)
	}
	return config, nil
}

// ForConfig creates all clients from an existing rest.Config.
func ForConfig(config *rest.Config) (*Clients, error) {
	kube, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Clients{
		Kube:      kube,
		Dynamic:   dyn,
		Discovery: kube.Discovery(),
		Config:    config,
	}, nil
}
