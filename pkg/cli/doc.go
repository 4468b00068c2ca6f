// Package cli implements the opsctl command-line interface.
//
// # Overview
//
// opsctl is operator tooling for the edge operations platform running on a
// Kubernetes cluster. It collects diagnostic support bundles, evaluates
// platform health and can run as an in-cluster agent that serves bundles
// over HTTP.
//
// # Commands
//
// support create-bundle - Collect a support bundle:
//
//	opsctl support create-bundle [--ops-service auto|broker|...] [--broker-traces]
//	opsctl support create-bundle --log-age 3600 --bundle-dir /tmp/bundles
//	opsctl support create-bundle --push --registry ghcr.io --repository edgeops/bundles
//
// Discovers the custom resources and workloads of the selected ops service
// (or every deployed service for auto), fetches manifests, container logs
// and optional broker traces, and writes support_bundle_<timestamp>_aio.zip.
// A run summary is written to --output; cm://namespace/name writes it to a
// ConfigMap.
//
// check - Evaluate readiness and health:
//
//	opsctl check [--pre] [--post] [--ops-service broker] [--fail-on-error]
//
// Without --pre or --post, pre-deployment checks run only when the
// orchestration controller API is not deployed yet.
//
// serve - Run the bundle agent:
//
//	opsctl serve --port 8080
//
// version - Print version information.
//
// # Global Flags
//
//	--debug        Enable debug logging
//	--log-json     Output logs in JSON format
//	--help, -h     Show command help
//	--version, -v  Show version information
//
// # Environment Variables
//
//	LOG_LEVEL       Set logging verbosity (debug, info, warn, error)
//	KUBECONFIG      Path to kubeconfig file
//	OPSCTL_CONTEXT  Kubeconfig context
//	OPSCTL_CATALOG  Service catalog override file
//	PORT            Agent listen port
//
// # Exit Codes
//
//	0  Success
//	1  General error (invalid arguments, execution failure)
//	2  Context canceled or timeout
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/edgeops/opsctl/pkg/cli.version=1.0.0'"
package cli
