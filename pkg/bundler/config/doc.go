// Package config holds the bundle request: which ops service to collect,
// how far back to read logs, where to write the archive and how hard to
// drive the cluster API.
//
// A Config is built with functional options and is immutable afterwards,
// so one instance can be shared by every collector of a run:
//
//	cfg := config.NewConfig(
//	    config.WithOpsService(opsservice.TypeBroker),
//	    config.WithLogAgeSeconds(3600),
//	    config.WithIncludeTraces(true),
//	    config.WithBundleDir("/var/tmp"),
//	)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # Default Values
//
//   - OpsService: auto (every service found deployed)
//   - LogAge: 24h
//   - Workers: 4 services collected in parallel
//   - LogConcurrency: 4 log streams per service
//   - API rate limit: discovery.DefaultQPS / discovery.DefaultBurst
//   - OutputFormat: yaml
package config
