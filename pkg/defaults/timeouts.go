package defaults

import "time"

// Bundle collection timeouts.
const (
	// BundleHandlerTimeout bounds one bundle request served over HTTP.
	BundleHandlerTimeout = 5 * time.Minute

	// TraceFetchTimeout bounds one trace export call to the broker
	// diagnostics service.
	TraceFetchTimeout = 60 * time.Second
)

// HTTP server timeouts.
const (
	ServerReadTimeout     = 10 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second

	// ServerWriteTimeout must outlive BundleHandlerTimeout so a finished
	// bundle can still be written back.
	ServerWriteTimeout = BundleHandlerTimeout + time.Minute
)
