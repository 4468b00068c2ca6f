// Package defaults holds the timeout values shared across opsctl.
//
// Timeouts are grouped by the component that applies them:
//
//   - Bundle collection: the HTTP bundle handler and broker trace fetches
//   - HTTP server: read, write, idle and graceful shutdown
//
// Callers derive a child context from their parent and never extend a
// deadline the parent already carries:
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.TraceFetchTimeout)
//	defer cancel()
package defaults
