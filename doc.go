/*
Package fetchgo is the root of a connection-pooled HTTP/1.1 client
library: a fetch-compatible request/response surface, redirects
surfaced on the Response rather than auto-followed, lazy non-buffered
response bodies, and a per-origin pool of reusable connections bounded
by concurrency and idle-timeout limits.

There are no exports in the root package; the public surface lives in
pkg/http.

CLI tools under cmd/ include:
	- fetchctl - a small command-line client over pkg/http (get, post, pool-stats)
	- testServer - a fixed-scenario fasthttp server for exercising the client by hand
*/
package fetchgo
