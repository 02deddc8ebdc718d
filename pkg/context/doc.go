/*
Package context provides utilities wrapping the native go/context package
for catching and handling multiple interrupts, and for composing two
cancellation sources into one.

The main CLI use-case is to attach an interrupt signal handler to the
global context so a running fetch can be torn down gracefully on
SIGTERM. The main engine use-case is OrCancel, which the agent uses to
combine a caller-supplied abort token with its own agent-local
controller.

	import "github.com/assetnote/fetchgo/pkg/context"

	...

	req.WithCancel(context.Context())
	if _, err := fetchclient.Fetch(req); err != nil {
		log.Fatal().Err(err).Msg("failed to fetch")
	}
*/
package context
