/*
Package errors provides the engine's named error taxonomy and a
multierror-aware printer.

Every error surfaced to callers for programmatic handling carries one
of the Kind values (UnsupportedProtocol, OriginMismatch, AgentBusy,
ConnectionClosed, UnexpectedEof, MalformedChunk, BodyAlreadyRead,
UnsupportedContent, Aborted) reachable via errors.As.

Usage

	import errors2 "github.com/assetnote/fetchgo/pkg/errors"

	if err := pool.Close(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, v := range merr.Errors {
				errors2.PrintError(v, 0)
			}
		}
	}

*/
package errors
