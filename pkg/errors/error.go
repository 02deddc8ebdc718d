package errors

import (
	"errors"
	"fmt"

	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
)

// Kind is the named error taxonomy for the engine. Every error the
// engine hands back to a caller for programmatic handling carries one
// of these as its root cause, reachable via errors.As(err, &kindErr).
type Kind int

const (
	// UnsupportedProtocol: URL scheme is neither http nor https.
	UnsupportedProtocol Kind = iota
	// OriginMismatch: request URL's origin differs from the agent's bound origin.
	OriginMismatch
	// AgentBusy: a second send was attempted on an in-flight agent.
	AgentBusy
	// ConnectionClosed: EOF before the response could be parsed.
	ConnectionClosed
	// UnexpectedEof: EOF mid-header or mid-body.
	UnexpectedEof
	// MalformedChunk: chunked decoder hit an invalid size line or missing framing CRLF.
	MalformedChunk
	// BodyAlreadyRead: second materialization of a body.
	BodyAlreadyRead
	// UnsupportedContent: form materialization on a non-urlencoded body, or multipart request body.
	UnsupportedContent
	// Aborted: operation cancelled by caller or by the agent-local controller.
	Aborted
)

func (k Kind) String() string {
	switch k {
	case UnsupportedProtocol:
		return "UnsupportedProtocol"
	case OriginMismatch:
		return "OriginMismatch"
	case AgentBusy:
		return "AgentBusy"
	case ConnectionClosed:
		return "ConnectionClosed"
	case UnexpectedEof:
		return "UnexpectedEof"
	case MalformedChunk:
		return "MalformedChunk"
	case BodyAlreadyRead:
		return "BodyAlreadyRead"
	case UnsupportedContent:
		return "UnsupportedContent"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Error is a named-kind error. Context is free-form explanatory text;
// Err, if set, is the underlying cause (a transport error, a parse
// failure, etc) and is reachable via errors.Unwrap.
type Error struct {
	K       Kind
	Context string
	Err     error
}

func New(k Kind, context string) *Error {
	return &Error{K: k, Context: context}
}

func Wrap(k Kind, context string, err error) *Error {
	return &Error{K: k, Context: context, Err: pkgerrors.WithStack(err)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.K, e.Context, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.K, e.Context)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errors.New(AgentBusy, "")) style comparisons
// against the Kind alone, ignoring Context/Err.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.K == other.K
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.K, true
	}
	return 0, false
}

// prefixFromDepth builds an indent prefix, e.g. depth 2 -> "    ".
func prefixFromDepth(depth int) string {
	var p []byte
	for i := 0; i < depth; i++ {
		p = append(p, "  "...)
	}
	return string(p)
}

// PrintError recursively flattens a *multierror.Error (as produced by
// Pool.Close aggregating per-agent teardown failures) and logs each
// leaf at Debug level, indenting by nesting depth.
func PrintError(err error, depth int) {
	var (
		merr *multierror.Error
		eerr *Error
	)
	if errors.As(err, &merr) {
		for _, v := range merr.Errors {
			PrintError(v, depth+1)
		}
	} else if errors.As(err, &eerr) {
		log.Debug().Str("kind", eerr.K.String()).Str("context", eerr.Context).
			Err(eerr.Err).Msg(prefixFromDepth(depth) + "error")
	} else {
		log.Debug().Err(err).Msg(prefixFromDepth(depth) + "error")
	}
}
