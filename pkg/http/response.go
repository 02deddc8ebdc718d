package http

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Response is the caller-facing response descriptor: protocol
// version, numeric status, status text, header list, and a lazy byte
// stream body. Ok is derived: true for status in [200, 300).
//
// The body is at-most-once consumable (see Body). A Response is
// produced by Agent.Send and handed an onDone hook that the agent
// uses to learn when the connection can be reused; callers never
// invoke that hook directly.
type Response struct {
	HTTPVersion string
	StatusCode  int
	StatusText  string
	Headers     Headers
	URL         string

	body *Body
}

// Ok reports whether StatusCode is in [200, 300), matching the
// fetch-compatible `ok` flag.
func (r *Response) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Body returns the lazy streaming body. Calling this does not by
// itself consume anything; materializing or reading from the
// returned Body does.
func (r *Response) Body() *Body {
	return r.body
}

func (r Response) MarshalZerologObject(e *zerolog.Event) {
	e.Str("url", r.URL).
		Int("status", r.StatusCode).
		Str("version", r.HTTPVersion)
}

func (r *Response) String() string {
	return fmt.Sprintf("%s %d %s %s", r.HTTPVersion, r.StatusCode, r.StatusText, r.URL)
}
