package http

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// BodyKind identifies which of the three request body shapes is
// populated on a RequestBody.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyText
	BodyBytes
	BodyStream
)

// RequestBody is one of {utf-8 text, raw byte buffer, lazy byte
// stream} a request descriptor carries.
type RequestBody struct {
	Kind   BodyKind
	Text   string
	Bytes  []byte
	Stream io.Reader
}

// TextBody wraps UTF-8 text as a request body.
func TextBody(s string) *RequestBody {
	return &RequestBody{Kind: BodyText, Text: s}
}

// BytesBody wraps a raw byte buffer as a request body.
func BytesBody(b []byte) *RequestBody {
	return &RequestBody{Kind: BodyBytes, Bytes: b}
}

// StreamBody wraps a lazy byte stream as a request body. Framing
// falls back to chunked transfer-encoding unless the caller has
// already set content-length or transfer-encoding on the request.
func StreamBody(r io.Reader) *RequestBody {
	return &RequestBody{Kind: BodyStream, Stream: r}
}

// Request is the caller-facing request descriptor: an absolute URL
// (whose origin must match the agent it's sent on), an upper-case
// method token, an ordered case-insensitive header list, an optional
// body, and an optional cancellation token.
type Request struct {
	URL     string
	Method  string
	Headers Headers
	Body    *RequestBody
	Cancel  context.Context
}

// NewRequest builds a Request with the method upper-cased.
func NewRequest(method, rawurl string) *Request {
	return &Request{
		Method: strings.ToUpper(method),
		URL:    rawurl,
	}
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.URL)
}

// SetHeader sets name/value, replacing any existing occurrence.
func (r *Request) SetHeader(name, value string) *Request {
	r.Headers.Set(name, value)
	return r
}

// WithBody attaches a body and returns the request for chaining.
func (r *Request) WithBody(b *RequestBody) *Request {
	r.Body = b
	return r
}

// WithCancel attaches a cancellation token and returns the request
// for chaining.
func (r *Request) WithCancel(ctx context.Context) *Request {
	r.Cancel = ctx
	return r
}

// hasContent reports whether this request carries a body.
func (r *Request) hasContent() bool {
	return r.Body != nil && r.Body.Kind != BodyNone
}
