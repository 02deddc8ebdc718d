package http

import (
	"encoding/base64"
	"io"
	"net/url"
	"strings"
	"sync/atomic"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
	"github.com/francoispqt/gojay"
)

// Blob is an opaque typed byte buffer: the body materialized without
// interpretation, tagged with the content-type it arrived with.
// Mirrors the fetch API's Blob.
type Blob struct {
	ContentType string
	Bytes       []byte
}

// Body is the lazy, at-most-once-consumable response body. A
// used-flag, set atomically before any materializer
// reads, makes a second materialization call fail with
// BodyAlreadyRead regardless of which materializer is used. Raw
// stream access via Read bypasses the flag entirely — the caller
// takes responsibility for not double-consuming.
type Body struct {
	contentType string
	reader      io.ReadCloser
	used        int32 // atomic: 0 = unread, 1 = a materializer has claimed it
	onDone      func(forced bool, err error)
	doneOnce    int32
}

// newBody wires onDone, the agent's fan-in callback: it
// fires exactly once, from whichever of {clean EOF, explicit Cancel,
// a read/decode error, finalizer reclamation} happens first. forced
// tells the agent the socket must be closed regardless of the
// head-computed reuse decision (cancellation, decode errors, and GC
// reclamation all force-close; a clean EOF does not, by itself).
func newBody(contentType string, reader io.ReadCloser, onDone func(forced bool, err error)) *Body {
	return &Body{contentType: contentType, reader: reader, onDone: onDone}
}

// ContentType returns the content-type the body arrived with.
func (b *Body) ContentType() string { return b.contentType }

// Used reports whether a materializer has already claimed this body.
func (b *Body) Used() bool { return atomic.LoadInt32(&b.used) != 0 }

// Read gives raw access to the decoded (decompressed, de-chunked)
// byte stream, bypassing the used-flag: callers who want to stream
// rather than materialize use this directly.
func (b *Body) Read(p []byte) (int, error) {
	n, err := b.reader.Read(p)
	switch err {
	case nil:
	case io.EOF:
		b.finish(false, nil)
	default:
		// A read/decode error (malformed chunk, transport failure) is
		// fatal to the connection: the socket is not reused after one.
		b.finish(true, err)
	}
	return n, err
}

// Cancel abandons the body: it signals onDone with Aborted, forcing
// the socket closed, and closes the underlying stream. Safe to call
// after the body has already finished; the second call is a no-op.
func (b *Body) Cancel() error {
	err := b.reader.Close()
	b.finish(true, errors2.New(errors2.Aborted, "body cancelled"))
	return err
}

// forceClose is invoked by the agent's finalizer backstop when a
// Response is reclaimed unconsumed.
func (b *Body) forceClose() {
	b.reader.Close()
	b.finish(true, nil)
}

func (b *Body) finish(forced bool, err error) {
	if !atomic.CompareAndSwapInt32(&b.doneOnce, 0, 1) {
		return
	}
	if b.onDone != nil {
		b.onDone(forced, err)
	}
}

// claim marks the body used, atomically, returning BodyAlreadyRead if
// a prior materializer already claimed it.
func (b *Body) claim() error {
	if !atomic.CompareAndSwapInt32(&b.used, 0, 1) {
		return errors2.New(errors2.BodyAlreadyRead, "body stream already read")
	}
	return nil
}

func (b *Body) readAllClaimed() ([]byte, error) {
	defer b.reader.Close()
	data, err := io.ReadAll(b.reader)
	if err != nil {
		b.finish(true, err)
		return nil, errors2.Wrap(errors2.UnexpectedEof, "reading body", err)
	}
	b.finish(false, nil)
	return data, nil
}

// Text materializes the body as UTF-8 text.
func (b *Body) Text() (string, error) {
	if err := b.claim(); err != nil {
		return "", err
	}
	data, err := b.readAllClaimed()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Bytes materializes the body as a raw byte slice.
func (b *Body) Bytes() ([]byte, error) {
	if err := b.claim(); err != nil {
		return nil, err
	}
	return b.readAllClaimed()
}

// Blob materializes the body as an opaque Blob, preserving the
// content-type the response carried.
func (b *Body) Blob() (*Blob, error) {
	if err := b.claim(); err != nil {
		return nil, err
	}
	data, err := b.readAllClaimed()
	if err != nil {
		return nil, err
	}
	return &Blob{ContentType: b.contentType, Bytes: data}, nil
}

// JSON materializes the body and decodes it into v using gojay.
func (b *Body) JSON(v gojay.UnmarshalerJSONObject) error {
	if err := b.claim(); err != nil {
		return err
	}
	data, err := b.readAllClaimed()
	if err != nil {
		return err
	}
	if err := gojay.UnmarshalJSONObject(data, v); err != nil {
		return errors2.Wrap(errors2.UnsupportedContent, "decoding json body", err)
	}
	return nil
}

// JSONMap is a gojay.UnmarshalerJSONObject that decodes a flat JSON
// object of string values into a map[string]string, for callers who
// don't have a typed struct to decode into. gojay streams the decode
// rather than building a generic tree, so (unlike encoding/json) a
// truly untyped decode needs a concrete expected shape; string-keyed,
// string-valued objects are the common case for small API responses.
type JSONMap map[string]string

func (m *JSONMap) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	if *m == nil {
		*m = make(JSONMap)
	}
	var s string
	if err := dec.String(&s); err != nil {
		return err
	}
	(*m)[key] = s
	return nil
}

func (m *JSONMap) NKeys() int { return 0 }

// JSONMap materializes the body and decodes it into a JSONMap (a flat
// object of string values) using gojay.
func (b *Body) JSONMap() (JSONMap, error) {
	var m JSONMap
	if err := b.JSON(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// FormEntries materializes the body as application/x-www-form-urlencoded
// entries. multipart/form-data and any other content-type fail with
// UnsupportedContent.
func (b *Body) FormEntries() (url.Values, error) {
	if strings.HasPrefix(strings.ToLower(b.contentType), "multipart/form-data") {
		return nil, errors2.New(errors2.UnsupportedContent, "multipart/form-data is not supported")
	}
	if !strings.HasPrefix(strings.ToLower(b.contentType), "application/x-www-form-urlencoded") {
		return nil, errors2.New(errors2.UnsupportedContent, "body is not application/x-www-form-urlencoded: "+b.contentType)
	}
	if err := b.claim(); err != nil {
		return nil, err
	}
	data, err := b.readAllClaimed()
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, errors2.Wrap(errors2.UnsupportedContent, "parsing form body", err)
	}
	return values, nil
}

// Base64 is a convenience used by the CLI to print binary bodies
// without corrupting a terminal.
func (blob *Blob) Base64() string {
	return base64.StdEncoding.EncodeToString(blob.Bytes)
}
