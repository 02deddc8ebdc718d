package http

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/valyala/bytebufferpool"
)

// Header encapsulates a header key value entry
// TODO: replace strings with byte slices
type Header struct {
	Key   string
	Value string
}

type Headers []Header

func (rr Headers) MarshalZerologArray(a *zerolog.Array) {
	for _, u := range rr {
		a.Object(u)
	}
}

// Get returns the first value for name, matched case-insensitively.
// Returns "", false if absent.
func (rr Headers) Get(name string) (string, bool) {
	for _, h := range rr {
		if strings.EqualFold(h.Key, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Has reports whether name is present, case-insensitively.
func (rr Headers) Has(name string) bool {
	_, ok := rr.Get(name)
	return ok
}

// GetJoined returns every value for name, case-insensitively, joined
// with ", " the way RFC 7230 treats repeated header fields as a
// single comma-separated list. Used to detect tokens (e.g. "chunked")
// that a malicious or buggy peer might split across duplicate header
// lines.
func (rr Headers) GetJoined(name string) (string, bool) {
	var parts []string
	for _, h := range rr {
		if strings.EqualFold(h.Key, name) {
			parts = append(parts, h.Value)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ", "), true
}

// Contains reports whether name is present, case-insensitively, and
// its (possibly multi-valued) content contains needle, case-insensitively.
// Used for transfer-encoding/content-encoding token matching.
func (rr Headers) Contains(name, needle string) bool {
	v, ok := rr.GetJoined(name)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(needle))
}

// SetIfAbsent appends a Key/Value pair only if name is not already
// present, case-insensitively. This backs the Host/Date/Content-Type/
// Content-Length defaulting rules in serializeRequest.
func (rr *Headers) SetIfAbsent(name, value string) {
	if rr.Has(name) {
		return
	}
	*rr = append(*rr, Header{Key: name, Value: value})
}

// Set replaces all existing values for name (case-insensitively) with
// a single Key/Value pair, appending one if name was absent.
func (rr *Headers) Set(name, value string) {
	out := (*rr)[:0]
	replaced := false
	for _, h := range *rr {
		if strings.EqualFold(h.Key, name) {
			if !replaced {
				out = append(out, Header{Key: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, h)
	}
	if !replaced {
		out = append(out, Header{Key: name, Value: value})
	}
	*rr = out
}

// Del removes all headers matching name, case-insensitively.
func (rr *Headers) Del(name string) {
	out := (*rr)[:0]
	for _, h := range *rr {
		if !strings.EqualFold(h.Key, name) {
			out = append(out, h)
		}
	}
	*rr = out
}

// Add appends name/value unconditionally, preserving append order.
// Used by the wire parser when a response carries duplicate headers.
func (rr *Headers) Add(name, value string) {
	*rr = append(*rr, Header{Key: name, Value: value})
}

func (h Header) MarshalZerologObject(e *zerolog.Event) {
	e.Str("k", h.Key).
		Str("v", h.Value)
}

func (h *Header) AppendBytes(b []byte) []byte {
	b = append(b, h.Key...)
	b = append(b, ": "...)
	b = append(b, h.Value...)
	return b
}

func (h *Header) Write(buf io.Writer) (int, error) {
	var count int
	c, err := buf.Write([]byte(h.Key))
	count += c
	c, err = buf.Write([]byte(":"))
	count += c
	c, err = buf.Write([]byte(h.Value))
	count += c
	return count, err
}

func (h *Header) String() string {
	w := bytebufferpool.Get()
	ret := string(h.AppendBytes(w.B))
	bytebufferpool.Put(w)
	return ret
}

func (h *Header) reset() {
	h.Key = ""
	h.Value = ""
}

var (
	headerPool sync.Pool
)

// AcquireHeader retrieves a header from the shared header pool
func AcquireHeader() *Header {
	v := headerPool.Get()
	if v == nil {
		return &Header{}
	}
	return v.(*Header)
}

// ReleaseHeader releases a header into the shared header pool
func ReleaseHeader(h *Header) {
	h.reset()
	headerPool.Put(h)
}
