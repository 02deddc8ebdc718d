package http

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
)

// parsedHead is the result of reading a response's status line and
// header block, before any body framing decision is made.
type parsedHead struct {
	Version string
	Status  int
	Text    string
	Headers Headers
}

// parseResponseHead reads the status line and header block from br,
// the status line is tokenized on single spaces
// into protocol/status/remainder-as-text; headers are split at the
// first colon with lowercased, trimmed names, terminated by a blank
// line. Lines may end on CRLF or a bare LF.
func parseResponseHead(br *bufio.Reader) (*parsedHead, error) {
	statusLine, err := readLine(br)
	if err != nil {
		return nil, errors2.Wrap(errors2.ConnectionClosed, "reading status line", err)
	}
	if len(statusLine) == 0 {
		return nil, errors2.New(errors2.ConnectionClosed, "empty status line")
	}

	version, rest, ok := cutSpace(string(statusLine))
	if !ok {
		return nil, errors2.New(errors2.UnexpectedEof, "malformed status line: "+string(statusLine))
	}
	statusStr, text, _ := cutSpace(rest)
	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return nil, errors2.Wrap(errors2.UnexpectedEof, "parsing status code", err)
	}

	var headers Headers
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, errors2.Wrap(errors2.UnexpectedEof, "reading header line", err)
		}
		if len(line) == 0 {
			break
		}
		name, value, ok := splitHeaderLine(string(line))
		if !ok {
			return nil, errors2.New(errors2.UnexpectedEof, "malformed header line: "+string(line))
		}
		headers.Add(name, value)
	}

	return &parsedHead{Version: version, Status: status, Text: text, Headers: headers}, nil
}

// cutSpace splits s at its first run of spaces, returning the token
// before it and the (space-trimmed) remainder.
func cutSpace(s string) (token, rest string, ok bool) {
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return s, "", false
	}
	return s[:i], strings.TrimLeft(s[i+1:], " "), true
}

// splitHeaderLine splits at the first colon; the name is lowercased
// and trimmed, the value trimmed of leading/trailing whitespace.
func splitHeaderLine(line string) (name, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	name = strings.ToLower(strings.TrimSpace(line[:i]))
	value = strings.TrimSpace(line[i+1:])
	return name, value, true
}

// bodyFraming describes which framing mode a response head selected.
type bodyFraming int

const (
	framingEmpty bodyFraming = iota
	framingChunked
	framingContentLength
	framingUntilClose
)

// classifyBodyFraming implements the body-framing decision tree.
func classifyBodyFraming(method string, status int, headers Headers) bodyFraming {
	if method == "HEAD" || (status >= 100 && status < 200) || status == 204 || status == 304 {
		return framingEmpty
	}
	if headers.Contains("transfer-encoding", "chunked") {
		return framingChunked
	}
	if headers.Has("content-length") {
		return framingContentLength
	}
	return framingUntilClose
}

// framedBodyResult carries the reader to hand to Body plus the
// connection-reuse decision computed once the framing mode is known:
// the connection is reusable iff the response carries either
// content-length or chunked transfer-encoding.
type framedBodyResult struct {
	Reader   io.ReadCloser
	Reusable bool
}

// buildFramedBody applies the body-framing decision tree and wraps
// the result with transparent gzip/deflate decompression.
// onChunkedDone, if the framing mode is chunked, is invoked by the
// chunked decoder's TRAILER state the instant the trailer is fully
// read, so the agent can be released without waiting for the caller
// to drain the Body — the "signal connection-readable-done" contract
// below.
func buildFramedBody(br *bufio.Reader, method string, status int, headers *Headers, onChunkedDone func(forced bool, err error)) (*framedBodyResult, error) {
	framing := classifyBodyFraming(method, status, *headers)

	switch framing {
	case framingEmpty:
		reusable := headers.Has("content-length") || headers.Contains("transfer-encoding", "chunked")
		headers.Del("content-length")
		headers.Del("transfer-encoding")
		headers.Del("content-encoding")
		return &framedBodyResult{Reader: io.NopCloser(strings.NewReader("")), Reusable: reusable}, nil

	case framingChunked:
		cr := newChunkedReader(br, onChunkedDone)
		encoding, _ := headers.Get("content-encoding")
		decoded, err := decompressingReader(cr, strings.ToLower(encoding))
		if err != nil {
			return nil, err
		}
		return &framedBodyResult{Reader: decoded, Reusable: true}, nil

	case framingContentLength:
		lengthStr, _ := headers.Get("content-length")
		length, err := strconv.ParseInt(strings.TrimSpace(lengthStr), 10, 64)
		if err != nil {
			return nil, errors2.Wrap(errors2.UnexpectedEof, "parsing content-length", err)
		}
		limited := io.NopCloser(io.LimitReader(br, length))
		encoding, _ := headers.Get("content-encoding")
		decoded, err := decompressingReader(limited, strings.ToLower(encoding))
		if err != nil {
			return nil, err
		}
		return &framedBodyResult{Reader: decoded, Reusable: true}, nil

	default: // framingUntilClose
		encoding, _ := headers.Get("content-encoding")
		decoded, err := decompressingReader(io.NopCloser(br), strings.ToLower(encoding))
		if err != nil {
			return nil, err
		}
		return &framedBodyResult{Reader: decoded, Reusable: false}, nil
	}
}
