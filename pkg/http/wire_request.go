package http

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
)

// serializeRequest writes req onto w as an HTTP/1.1 request, applying
// the following header-defaulting and body-framing rules:
//
//   - request-line: "METHOD path?query HTTP/1.1\r\n" from the URL's
//     path and raw query.
//   - Host defaults from origin if absent; Date defaults to now (UTC,
//     RFC 7231) if absent.
//   - text body: content-type text/plain;charset=UTF-8 and
//     content-length default if absent.
//   - buffer body: content-length and content-type
//     application/octet-stream default if absent.
//   - stream body with neither content-length nor transfer-encoding
//     set: transfer-encoding chunked, encoded on the fly.
//   - content-encoding gzip/deflate compresses before framing.
//
// A request that sets both transfer-encoding and content-length is
// rejected as MalformedChunk before a single byte is written.
func serializeRequest(w *bufio.Writer, req *Request, origin Origin, u *url.URL) error {
	if req.Headers.Has("transfer-encoding") && req.Headers.Has("content-length") {
		return errors2.New(errors2.MalformedChunk, "request sets both transfer-encoding and content-length")
	}

	headers := req.Headers
	headers.SetIfAbsent("Host", origin.hostHeaderValue())
	headers.SetIfAbsent("Date", time.Now().UTC().Format(http.TimeFormat))
	lengthPreset := headers.Has("content-length")

	var bodyReader io.Reader
	switch {
	case !req.hasContent():
		// no body: nothing to frame.
	case req.Body.Kind == BodyText:
		headers.SetIfAbsent("Content-Type", "text/plain; charset=UTF-8")
		headers.SetIfAbsent("Content-Length", strconv.Itoa(len([]byte(req.Body.Text))))
		bodyReader = strings.NewReader(req.Body.Text)
	case req.Body.Kind == BodyBytes:
		headers.SetIfAbsent("Content-Length", strconv.Itoa(len(req.Body.Bytes)))
		headers.SetIfAbsent("Content-Type", "application/octet-stream")
		bodyReader = bytes.NewReader(req.Body.Bytes)
	case req.Body.Kind == BodyStream:
		if !headers.Has("content-length") && !headers.Has("transfer-encoding") {
			headers.Set("Transfer-Encoding", "chunked")
		}
		bodyReader = req.Body.Stream
	}

	encoding, hasEncoding := headers.Get("content-encoding")
	if hasEncoding && bodyReader != nil && req.Body.Kind != BodyStream && !lengthPreset {
		// The content-length defaulted above counted uncompressed bytes:
		// compress text and buffer bodies up front and recount.
		var compressed bytes.Buffer
		cw, err := compressingWriter(&compressed, encoding)
		if err != nil {
			return errors2.Wrap(errors2.UnsupportedProtocol, "building content-encoding writer", err)
		}
		if _, err := io.Copy(cw, bodyReader); err != nil || cw.Close() != nil {
			return errors2.New(errors2.UnexpectedEof, "compressing request body")
		}
		headers.Set("Content-Length", strconv.Itoa(compressed.Len()))
		bodyReader = &compressed
	} else if hasEncoding && bodyReader != nil {
		// Compress before framing: wrap bodyReader through a pipe so the
		// content-length (if the caller pre-set it for the compressed
		// size) or chunked framing below sees the already-compressed
		// bytes.
		pr, pw := io.Pipe()
		cw, err := compressingWriter(pw, encoding)
		if err != nil {
			return errors2.Wrap(errors2.UnsupportedProtocol, "building content-encoding writer", err)
		}
		go func() {
			_, copyErr := io.Copy(cw, bodyReader)
			cw.Close()
			pw.CloseWithError(copyErr)
		}()
		bodyReader = pr
	}

	if err := writeRequestLine(w, req.Method, u); err != nil {
		return err
	}
	if err := writeHeaderBlock(w, headers); err != nil {
		return err
	}

	if bodyReader != nil {
		isChunked := headers.Contains("transfer-encoding", "chunked")
		if isChunked {
			if err := writeChunked(w, bodyReader); err != nil {
				return errors2.Wrap(errors2.UnexpectedEof, "writing chunked request body", err)
			}
		} else {
			if _, err := io.Copy(w, bodyReader); err != nil {
				return errors2.Wrap(errors2.UnexpectedEof, "writing request body", err)
			}
		}
	}
	return w.Flush()
}

func writeRequestLine(w *bufio.Writer, method string, u *url.URL) error {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if _, err := w.WriteString(method); err != nil {
		return err
	}
	if err := w.WriteByte(' '); err != nil {
		return err
	}
	if _, err := w.WriteString(path); err != nil {
		return err
	}
	if _, err := w.WriteString(" HTTP/1.1\r\n"); err != nil {
		return err
	}
	return nil
}

func writeHeaderBlock(w *bufio.Writer, headers Headers) error {
	for _, h := range headers {
		if _, err := w.WriteString(h.Key); err != nil {
			return err
		}
		if _, err := w.WriteString(": "); err != nil {
			return err
		}
		if _, err := w.WriteString(h.Value); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

