package http

import (
	"compress/flate"
	"compress/gzip"
	"io"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
)

// decompressingReader wraps r with the decoder content-encoding
// names gzip and deflate transparently, decoding before surfacing
// bytes to the caller. No third-party codec improves on
// compress/gzip and compress/flate for these two fixed, RFC-named
// encodings.
func decompressingReader(r io.Reader, contentEncoding string) (io.ReadCloser, error) {
	switch contentEncoding {
	case "", "identity":
		return nopReadCloser{r}, nil
	case "gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors2.Wrap(errors2.UnexpectedEof, "opening gzip body", err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(r), nil
	default:
		// Unrecognized content-encoding: pass through undecoded. Only
		// gzip and deflate are required transparent codecs.
		return nopReadCloser{r}, nil
	}
}

type nopReadCloser struct {
	io.Reader
}

func (nopReadCloser) Close() error { return nil }

// compressingWriter wraps w so writes are compressed with
// contentEncoding before hitting the wire, for request bodies that
// opt into compression.
func compressingWriter(w io.Writer, contentEncoding string) (io.WriteCloser, error) {
	switch contentEncoding {
	case "gzip":
		return gzip.NewWriter(w), nil
	case "deflate":
		return flate.NewWriter(w, flate.DefaultCompression)
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
