package http

import (
	"bufio"
	"io"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// chunked decode/encode per RFC 7230 §4.1, with one leniency: a line
// ends on CRLF, but must also be accepted on a bare LF. Wire protocol
// steps are modeled as an explicit switch over named states rather
// than a recursive-descent parser.

type chunkedState int

const (
	stateSize chunkedState = iota
	stateData
	stateAfterChunk
	stateTrailer
	stateDone
)

// chunkedReader decodes a chunked-transfer-encoded body read from r.
// onDone is invoked exactly once, the moment the TRAILER state
// finishes reading the final blank line, so a blocking read on the
// underlying socket doesn't prevent the agent becoming idle. forced
// is false on a clean DONE and true on any decode error, matching
// Body's own onDone contract.
type chunkedReader struct {
	br        *bufio.Reader
	state     chunkedState
	remaining int64 // bytes left in the current DATA chunk
	onDone    func(forced bool, err error)
	doneFired bool
	err       error
}

func newChunkedReader(br *bufio.Reader, onDone func(forced bool, err error)) *chunkedReader {
	return &chunkedReader{br: br, state: stateSize, onDone: onDone}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	for {
		switch c.state {
		case stateSize:
			size, err := c.readChunkSize()
			if err != nil {
				return 0, c.fail(err)
			}
			if size == 0 {
				c.state = stateTrailer
				continue
			}
			c.remaining = size
			c.state = stateData
		case stateData:
			if len(p) == 0 {
				return 0, nil
			}
			n := len(p)
			if int64(n) > c.remaining {
				n = int(c.remaining)
			}
			read, err := c.br.Read(p[:n])
			if err != nil {
				if err == io.EOF {
					err = errors2.New(errors2.UnexpectedEof, "eof mid chunk data")
				}
				return read, c.fail(err)
			}
			c.remaining -= int64(read)
			if c.remaining == 0 {
				c.state = stateAfterChunk
			}
			return read, nil
		case stateAfterChunk:
			if err := consumeLineEnd(c.br); err != nil {
				return 0, c.fail(err)
			}
			c.state = stateSize
		case stateTrailer:
			for {
				line, err := readLine(c.br)
				if err != nil {
					return 0, c.fail(err)
				}
				if len(line) == 0 {
					break
				}
				// discard trailer header lines
			}
			c.state = stateDone
			c.finish(false, nil)
			return 0, io.EOF
		case stateDone:
			return 0, io.EOF
		}
	}
}

// readChunkSize reads one SIZE line and validates it against
// /^[0-9a-fA-F]+$/ after trimming (chunk extensions after ';' are
// accepted and discarded, matching RFC 7230's chunk-ext grammar).
func (c *chunkedReader) readChunkSize() (int64, error) {
	line, err := readLine(c.br)
	if err != nil {
		return 0, err
	}
	if semi := indexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = trimASCIISpace(line)
	if len(line) == 0 {
		return 0, errors2.New(errors2.MalformedChunk, "empty chunk size line")
	}
	var size int64
	for _, b := range line {
		var v int64
		switch {
		case b >= '0' && b <= '9':
			v = int64(b - '0')
		case b >= 'a' && b <= 'f':
			v = int64(b-'a') + 10
		case b >= 'A' && b <= 'F':
			v = int64(b-'A') + 10
		default:
			return 0, errors2.New(errors2.MalformedChunk, "invalid character in chunk size")
		}
		size = size*16 + v
	}
	return size, nil
}

func (c *chunkedReader) fail(err error) error {
	wrapped := err
	if _, ok := errors2.KindOf(err); !ok {
		wrapped = errors2.Wrap(errors2.MalformedChunk, "chunked decode", err)
	}
	c.err = wrapped
	c.finish(true, wrapped)
	return wrapped
}

func (c *chunkedReader) finish(forced bool, err error) {
	if c.doneFired {
		return
	}
	c.doneFired = true
	if c.onDone != nil {
		c.onDone(forced, err)
	}
}

// consumeLineEnd reads the CRLF (or lenient bare LF) that must follow
// chunk data before the next SIZE line.
func consumeLineEnd(br *bufio.Reader) error {
	b, err := br.ReadByte()
	if err != nil {
		return errors2.Wrap(errors2.UnexpectedEof, "reading chunk terminator", err)
	}
	if b == '\r' {
		b, err = br.ReadByte()
		if err != nil {
			return errors2.Wrap(errors2.UnexpectedEof, "reading chunk terminator", err)
		}
	}
	if b != '\n' {
		return errors2.New(errors2.MalformedChunk, "missing CRLF after chunk data")
	}
	return nil
}

// readLine reads bytes up to and including a line terminator,
// accepting either CRLF or a bare LF, and returns the line with the
// terminator stripped.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, errors2.Wrap(errors2.UnexpectedEof, "reading line", err)
	}
	line = line[:len(line)-1] // drop \n
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimASCIISpace(b []byte) []byte {
	for len(b) > 0 && isASCIISpace(b[0]) {
		b = b[1:]
	}
	for len(b) > 0 && isASCIISpace(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// writeChunked encodes src as chunked transfer-encoding onto w,
// skipping empty reads (an empty write would otherwise encode as a
// zero-sized chunk and prematurely terminate the body), and writes
// the terminating "0\r\n\r\n" on a clean EOF.
func writeChunked(w io.Writer, src io.Reader) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Reset()
	if cap(buf.B) < 32*1024 {
		buf.B = make([]byte, 32*1024)
	}
	chunk := buf.B[:32*1024]

	for {
		n, err := src.Read(chunk)
		if n > 0 {
			if werr := writeChunkFrame(w, chunk[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				_, werr := io.WriteString(w, "0\r\n\r\n")
				return werr
			}
			return err
		}
	}
}

func writeChunkFrame(w io.Writer, p []byte) error {
	if len(p) == 0 {
		// skip empty chunks: see writeChunked's doc comment.
		return nil
	}
	sizeLine := appendHex(nil, int64(len(p)))
	if _, err := w.Write(sizeLine); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(p); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func appendHex(dst []byte, v int64) []byte {
	if v == 0 {
		return append(dst, '0')
	}
	const digits = "0123456789abcdef"
	var tmp [16]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = digits[v&0xf]
		v >>= 4
	}
	return append(dst, tmp[i:]...)
}
