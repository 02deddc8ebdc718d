package http

import (
	"bufio"
	"bytes"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteChunked_EncodesFramesAndTerminator(t *testing.T) {
	var buf bytes.Buffer
	err := writeChunked(&buf, strings.NewReader("hello world"))
	assert.NoError(t, err)
	assert.Equal(t, "b\r\nhello world\r\n0\r\n\r\n", buf.String())
}

// zeroThenDataReader returns one (0, nil) read before yielding its
// actual data, to exercise writeChunked's empty-read skip without
// relying on io.MultiReader's own EOF-absorbing behavior.
type zeroThenDataReader struct {
	data     string
	yielded  bool
	returned bool
}

func (r *zeroThenDataReader) Read(p []byte) (int, error) {
	if !r.yielded {
		r.yielded = true
		return 0, nil
	}
	if r.returned {
		return 0, io.EOF
	}
	r.returned = true
	return copy(p, r.data), nil
}

func TestWriteChunked_SkipsEmptyReads(t *testing.T) {
	var buf bytes.Buffer
	err := writeChunked(&buf, &zeroThenDataReader{data: "ok"})
	assert.NoError(t, err)
	assert.Equal(t, "2\r\nok\r\n0\r\n\r\n", buf.String())
}

func TestChunkedReader_DecodesMultipleChunks(t *testing.T) {
	raw := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	var doneForced *bool
	var doneErr error
	cr := newChunkedReader(br, func(forced bool, err error) {
		f := forced
		doneForced = &f
		doneErr = err
	})

	data, err := ioutil.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.NotNil(t, doneForced)
	assert.False(t, *doneForced)
	assert.NoError(t, doneErr)
}

func TestChunkedReader_AcceptsBareLFLineEndings(t *testing.T) {
	raw := "5\nhello\n0\n\n"
	br := bufio.NewReader(strings.NewReader(raw))
	cr := newChunkedReader(br, nil)

	data, err := ioutil.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestChunkedReader_DiscardsChunkExtensions(t *testing.T) {
	raw := "5;ext=value\r\nhello\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	cr := newChunkedReader(br, nil)

	data, err := ioutil.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestChunkedReader_DiscardsTrailerHeaders(t *testing.T) {
	raw := "5\r\nhello\r\n0\r\nX-Trailer: ignored\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	cr := newChunkedReader(br, nil)

	data, err := ioutil.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestChunkedReader_RejectsMalformedChunkSize(t *testing.T) {
	raw := "zz\r\nhello\r\n"
	br := bufio.NewReader(strings.NewReader(raw))

	var doneForced bool
	cr := newChunkedReader(br, func(forced bool, err error) {
		doneForced = forced
	})

	_, err := ioutil.ReadAll(cr)
	assert.Error(t, err)
	assert.True(t, doneForced)
}

func TestChunkedEncodeDecodeRoundTrip(t *testing.T) {
	original := strings.Repeat("the quick brown fox jumps over the lazy dog ", 500)

	var buf bytes.Buffer
	err := writeChunked(&buf, strings.NewReader(original))
	assert.NoError(t, err)

	br := bufio.NewReader(&buf)
	cr := newChunkedReader(br, nil)
	decoded, err := ioutil.ReadAll(cr)
	assert.NoError(t, err)
	assert.Equal(t, original, string(decoded))
}
