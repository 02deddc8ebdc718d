package http

import (
	"errors"
	"io"
	"io/ioutil"
	"strings"
	"testing"

	errors2 "github.com/assetnote/fetchgo/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestBody(content, contentType string) (*Body, *[]bool, *[]error) {
	var forcedCalls []bool
	var errCalls []error
	b := newBody(contentType, ioutil.NopCloser(strings.NewReader(content)), func(forced bool, err error) {
		forcedCalls = append(forcedCalls, forced)
		errCalls = append(errCalls, err)
	})
	return b, &forcedCalls, &errCalls
}

func TestBody_TextMaterializes(t *testing.T) {
	b, forced, errs := newTestBody("hello", "text/plain")
	text, err := b.Text()
	assert.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []bool{false}, *forced)
	assert.Equal(t, []error{nil}, *errs)
}

func TestBody_SecondMaterializationFailsWithBodyAlreadyRead(t *testing.T) {
	b, _, _ := newTestBody("hello", "text/plain")
	_, err := b.Text()
	assert.NoError(t, err)

	_, err = b.Bytes()
	assert.Error(t, err)
	kind, ok := errors2.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors2.BodyAlreadyRead, kind)
}

func TestBody_BlobPreservesContentType(t *testing.T) {
	b, _, _ := newTestBody("binary-ish", "application/octet-stream")
	blob, err := b.Blob()
	assert.NoError(t, err)
	assert.Equal(t, "application/octet-stream", blob.ContentType)
	assert.Equal(t, []byte("binary-ish"), blob.Bytes)
}

func TestBody_CancelFiresOnDoneForced(t *testing.T) {
	b, forced, _ := newTestBody("hello", "text/plain")
	err := b.Cancel()
	assert.NoError(t, err)
	assert.Equal(t, []bool{true}, *forced)
}

func TestBody_OnDoneFiresExactlyOnce(t *testing.T) {
	b, forced, _ := newTestBody("hello", "text/plain")
	b.finish(false, nil)
	b.finish(true, errors.New("ignored, already done"))
	assert.Len(t, *forced, 1)
}

func TestBody_ReadBypassesUsedFlag(t *testing.T) {
	b, _, _ := newTestBody("hello", "text/plain")
	buf := make([]byte, 5)
	n, err := b.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, b.Used())
}

func TestBody_ReadErrorIsFatal(t *testing.T) {
	b := newBody("text/plain", ioutil.NopCloser(errReader{}), func(forced bool, err error) {})
	_, err := b.Read(make([]byte, 4))
	assert.Error(t, err)
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestBody_FormEntriesParsesUrlencoded(t *testing.T) {
	b, _, _ := newTestBody("a=1&b=2", "application/x-www-form-urlencoded")
	values, err := b.FormEntries()
	assert.NoError(t, err)
	assert.Equal(t, "1", values.Get("a"))
	assert.Equal(t, "2", values.Get("b"))
}

func TestBody_FormEntriesRejectsMultipart(t *testing.T) {
	b, _, _ := newTestBody("irrelevant", "multipart/form-data; boundary=x")
	_, err := b.FormEntries()
	assert.Error(t, err)
	kind, ok := errors2.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errors2.UnsupportedContent, kind)
}

func TestBody_JSONMapDecodesStringValues(t *testing.T) {
	b, _, _ := newTestBody(`{"a":"1","b":"2"}`, "application/json")
	m, err := b.JSONMap()
	assert.NoError(t, err)
	assert.Equal(t, "1", m["a"])
	assert.Equal(t, "2", m["b"])
}
