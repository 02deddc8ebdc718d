package http

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestClient() *Client {
	return NewClient(ClientOptions{PoolOptions: PoolOptions{
		MaxPerHost:     4,
		MaxIdlePerHost: 4,
		IdleTimeout:    time.Minute,
	}})
}

func TestClient_FetchSimpleRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom-Header", "key")
		w.WriteHeader(201)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := newTestClient()
	defer client.Close()

	resp, err := client.Fetch(NewRequest("GET", server.URL+"/foo"))
	assert.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	v, ok := resp.Headers.Get("x-custom-header")
	assert.True(t, ok)
	assert.Equal(t, "key", v)

	body, err := resp.Body().Text()
	assert.NoError(t, err)
	assert.Equal(t, "hello", body)
}

func TestClient_FetchEchoesRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		w.Write(body)
	}))
	defer server.Close()

	client := newTestClient()
	defer client.Close()

	req := NewRequest("POST", server.URL+"/echo").WithBody(TextBody("request body"))
	resp, err := client.Fetch(req)
	assert.NoError(t, err)

	body, err := resp.Body().Text()
	assert.NoError(t, err)
	assert.Equal(t, "request body", body)
}

func TestClient_FetchSurfacesRedirectWithoutFollowing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/before" {
			w.Header().Set("Location", "/after")
			w.WriteHeader(302)
			return
		}
		w.WriteHeader(201)
	}))
	defer server.Close()

	client := newTestClient()
	defer client.Close()

	resp, err := client.Fetch(NewRequest("GET", server.URL+"/before"))
	assert.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.False(t, resp.Ok())

	location, ok := resp.Headers.Get("location")
	assert.True(t, ok)
	assert.Equal(t, "/after", location)

	_, err = resp.Body().Text()
	assert.NoError(t, err)
}

func TestClient_FetchMultipleSequentialRequestsSucceed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient()
	defer client.Close()

	for i := 0; i < 5; i++ {
		resp, err := client.Fetch(NewRequest("GET", server.URL+"/ping"))
		assert.NoError(t, err)
		body, err := resp.Body().Text()
		assert.NoError(t, err)
		assert.Equal(t, "ok", body)
	}

	stats := client.Stats()
	assert.Len(t, stats, 1)
	assert.LessOrEqual(t, stats[0].Active, 4)
}

func TestClient_FetchFailsOnUnsupportedScheme(t *testing.T) {
	client := newTestClient()
	defer client.Close()

	_, err := client.Fetch(NewRequest("GET", "ftp://example.com/foo"))
	assert.Error(t, err)
}
