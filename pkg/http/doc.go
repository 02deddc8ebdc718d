/*
Package http is a client-side HTTP/1.1 engine: a fetch-compatible
Request/Response surface, redirects surfaced on the Response instead
of auto-followed, lazy non-buffered response bodies, and a per-origin
Pool of reusable connections bounded by MaxPerHost and IdleTimeout.

The pieces, bottom to top:

  - Origin/wire_request.go/wire_response.go/chunked.go/compress.go: the
    wire codec — request serialization, status-line/header parsing,
    chunked transfer-encoding, transparent gzip/deflate decoding.
  - Body: the lazy, at-most-once-consumable response stream and its
    materializers (Text, Bytes, Blob, JSON, JSONMap, FormEntries).
  - Agent: owns one socket, serializes one in-flight request, and
    decides whether that socket is reusable once the body finishes.
  - Pool: bounds concurrent Agents per origin and evicts idle ones.
  - Client: the Fetch entry point, one Pool per origin, created lazily.

	import fetchhttp "github.com/assetnote/fetchgo/pkg/http"

	client := fetchhttp.NewClient(fetchhttp.ClientOptions{})
	resp, err := client.Fetch(fetchhttp.NewRequest("GET", "https://example.com/"))
	if err != nil {
		log.Fatal().Err(err).Msg("fetch failed")
	}
	body, err := resp.Body().Text()
*/
package http
