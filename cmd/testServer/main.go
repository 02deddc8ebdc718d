package main

import (
	"bufio"
	"compress/gzip"
	"flag"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

var requestCount count32

type count32 struct {
	val uint32
}

func (c *count32) increment() uint32 { return atomic.AddUint32(&c.val, 1) }

// TextResponder returns a small plain-text body, for exercising the
// content-length framing and default-decode path.
func TextResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	ctx.SetContentType("text/plain; charset=UTF-8")
	ctx.WriteString("hello from testServer")
}

// JSONResponder returns a small JSON object.
func JSONResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	ctx.SetContentType("application/json")
	ctx.WriteString(`{"hello":"world","n":1}`)
}

// RedirectResponder always answers 302 with a Location header pointing
// at /text, to exercise surfaced-not-followed redirect handling.
func RedirectResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	ctx.SetStatusCode(fasthttp.StatusFound)
	ctx.Response.Header.Set("Location", "/text")
}

// ChunkedResponder streams its body through fasthttp's body-stream
// writer, which forces Transfer-Encoding: chunked since no
// Content-Length can be computed up front.
func ChunkedResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	ctx.SetContentType("text/plain; charset=UTF-8")
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "chunk-%d ", i)
			w.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	})
}

// GzipResponder compresses a fixed payload and sets Content-Encoding,
// to exercise transparent decompression.
func GzipResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	gz := gzip.NewWriter(ctx.Response.BodyWriter())
	ctx.Response.Header.Set("Content-Encoding", "gzip")
	ctx.SetContentType("text/plain; charset=UTF-8")
	gz.Write([]byte("this payload arrived gzip-encoded and should decode transparently"))
	gz.Close()
}

// EchoResponder mirrors the request method, headers, and body back,
// for round-trip request-body tests.
func EchoResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	ctx.Response.Header.Set("X-Echo-Method", string(ctx.Method()))
	ctx.SetBody(ctx.PostBody())
}

// SlowResponder delays before responding, by a millisecond count given
// in the "ms" query parameter (default 500), for exercising slow
// responses and cancellation.
func SlowResponder(ctx *fasthttp.RequestCtx) {
	requestCount.increment()
	delay := 500 * time.Millisecond
	if raw := ctx.QueryArgs().Peek("ms"); len(raw) > 0 {
		if ms, err := strconv.Atoi(string(raw)); err == nil {
			delay = time.Duration(ms) * time.Millisecond
		}
	}
	time.Sleep(delay)
	ctx.WriteString("slow response done")
}

func main() {
	var addr string
	flag.StringVar(&addr, "addr", ":14000", "address to listen on")
	flag.Parse()

	r := router.New()
	r.GET("/text", TextResponder)
	r.GET("/json", JSONResponder)
	r.GET("/redirect", RedirectResponder)
	r.GET("/chunked", ChunkedResponder)
	r.GET("/gzip", GzipResponder)
	r.GET("/slow", SlowResponder)
	r.GET("/echo", EchoResponder)
	r.POST("/echo", EchoResponder)

	log.Info().Str("addr", addr).Msg("starting test server")
	log.Fatal().Err(fasthttp.ListenAndServe(addr, r.Handler)).Msg("test server exited")
}
