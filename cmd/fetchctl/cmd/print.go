package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	fetchhttp "github.com/assetnote/fetchgo/pkg/http"
	"github.com/assetnote/fetchgo/pkg/log"
	humanize "github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

// resolveRedirectURL resolves a Location header value against the
// request URL it came from, per RFC 7231 §7.1.2 (Location may be
// relative).
func resolveRedirectURL(base, location string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return location
	}
	locURL, err := url.Parse(location)
	if err != nil {
		return location
	}
	return baseURL.ResolveReference(locURL).String()
}

// printStatusAndHeaders renders a response's status line and header
// table to stdout, before the body is touched.
func printStatusAndHeaders(resp *fetchhttp.Response) {
	log.Info().Str("url", resp.URL).Int("status", resp.StatusCode).Msg(resp.StatusText)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"header", "value"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for _, h := range resp.Headers {
		table.Append([]string{h.Key, h.Value})
	}
	table.Render()
}

// isPrintableContentType reports whether a body's content-type is
// safe to write straight to a terminal. Anything else is materialized
// and printed base64-encoded instead, via printBlobAsBase64.
func isPrintableContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "xml") ||
		strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}

// printBlobAsBase64 materializes resp's body and prints it
// base64-encoded, for content-types that would otherwise garble a
// terminal if streamed raw.
func printBlobAsBase64(resp *fetchhttp.Response) error {
	blob, err := resp.Body().Blob()
	if err != nil {
		return err
	}
	log.Debug().Str("content-type", blob.ContentType).Int("bytes", len(blob.Bytes)).
		Msg("binary body, printing base64 to avoid corrupting the terminal")
	fmt.Println(blob.Base64())
	return nil
}

// streamBodyToStdout drains resp's body directly to stdout, through a
// progress bar sized from Content-Length when present and an
// indeterminate spinner otherwise. The body is never buffered in
// full: each chunk read from the wire is written through immediately.
// Content-types that aren't safely printable are base64-encoded
// instead (see printBlobAsBase64).
func streamBodyToStdout(resp *fetchhttp.Response) error {
	if contentType, _ := resp.Headers.Get("content-type"); !isPrintableContentType(contentType) {
		return printBlobAsBase64(resp)
	}

	var total int64 = -1
	if cl, ok := resp.Headers.Get("content-length"); ok {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			total = n
		}
	}

	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionOnCompletion(func() {
			os.Stderr.Write([]byte("\n"))
		}),
	)

	written, err := io.Copy(io.MultiWriter(os.Stdout, bar), resp.Body())
	if err != nil {
		return err
	}
	log.Debug().Str("size", humanize.Bytes(uint64(written))).Msg("body fully streamed")
	return nil
}
