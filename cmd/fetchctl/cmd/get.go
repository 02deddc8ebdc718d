package cmd

import (
	"fmt"
	"os"
	"strings"

	fetchhttp "github.com/assetnote/fetchgo/pkg/http"
	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	getHeaders     []string
	getInteractive bool
	getMaxRedirect int
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "send a single GET request and print the response",
	Long: `get sends exactly one GET request. A redirect response is printed
and not followed automatically; pass --interactive to be prompted
whether to follow a Location header, up to --max-redirects times.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		return fetchOne(client, "GET", args[0], nil)
	},
}

func init() {
	getCmd.Flags().StringArrayVarP(&getHeaders, "header", "H", nil, "extra request header, 'Name: Value', repeatable")
	getCmd.Flags().BoolVarP(&getInteractive, "interactive", "i", false, "prompt before following a redirect")
	getCmd.Flags().IntVar(&getMaxRedirect, "max-redirects", 5, "maximum redirects to follow when --interactive is set")
	rootCmd.AddCommand(getCmd)
}

func buildHeaders(raw []string) (fetchhttp.Headers, error) {
	var headers fetchhttp.Headers
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed header %q, expected 'Name: Value'", h)
		}
		headers.Add(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	return headers, nil
}

func fetchOne(client *fetchhttp.Client, method, url string, body *fetchhttp.RequestBody) error {
	headers, err := buildHeaders(getHeaders)
	if err != nil {
		return err
	}

	redirectsLeft := getMaxRedirect
	for {
		req := fetchhttp.NewRequest(method, url)
		req.Headers = headers
		if body != nil {
			req.WithBody(body)
		}
		req.WithCancel(interruptContext())
		req.SetHeader("X-Request-Id", uuid.New().String())

		resp, err := client.Fetch(req)
		if err != nil {
			return err
		}
		printStatusAndHeaders(resp)

		if !isRedirectStatus(resp.StatusCode) || !getInteractive || redirectsLeft <= 0 {
			return streamBodyToStdout(resp)
		}

		location, ok := resp.Headers.Get("location")
		if !ok {
			return streamBodyToStdout(resp)
		}
		if _, err := resp.Body().Bytes(); err != nil {
			return err
		}

		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Follow redirect to %s?", location),
			IsConfirm: true,
			Stdout:    os.Stderr,
		}
		if _, err := prompt.Run(); err != nil {
			log.Info().Msg("redirect not followed")
			return nil
		}

		url = resolveRedirectURL(url, location)
		method = "GET"
		body = nil
		redirectsLeft--
	}
}

func isRedirectStatus(code int) bool {
	return code >= 300 && code < 400
}
