package cmd

import (
	"io/ioutil"
	"os"

	fetchhttp "github.com/assetnote/fetchgo/pkg/http"
	"github.com/spf13/cobra"
)

var (
	postData     string
	postDataFile string
)

var postCmd = &cobra.Command{
	Use:   "post URL",
	Short: "send a single POST request with a body and print the response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		body, err := postBody()
		if err != nil {
			return err
		}
		return fetchOne(client, "POST", args[0], body)
	},
}

func init() {
	postCmd.Flags().StringArrayVarP(&getHeaders, "header", "H", nil, "extra request header, 'Name: Value', repeatable")
	postCmd.Flags().BoolVarP(&getInteractive, "interactive", "i", false, "prompt before following a redirect")
	postCmd.Flags().IntVar(&getMaxRedirect, "max-redirects", 5, "maximum redirects to follow when --interactive is set")
	postCmd.Flags().StringVarP(&postData, "data", "d", "", "request body, sent as text")
	postCmd.Flags().StringVar(&postDataFile, "data-file", "", "path to a file streamed as the request body")
	rootCmd.AddCommand(postCmd)
}

func postBody() (*fetchhttp.RequestBody, error) {
	if postDataFile != "" {
		f, err := os.Open(postDataFile)
		if err != nil {
			return nil, err
		}
		return fetchhttp.StreamBody(f), nil
	}
	if postData != "" {
		return fetchhttp.TextBody(postData), nil
	}
	data, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return fetchhttp.BytesBody(data), nil
}
