package cmd

import (
	"os"
	"strconv"
	"sync"
	"time"

	fetchhttp "github.com/assetnote/fetchgo/pkg/http"
	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	statsCount       int
	statsConcurrency int
)

var poolStatsCmd = &cobra.Command{
	Use:   "pool-stats URL",
	Short: "fire concurrent requests at one origin and watch pool occupancy",
	Long: `pool-stats sends --count requests at URL across --concurrency
goroutines sharing one Client, printing the per-origin pool
occupancy reported by Client.Stats as it goes. It exists to make
the --max-per-host bound visible rather than theoretical.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		url := args[0]
		jobs := make(chan struct{}, statsCount)
		for i := 0; i < statsCount; i++ {
			jobs <- struct{}{}
		}
		close(jobs)

		done := make(chan struct{})
		go reportPoolStats(client, done)
		defer close(done)

		var wg sync.WaitGroup
		for w := 0; w < statsConcurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range jobs {
					req := fetchhttp.NewRequest("GET", url)
					req.WithCancel(interruptContext())
					req.SetHeader("X-Request-Id", uuid.New().String())
					resp, err := client.Fetch(req)
					if err != nil {
						log.Error().Err(err).Msg("request failed")
						continue
					}
					if _, err := resp.Body().Bytes(); err != nil {
						log.Error().Err(err).Msg("draining response body failed")
					}
				}
			}()
		}
		wg.Wait()

		printPoolStats(client)
		return nil
	},
}

func init() {
	poolStatsCmd.Flags().IntVar(&statsCount, "count", 50, "total number of requests to send")
	poolStatsCmd.Flags().IntVar(&statsConcurrency, "concurrency", 10, "number of goroutines sharing the client")
	rootCmd.AddCommand(poolStatsCmd)
}

func reportPoolStats(client *fetchhttp.Client, done <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			printPoolStats(client)
		}
	}
}

func printPoolStats(client *fetchhttp.Client) {
	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"origin", "active connections"})
	for _, s := range client.Stats() {
		table.Append([]string{s.Origin, strconv.Itoa(s.Active)})
	}
	table.Render()
}
