package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	pkgcontext "github.com/assetnote/fetchgo/pkg/context"
	fetchhttp "github.com/assetnote/fetchgo/pkg/http"
	"github.com/assetnote/fetchgo/pkg/log"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// These global variables can be configured with the corresponding
// lowercase flag.
var (
	Verbose string // logging level: trace, debug, info, error, fatal
	Output  string // output format: pretty, text, json
	Quiet   bool

	maxPerHost     int
	maxIdlePerHost int
	idleTimeout    time.Duration
	dialTimeout    time.Duration

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "fetchctl",
	Short: "fetchctl sends one HTTP request and prints the response",
	Long: `fetchctl is a small command-line client over a connection-pooled
HTTP/1.1 engine: it never follows redirects on your behalf, and
streams response bodies rather than buffering them in full before
printing.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// interruptContext returns the process-lifetime context that the
// first Ctrl-C cancels, so an in-flight Fetch aborts cleanly instead
// of the process dying mid-request. A second Ctrl-C exits immediately
// (pkgcontext.AddInterruptCancellation's own behavior).
func interruptContext() context.Context {
	return pkgcontext.Context()
}

func init() {
	cobra.OnInitialize(initLogging)
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fetchctl.yaml)")
	rootCmd.PersistentFlags().StringVarP(&Verbose, "verbose", "v", "info", "level of logging verbosity. can be error,info,debug,trace")
	rootCmd.PersistentFlags().StringVarP(&Output, "output", "o", "pretty", "log output format. can be json,text,pretty")
	rootCmd.PersistentFlags().BoolVarP(&Quiet, "quiet", "q", false, "quiet mode. suppress informational logging")

	rootCmd.PersistentFlags().IntVar(&maxPerHost, "max-per-host", 0, "maximum concurrent connections per origin (0: unbounded)")
	rootCmd.PersistentFlags().IntVar(&maxIdlePerHost, "max-idle-per-host", 0, "maximum idle connections kept open per origin (0: none retained)")
	rootCmd.PersistentFlags().DurationVar(&idleTimeout, "idle-timeout", 30*time.Second, "how long an idle connection is kept before eviction")
	rootCmd.PersistentFlags().DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "dial timeout for new connections")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initLogging() {
	log.SetFormat(viper.GetString("output"))

	level := viper.GetString("verbose")
	if level != "" {
		if err := log.SetLevelString(level); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize logging")
		}
	}
	log.Debug().Str("level", level).Str("format", viper.GetString("output")).Msg("custom log settings")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigName(".fetchctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient builds a Client from the persistent pool flags. Each
// invocation of fetchctl gets its own process-lifetime Client, so
// connection reuse is only visible within a single command (e.g.
// pool-stats firing many requests at one origin).
func newClient() *fetchhttp.Client {
	return fetchhttp.NewClient(fetchhttp.ClientOptions{
		PoolOptions: fetchhttp.PoolOptions{
			MaxPerHost:     maxPerHost,
			MaxIdlePerHost: maxIdlePerHost,
			IdleTimeout:    idleTimeout,
			AgentOptions: fetchhttp.AgentOptions{
				DialTimeout: dialTimeout,
			},
		},
	})
}
