package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/sonic/cmd/gen"
	"github.com/luma/sonic/internal/env"
)

var (
	// Path to a TOML config file
	configPath string

	// Flag values, applied over the loaded config when set
	flagHost     string
	flagPort     int
	flagPassword string
	flagTimeout  time.Duration
	flagLogLevel string

	conf *env.Config
	log  *zap.Logger
)

var RootCmd = &cobra.Command{
	Use:   "sonic",
	Short: "Client and development server for the Sonic channel protocol",
	Long: `Client and development server for the Sonic channel protocol

Every channel operation is exposed as a subcommand, e.g.

	sonic push wiki articles a1 "For the love of God"
	sonic query wiki articles love
	sonic consolidate

Configuration is read from --config (or $SONIC_CONFIG), .env.local, SONIC_*
environment variables and flags, in that order.
`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		conf, err = env.LoadConfig(cmd.Context(), configPath)
		if err != nil {
			return err
		}

		flags := cmd.Flags()

		if flags.Changed("host") {
			conf.Host = flagHost
		}
		if flags.Changed("port") {
			conf.Port = flagPort
		}
		if flags.Changed("password") {
			conf.Password = flagPassword
		}
		if flags.Changed("timeout") {
			conf.Timeout = flagTimeout
		}
		if flags.Changed("log-level") {
			conf.LogLevel = flagLogLevel
		}

		log, err = env.MakeLogger(conf.LogLevel)
		return err
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "", "A TOML config file")
	flags.StringVarP(&flagHost, "host", "a", "", "The host of the server")
	flags.IntVarP(&flagPort, "port", "p", 0, "The port of the server's channel listener")
	flags.StringVar(&flagPassword, "password", "", "The password sent with START")
	flags.DurationVar(&flagTimeout, "timeout", 0, "How long to wait for a reply")
	flags.StringVar(&flagLogLevel, "log-level", "", "One of debug, info, warn or error")

	RootCmd.AddCommand(
		ServeCmd,
		PingCmd,
		PushCmd,
		PopCmd,
		CountCmd,
		FlushCmd,
		QueryCmd,
		SuggestCmd,
		ListCmd,
		ConsolidateCmd,
		BackupCmd,
		RestoreCmd,
		ShutdownCmd,
		InfoCmd,
		LoadCmd,
		VersionCmd,
		gen.RootCmd,
	)
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
