package cli

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/example/atomsched/internal/logging"
	"github.com/example/atomsched/pkg/atomclient"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *atomclient.Client

	// isTTY gates table headers and other decoration that only helps an
	// interactive reader; piping output to another program skips it.
	isTTY = isatty.IsTerminal(os.Stdout.Fd())
)

// defaultServer returns the default server URL, checking ATOMSCHED_SERVER
// env var first.
func defaultServer() string {
	if s := os.Getenv("ATOMSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the atomsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "atomsched-cli",
		Short: "atomsched-cli — client for the atomsched inference scheduling server",
		Long:  "atomsched-cli submits, monitors, and cancels inference tasks, and manages loaded models.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = atomclient.New(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "atomsched server URL (or ATOMSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newWaitCmd(),
		newCancelCmd(),
		newStatsCmd(),
		newModelsCmd(),
	)

	return root
}
