// cliphook: clipboard short-link monitor and webhook dispatcher.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/cliphook/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "cliphook",
		Short: "Clipboard short-link monitor, resolver, and webhook dispatcher",
		Long: `cliphook watches the system clipboard for short video links, resolves
each through a lookup API, optionally downloads the media, and fires
user-configured webhooks (HTTP requests or local commands) on resolve and
download events.

Run "cliphook run" to start the daemon. It serves a local HTTP API for
status, histories, and logs; "cliphook status" queries it. Webhook
definitions live in webhooks.json under the user config directory and are
managed with "cliphook webhook".

Config file search order (first found wins):
  /etc/cliphook/cliphook.toml
  $HOME/.config/cliphook/cliphook.toml
  path supplied via --config

All flags can be set via CLIPHOOK_<FLAG> env vars or config-file keys.
See "cliphook run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newWebhookCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("cliphook %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
