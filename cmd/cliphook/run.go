package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliphook/internal/api"
	"go.klb.dev/cliphook/internal/app"
	"go.klb.dev/cliphook/internal/clip"
	"go.klb.dev/cliphook/internal/download"
	"go.klb.dev/cliphook/internal/monitor"
	"go.klb.dev/cliphook/internal/resolve"
	"go.klb.dev/cliphook/internal/settings"
	"go.klb.dev/cliphook/internal/webhook"
)

const defaultAPIAddr = "127.0.0.1:8753"

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard monitor daemon",
		Long: `Starts the cliphook daemon: polls the clipboard, resolves detected
short links, downloads media when auto-download is enabled, and dispatches
webhooks. A local HTTP API serves status, histories, and logs.

Settings (auto-download, download path, naming rule, poll interval, log cap)
live in settings.json under the user config directory; webhook definitions
in webhooks.json next to it. Both paths can be overridden with flags.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.String("addr", defaultAPIAddr, "local HTTP API listen address")
	f.String("resolver-url", resolve.DefaultBaseURL, "link resolution API endpoint")
	f.Duration("resolve-timeout", resolve.DefaultTimeout, "timeout per link resolution call")
	f.Duration("http-timeout", webhook.DefaultHTTPTimeout, "timeout per HTTP webhook call")
	f.String("settings-file", "", "settings file path (default: user config dir)")
	f.String("webhooks-file", "", "webhook definitions file path (default: user config dir)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	store, err := settings.NewStore(v.GetString("settings-file"))
	if err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	hookStore, err := webhook.NewFileStore(v.GetString("webhooks-file"))
	if err != nil {
		return fmt.Errorf("webhook store: %w", err)
	}
	defs, err := hookStore.Load()
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}

	slog.Info("cliphook starting",
		"version", Version,
		"addr", v.GetString("addr"),
		"auto_download", cfg.AutoDownload,
		"webhooks", len(defs),
	)

	resolver := resolve.New(v.GetString("resolver-url"), v.GetDuration("resolve-timeout"))
	a := app.New(cfg, store, resolver)
	engine := webhook.NewEngine(defs, hookStore, a, v.GetDuration("http-timeout"))
	a.SetDispatcher(engine)
	a.SetDownloader(download.NewManager(a.Settings, a, engine))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.MonitorInterval) * time.Millisecond
	mon := monitor.New(clip.New(), interval, func(text string) {
		a.HandleClipboard(ctx, text)
	})
	mon.Start()
	defer mon.Stop()

	server := api.New(v.GetString("addr"), a, mon, engine, Version)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	mon.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		slog.Warn("api shutdown", "err", err)
	}
	a.Wait()
	return nil
}
