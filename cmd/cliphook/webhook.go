package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliphook/internal/webhook"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect and test webhook definitions",
	}
	cmd.AddCommand(newWebhookListCmd(), newWebhookTestCmd())
	return cmd
}

func newWebhookListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List configured webhooks",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runWebhookList(v) },
	}

	cmd.Flags().String("webhooks-file", "", "webhook definitions file path (default: user config dir)")
	addConfigFlag(cmd)
	return cmd
}

func runWebhookList(v *viper.Viper) error {
	defs, err := loadWebhooks(v)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Println("No webhooks configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tKIND\tTRIGGER\tENABLED\tRETRY\n")
	fmt.Fprintf(w, "--\t----\t----\t-------\t-------\t-----\n")
	for _, d := range defs {
		retry := "off"
		if d.Retry.Enabled {
			retry = fmt.Sprintf("%dx/%dms", d.Retry.MaxAttempts, d.Retry.DelayMS)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			d.ID, d.Name, d.Kind, d.Trigger, d.IsEnabled(), retry)
	}
	return w.Flush()
}

func newWebhookTestCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "test <id-or-name>",
		Short: "Execute one webhook against a synthetic context",
		Long: `Runs a single webhook definition once with a fixed test context and
reports success or failure. Retry settings are ignored; the webhook fires
exactly once.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, args []string) error { return runWebhookTest(v, args[0]) },
	}

	cmd.Flags().String("webhooks-file", "", "webhook definitions file path (default: user config dir)")
	cmd.Flags().Duration("http-timeout", webhook.DefaultHTTPTimeout, "timeout for the HTTP call")
	addConfigFlag(cmd)
	return cmd
}

func runWebhookTest(v *viper.Viper, key string) error {
	defs, err := loadWebhooks(v)
	if err != nil {
		return err
	}

	var target *webhook.Definition
	for _, d := range defs {
		if d.ID == key || d.Name == key {
			target = d
			break
		}
	}
	if target == nil {
		return fmt.Errorf("webhook %q not found", key)
	}

	engine := webhook.NewEngine(nil, nil, nil, v.GetDuration("http-timeout"))
	start := time.Now()
	err = engine.Test(context.Background(), target)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		return fmt.Errorf("webhook %q failed after %s: %w", target.Name, elapsed, err)
	}
	fmt.Printf("webhook %q succeeded in %s\n", target.Name, elapsed)
	return nil
}

func loadWebhooks(v *viper.Viper) ([]*webhook.Definition, error) {
	store, err := webhook.NewFileStore(v.GetString("webhooks-file"))
	if err != nil {
		return nil, fmt.Errorf("webhook store: %w", err)
	}
	defs, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load webhooks: %w", err)
	}
	return defs, nil
}
