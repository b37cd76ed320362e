package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliphook/internal/api"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and session counters",
		Long: `Queries the local HTTP API of a running cliphook daemon and prints
monitoring state, uptime, and the session log counters.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}

	f := cmd.Flags()
	f.String("addr", defaultAPIAddr, "daemon API address")
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(v *viper.Viper) error {
	addr := v.GetString("addr")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/v1/status", addr))
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status: HTTP %d", resp.StatusCode)
	}

	var st api.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(st, addr)
	return nil
}

func printStatus(st api.Status, addr string) {
	monitoring := "stopped"
	if st.Monitoring {
		monitoring = fmt.Sprintf("running (every %dms)", st.IntervalMS)
	}

	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Daemon:\t%s (%s)\n", addr, st.Version)
	fmt.Fprintf(w, "Uptime:\t%s\n", fmtUptime(st.UptimeSeconds))
	fmt.Fprintf(w, "Monitoring:\t%s\n", monitoring)
	fmt.Fprintf(w, "Webhooks:\t%d\n", st.Webhooks)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Clipboard entries:\t%d\n", st.Clips)
	fmt.Fprintf(w, "Tracked links:\t%d\n", st.Links)
	fmt.Fprintf(w, "Downloads:\t%d\n", st.Downloaded)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Log entries:\t%d\n", st.Stats.Total)
	fmt.Fprintf(w, "  resolved:\t%d\n", st.Stats.Resolved)
	fmt.Fprintf(w, "  failed:\t%d\n", st.Stats.Failed)
	fmt.Fprintf(w, "  downloaded:\t%d\n", st.Stats.Downloaded)
	fmt.Fprintf(w, "  webhook:\t%d\n", st.Stats.Webhook)
	_ = w.Flush()
}

func fmtUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
