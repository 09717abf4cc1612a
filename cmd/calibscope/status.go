package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/calibscope/internal/server"
)

func NewStatusCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show whether calibscope-server is running",
		GroupID: gServer,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = conf.Server.Addr
			}
			url := fmt.Sprintf("http://%s/api/metrics", addr)

			client := &http.Client{Timeout: 3 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				cmd.Printf("%s calibscope-server is not running.\n", color.New(color.Bold, color.FgRed).Sprint("✘"))
				cmd.Printf("  Start it with: calibscope-server\n")
				cmd.Printf("  (tried: %s)\n", url)
				return fmt.Errorf("server unreachable: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status from %s: %s", url, resp.Status)
			}
			var m server.Metrics
			if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
				return fmt.Errorf("failed to decode metrics: %w", err)
			}

			cmd.Printf("%s calibscope-server is running at %s.\n\n", okMark(), addr)
			cmd.Printf("  Requests:             %s\n", bold("%d", m.Requests))
			cmd.Printf("  Errors:               %s\n", bold("%d", m.ErrorCount))
			cmd.Printf("  Hand-eye saved:       %s\n", bold("%d", m.HandEyeSaved))
			cmd.Printf("  Joints imported:      %s\n", bold("%d", m.JointsImported))
			cmd.Printf("  Uptime:               %s\n", bold("%ds", m.Uptime))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "server", "", "server address (defaults to server.addr)")
	return cmd
}
