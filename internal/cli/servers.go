package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/tdlobby/internal/protocol"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Browse hosted servers",
	}

	cmd.AddCommand(newServersListCmd())
	cmd.AddCommand(newServersGetCmd())
	cmd.AddCommand(newServersWatchCmd())

	return cmd
}

func newServersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every hosted server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []protocol.Server

			if err := client.Get(cmd.Context(), "/api/v1/servers", &result); err != nil {
				return err
			}

			NewOutputTo(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newServersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result protocol.Server

			if err := client.Get(cmd.Context(), "/api/v1/servers/"+args[0], &result); err != nil {
				return err
			}

			NewOutputTo(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newServersWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream server list updates",
		Long: `Connect to the server list event stream and print every update.

A serverList event is sent on connect and after each change to any server.

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := NewOutputTo(cfg.Output, cmd.OutOrStdout())
			url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/servers/events"
			return watchServers(ctx, url, out)
		},
	}
}

// watchServers streams the SSE feed at url until ctx ends or the server hangs up
func watchServers(ctx context.Context, url string, out *Output) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// No timeout: the stream stays open
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if cfg != nil && cfg.Verbose {
		out.PrintMessage("Connected to " + url)
	}

	err = readSSE(resp.Body, func(event, data string) {
		out.PrintEvent(event, json.RawMessage(data))
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

// readSSE parses an event stream, calling onEvent for each complete event
func readSSE(r io.Reader, onEvent func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event string
	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if event != "" {
				onEvent(event, strings.Join(dataLines, "\n"))
			}
			event = ""
			dataLines = nil
		}
	}
	return scanner.Err()
}
