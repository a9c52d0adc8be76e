package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcoot/tdlobby/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return NewOutputTo(format, os.Stdout)
}

// NewOutputTo creates a new Output formatter writing to w
func NewOutputTo(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]any{
			"error": map[string]string{"message": err.Error()},
		})
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

// PrintEvent outputs one event received from the server
func (o *Output) PrintEvent(event string, data json.RawMessage) {
	now := time.Now()

	if o.format == "json" {
		line, _ := json.Marshal(Event{Time: now, Event: event, Data: data})
		fmt.Fprintln(o.w, string(line))
		return
	}

	timestamp := now.Format("15:04:05")
	switch event {
	case protocol.EventServerList:
		var list []protocol.Server
		if json.Unmarshal(data, &list) == nil {
			fmt.Fprintf(o.w, "[%s] %s: %d server(s)\n", timestamp, event, len(list))
			return
		}
	case protocol.EventJoinedLobby, protocol.EventLobbyUpdate:
		var s protocol.Server
		if json.Unmarshal(data, &s) == nil {
			fmt.Fprintf(o.w, "[%s] %s: %s (%d) %d/%d players\n",
				timestamp, event, s.Name, s.ID, len(s.Players), s.MaxPlayers)
			return
		}
	}

	display := strings.ReplaceAll(string(data), "\n", " ")
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", timestamp, event, display)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case protocol.Server:
		o.printServer(v)
	case []protocol.Server:
		o.printServerList(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Event is one server event as printed in JSON output
type Event struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (o *Output) printServer(s protocol.Server) {
	fmt.Fprintf(o.w, "Server: %s (%d)\n", s.Name, s.ID)
	fmt.Fprintf(o.w, "Difficulty: %s\n", s.Difficulty)
	fmt.Fprintf(o.w, "Status: %s\n", serverStatus(s))
	fmt.Fprintf(o.w, "Visibility: %s\n", visibility(s))
	fmt.Fprintf(o.w, "Players (%d/%d):\n", len(s.Players), s.MaxPlayers)
	for _, p := range s.Players {
		hostStr := ""
		if p.IsHost {
			hostStr = " [host]"
		}
		fmt.Fprintf(o.w, "  - %s (%s)%s\n", p.Name, p.ID, hostStr)
	}
}

func (o *Output) printServerList(list []protocol.Server) {
	if len(list) == 0 {
		fmt.Fprintln(o.w, "No servers")
		return
	}
	fmt.Fprintf(o.w, "%-15s %-24s %-10s %-8s %s\n", "ID", "NAME", "STATUS", "PLAYERS", "ACCESS")
	for _, s := range list {
		fmt.Fprintf(o.w, "%-15d %-24s %-10s %-8s %s\n",
			s.ID, s.Name, serverStatus(s), fmt.Sprintf("%d/%d", len(s.Players), s.MaxPlayers), visibility(s))
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

func serverStatus(s protocol.Server) string {
	switch {
	case s.GameStarted:
		return "playing"
	case len(s.Players) >= s.MaxPlayers:
		return "full"
	default:
		return "waiting"
	}
}

func visibility(s protocol.Server) string {
	access := "public"
	if !s.IsPublic {
		access = "private"
	}
	if s.Locked {
		access += ", locked"
	}
	return access
}
