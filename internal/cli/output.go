package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runoshun/git-delegate/internal/domain"
)

// format selects how command results are printed.
type format string

const (
	formatText format = "text"
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func parseFormat(s string) (format, error) {
	switch f := format(s); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q (want text, json or yaml)", s)
	}
}

// outputFormat reads the persistent --output flag of cmd.
func outputFormat(cmd *cobra.Command) format {
	s, err := cmd.Flags().GetString("output")
	if err != nil {
		return formatText
	}
	f, err := parseFormat(s)
	if err != nil {
		return formatText
	}
	return f
}

// printStructured writes v as JSON or YAML. It reports false for text output
// so the caller can render its own layout.
func printStructured(cmd *cobra.Command, v any) (bool, error) {
	w := cmd.OutOrStdout()
	switch outputFormat(cmd) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// Styles. lipgloss drops colors when the writer is not a terminal.
var (
	styleBold    = lipgloss.NewStyle().Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleAdded   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleRemoved = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

func renderTaskStatus(s domain.Status) string {
	switch s {
	case domain.StatusInProgress:
		return styleRunning.Render(string(s))
	case domain.StatusCompleted:
		return styleAdded.Render(string(s))
	case domain.StatusCancelled:
		return styleMuted.Render(string(s))
	default:
		return string(s)
	}
}

func renderProcessStatus(s domain.ProcessStatus) string {
	switch s {
	case domain.ProcessRunning:
		return styleRunning.Render(string(s))
	case domain.ProcessCompleted:
		return styleAdded.Render(string(s))
	case domain.ProcessFailed, domain.ProcessKilled:
		return styleRemoved.Render(string(s))
	default:
		return string(s)
	}
}

// renderChanges formats "+added -removed".
func renderChanges(added, removed int) string {
	return styleAdded.Render(fmt.Sprintf("+%d", added)) + " " + styleRemoved.Render(fmt.Sprintf("-%d", removed))
}

func printWarning(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, styleWarning.Render("Warning: "+msg))
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
