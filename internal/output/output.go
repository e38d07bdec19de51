package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Formatter renders entity snapshots.
type Formatter interface {
	FormatEntities(entities []core.Entity) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	case string(FormatCSV):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &TableFormatter{Mode: RenderMarkdown}
	case FormatCSV:
		return &TableFormatter{Mode: RenderCSV}
	default:
		return &TableFormatter{Mode: RenderASCII}
	}
}

// FormatStatsLine renders a one-line cycle summary for CLI output.
func FormatStatsLine(stats core.CycleStats) string {
	line := fmt.Sprintf("cycle %s: %d total, %d fetched, %d cached, %d failed in %s",
		shortCycleID(stats.CycleID),
		stats.Total,
		stats.Success,
		stats.CacheHits,
		stats.ErrorCount(),
		stats.Elapsed.Round(time.Millisecond))
	if stats.Cancelled > 0 {
		line += fmt.Sprintf(", %d cancelled", stats.Cancelled)
	}
	if stats.Paused > 0 {
		line += fmt.Sprintf(" (%s paused)", stats.Paused.Round(time.Millisecond))
	}
	if stats.Aborted {
		line += " (aborted)"
	}
	return line
}

func shortCycleID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
