package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// RenderMode selects how the table writer serializes its rows.
type RenderMode string

const (
	RenderASCII    RenderMode = "ascii"
	RenderMarkdown RenderMode = "markdown"
	RenderCSV      RenderMode = "csv"
)

// TableFormatter renders entities through a go-pretty table writer.
type TableFormatter struct {
	Mode RenderMode
}

// FormatEntities renders the entity snapshot as a table.
func (f *TableFormatter) FormatEntities(entities []core.Entity) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Lvl", "Status", "Until", "Last Action", "Faction", "Error"})

	tracked := 0
	for _, e := range entities {
		if e.Ignored {
			continue
		}
		tracked++
		t.AppendRow(table.Row{
			e.ID,
			displayName(e),
			levelLabel(e),
			statusLabel(e),
			untilLabel(e),
			relativeLabel(e.LastAction),
			e.Affiliation,
			errorLabel(e),
		})
	}

	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d tracked", tracked), "", "", "", ""})

	switch f.Mode {
	case RenderMarkdown:
		return t.RenderMarkdown(), nil
	case RenderCSV:
		return t.RenderCSV(), nil
	default:
		return t.Render(), nil
	}
}

func displayName(e core.Entity) string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return fmt.Sprintf("#%d", e.ID)
}

func levelLabel(e core.Entity) string {
	if e.Level <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", e.Level)
}

func statusLabel(e core.Entity) string {
	if e.StatusDetail != "" {
		return string(e.Status) + ": " + e.StatusDetail
	}
	return string(e.Status)
}

func untilLabel(e core.Entity) string {
	if e.StatusUntil == nil || e.StatusUntil.IsZero() {
		return ""
	}
	remaining := time.Until(*e.StatusUntil)
	if remaining <= 0 {
		return "now"
	}
	return remaining.Round(time.Second).String()
}

func relativeLabel(at *time.Time) string {
	if at == nil || at.IsZero() {
		return "never"
	}
	elapsed := time.Since(*at)
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}

func errorLabel(e core.Entity) string {
	if e.LastError == nil {
		return ""
	}
	return string(*e.LastError)
}
