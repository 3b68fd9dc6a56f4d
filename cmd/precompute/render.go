package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/precompute"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9D4EDD")).Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func hours(h float64) string { return strconv.FormatFloat(h, 'f', -1, 64) }

func degrees(d float64) string { return strconv.FormatFloat(d, 'f', 2, 64) + "°" }

func writeLines(w io.Writer, lines ...string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// renderRecords prints stored occurrences followed by a count line.
func renderRecords(w io.Writer, records []eventstore.Record, total int) error {
	t := newTable("Event", "Hours", "Year", "Day", "Latitude", "Longitude")
	for _, r := range records {
		t.Row(r.Name, hours(r.Hours),
			strconv.FormatInt(r.Year, 10), strconv.FormatInt(r.Day, 10),
			degrees(r.Latitude), degrees(r.Longitude))
	}
	if len(records) == 0 {
		return writeLines(w, mutedStyle.Render("no stored occurrences"))
	}
	return writeLines(w, t.String(), mutedStyle.Render(fmt.Sprintf("%d of %d occurrences", len(records), total)))
}

// renderSummary prints one row per event walked by a run.
func renderSummary(w io.Writer, sum precompute.Summary, ts catalog.TimeScale) error {
	t := newTable("Event", "From", "Found", "Last", "Stop")
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col != 4 || row < 0 || row >= len(sum.Events) {
			return cellStyle
		}
		switch sum.Events[row].Stop {
		case precompute.StopError:
			return errorStyle
		case precompute.StopHorizon:
			return okStyle
		}
		return cellStyle
	})
	for _, es := range sum.Events {
		last := "-"
		if es.Found > 0 || es.LastHours != 0 {
			y, d := ts.Calendar(es.LastHours)
			last = fmt.Sprintf("y%d d%d", y, d)
		}
		stop := string(es.Stop)
		if es.Error != "" {
			stop += ": " + es.Error
		}
		t.Row(es.Name, hours(es.FromHours), strconv.Itoa(es.Found), last, stop)
	}
	footer := fmt.Sprintf("%d found, %d stored, %s", sum.Found, sum.Stored, sum.Duration.Round(time.Millisecond))
	return writeLines(w, t.String(), mutedStyle.Render(footer))
}

// renderFound prints a single search result.
func renderFound(w io.Writer, name string, res search.Result, ts catalog.TimeScale) error {
	y, d := ts.Calendar(res.FoundHours)
	t := newTable("Event", "Hours", "Year", "Day", "Latitude", "Longitude")
	t.Row(name, hours(res.FoundHours),
		strconv.FormatInt(y, 10), strconv.FormatInt(d, 10),
		degrees(res.ViewingLatitude), degrees(res.ViewingLongitude))
	return writeLines(w, t.String())
}

// renderEvents prints the compiled events and how often they can recur.
func renderEvents(w io.Writer, evs []events.Event, sys *catalog.System) error {
	t := newTable("Event", "Type", "Primaries", "Recurrence")
	for _, ev := range evs {
		rec := "-"
		if days, ok := events.EstimateRecurrenceDays(ev, sys); ok {
			rec = fmt.Sprintf("%.0f d", days)
		}
		t.Row(ev.Name, string(ev.Type), fmt.Sprint(ev.PrimaryBodies), rec)
	}
	return writeLines(w, t.String())
}
