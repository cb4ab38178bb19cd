package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/service"
)

// timeLayout is used for event timestamps in tables and streams.
const timeLayout = "2006-01-02 15:04:05.000"

func (w *Writer) table(headers []string, rows [][]string, style func(row, col int) lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(w.styles.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return w.styles.Header.Padding(0, 1)
			}
			if style != nil {
				return style(row, col).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}

// Watchers prints one row per watcher.
func (w *Writer) Watchers(views []service.WatcherView) {
	if len(views) == 0 {
		w.Status("", "No watchers.")
		return
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		hashing := "off"
		if v.CalculateHash {
			hashing = string(v.HashAlgorithm)
		}
		rows = append(rows, []string{
			shortID(v.ID),
			v.Path,
			string(v.Status),
			v.Backend,
			humanize.Comma(v.EventsCount),
			hashing,
			humanize.Time(v.StartedAt),
		})
	}
	out := w.table(
		[]string{"ID", "PATH", "STATUS", "BACKEND", "EVENTS", "HASH", "STARTED"},
		rows,
		func(row, col int) lipgloss.Style {
			if col == 2 {
				return w.styles.Status(views[row].Status)
			}
			return lipgloss.NewStyle()
		})
	_, _ = fmt.Fprintln(w.out, out)

	for _, v := range views {
		if v.LastError != "" {
			w.Warningf("%s: %s", shortID(v.ID), v.LastError)
		}
	}
}

// Events prints events as a table.
func (w *Writer) Events(events []ledger.Event) {
	if len(events) == 0 {
		w.Status("", "No events.")
		return
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.Timestamp.Local().Format(timeLayout),
			string(e.EventType),
			describePath(e),
			sizeChange(e),
			string(e.Priority),
			shortID(e.WatcherID),
		})
	}
	out := w.table(
		[]string{"TIME", "TYPE", "PATH", "SIZE", "PRIORITY", "WATCHER"},
		rows,
		func(row, col int) lipgloss.Style {
			if col == 1 {
				return w.styles.EventType(events[row].EventType)
			}
			return lipgloss.NewStyle()
		})
	_, _ = fmt.Fprintln(w.out, out)
}

// Event prints one event as a single line, for streaming.
func (w *Writer) Event(e ledger.Event) {
	line := fmt.Sprintf("%s %s %s",
		w.styles.Dim.Render(e.Timestamp.Local().Format(timeLayout)),
		w.styles.EventType(e.EventType).Render(fmt.Sprintf("%-8s", e.EventType)),
		describePath(e))
	if size := sizeChange(e); size != "" {
		line += " " + w.styles.Label.Render("("+size+")")
	}
	if e.HashAfter != nil {
		line += " " + w.styles.Dim.Render(*e.HashAfter)
	}
	_, _ = fmt.Fprintln(w.out, line)
}

// Stats prints ledger statistics.
func (w *Writer) Stats(st ledger.Stats) {
	title := "Event statistics"
	if st.WatcherID != "" {
		title += " for " + st.WatcherID
	}
	w.Header(title)

	label := func(s string) string { return w.styles.Label.Render(fmt.Sprintf("  %-14s", s)) }
	_, _ = fmt.Fprintf(w.out, "%s %s\n", label("total events"), humanize.Comma(int64(st.TotalEvents)))
	for _, t := range ledger.EventTypes() {
		_, _ = fmt.Fprintf(w.out, "%s %s\n",
			w.styles.EventType(t).Render(fmt.Sprintf("  %-14s", t)),
			humanize.Comma(int64(st.CountsByType[t])))
	}
	for _, c := range ledger.Categories() {
		if n := st.CountsByCategory[c]; n > 0 {
			_, _ = fmt.Fprintf(w.out, "%s %s\n", label(string(c)), humanize.Comma(int64(n)))
		}
	}
	for _, p := range ledger.Priorities() {
		if n := st.CountsByPriority[p]; n > 0 {
			_, _ = fmt.Fprintf(w.out, "%s %s\n", label(string(p)+" priority"), humanize.Comma(int64(n)))
		}
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", label("bytes changed"), humanize.IBytes(uint64(max(st.TotalBytesChanged, 0))))
	if st.DateRange.First != nil && st.DateRange.Last != nil {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", label("first"), formatWhen(*st.DateRange.First))
		_, _ = fmt.Fprintf(w.out, "%s %s\n", label("last"), formatWhen(*st.DateRange.Last))
	}
}

func formatWhen(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.Local().Format(timeLayout), humanize.Time(t))
}

func describePath(e ledger.Event) string {
	p := e.FilePath
	if e.IsDirectory {
		p += "/"
	}
	if e.EventType == ledger.Renamed && e.OldPath != "" {
		return e.OldPath + " → " + p
	}
	return p
}

// sizeChange renders old and new sizes, whichever are known.
func sizeChange(e ledger.Event) string {
	switch {
	case e.OldSize != nil && e.NewSize != nil && *e.OldSize != *e.NewSize:
		return humanize.IBytes(uint64(*e.OldSize)) + " → " + humanize.IBytes(uint64(*e.NewSize))
	case e.NewSize != nil:
		return humanize.IBytes(uint64(*e.NewSize))
	case e.OldSize != nil:
		return humanize.IBytes(uint64(*e.OldSize))
	default:
		return ""
	}
}

// shortID abbreviates UUIDs to their first group.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
