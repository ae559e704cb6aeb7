// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ntios/peripherald/pkg/tablet"
)

// tuiStyles is the palette shared by the monitoring and control views
type tuiStyles struct {
	title         lipgloss.Style
	header        lipgloss.Style
	label         lipgloss.Style
	value         lipgloss.Style
	err           lipgloss.Style
	warning       lipgloss.Style
	box           lipgloss.Style
	focusedBox    lipgloss.Style
	button        lipgloss.Style
	focusedButton lipgloss.Style
}

func newTUIStyles() tuiStyles {
	st := tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		button: lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("12")).
			Padding(0, 2),
	}
	st.focusedBox = st.box.BorderForeground(lipgloss.Color("12"))
	st.focusedButton = st.button.Background(lipgloss.Color("10"))
	return st
}

var styles = newTUIStyles()

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// eventLog keeps the most recent limit entries
type eventLog struct {
	entries []logEntry
	limit   int
}

func newEventLog(limit int) eventLog {
	return eventLog{entries: make([]logEntry, 0), limit: limit}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
}

// render formats the last n entries, one per line, with timestamps in
// the given layout
func (l eventLog) render(st tuiStyles, n int, layout string) string {
	if len(l.entries) == 0 {
		return st.header.Render("  (no events yet)")
	}

	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}

	var s strings.Builder
	for _, entry := range l.entries[start:] {
		icon, style := "ℹ", st.warning
		if entry.isError {
			icon, style = "✗", st.err
		}
		s.WriteString(fmt.Sprintf("%s %s\n",
			st.header.Render(entry.timestamp.Format(layout)),
			style.Render(icon+" "+entry.message),
		))
	}
	return s.String()
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	statsFunc     func() tablet.Statistics
	stats         tablet.Statistics
	logs          eventLog
	synchronized  bool
	invalidBytes  uint64
	desyncs       uint64
	width         int
	height        int
	quitting      bool
	linkErr       error

	// Latest peripheral state
	points     []tablet.Point
	battery    tablet.BatteryEvent
	hasBattery bool
	keyPresses uint64
}

// Messages
type tickMsg time.Time
type eventMsg struct {
	event     tablet.Event
	anomalies []tablet.Anomaly
}
type syncMsg struct {
	invalidBytes uint64
}
type skipMsg struct {
	bytes uint64
}
type linkClosedMsg struct {
	err error
}

// formatElapsed formats a duration to a human-friendly string
func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval int, showAll bool, statsFunc func() tablet.Statistics) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		statsFunc:     statsFunc,
		stats:         statsFunc(),
		logs:          newEventLog(100),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.statsFunc()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.logs.add(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.logs.add("Synchronized", false)
		}

	case skipMsg:
		m.desyncs++
		m.logs.add(fmt.Sprintf("DESYNC: skipped %d byte(s)", msg.bytes), true)

	case linkClosedMsg:
		m.linkErr = msg.err
		m.logs.add(fmt.Sprintf("Link closed: %v", msg.err), true)

	case eventMsg:
		m.applyEvent(msg.event)

		name := tablet.FormatEventType(msg.event.Opcode())
		if len(msg.anomalies) > 0 {
			for _, a := range msg.anomalies {
				m.logs.add(fmt.Sprintf("%s: %s", name, a.Message), true)
			}
		} else if m.showAll {
			m.logs.add(fmt.Sprintf("%s (valid)", name), false)
		}
	}

	return m, nil
}

// applyEvent keeps the latest touch and battery state
func (m *model) applyEvent(evt tablet.Event) {
	switch e := evt.(type) {
	case tablet.TouchEvent:
		m.points = e.Points
	case tablet.BatteryEvent:
		m.battery = e
		m.hasBattery = true
	case tablet.KeyPressEvent:
		m.keyPresses++
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := styles

	// Header
	var s strings.Builder
	s.WriteString(st.title.Render("PERIPHERALD - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(st.header.Render(fmt.Sprintf("%s | Mode: %s | Up %s | Press 'q' to quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All events"
			}
			return "Problems only"
		}(), formatElapsed(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkErr != nil:
		s.WriteString(st.err.Render(fmt.Sprintf("✗ Link closed: %v", m.linkErr)))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(st.warning.Render("⏳ Waiting for the first event..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(st.value.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(st.header.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	var anomalyPercent float64
	if m.stats.TotalEvents > 0 {
		anomalyPercent = float64(m.stats.Anomalies) * 100.0 / float64(m.stats.TotalEvents)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		st.label.Render("Events:"), st.value.Render(fmt.Sprintf("%d", m.stats.TotalEvents)),
		st.label.Render("Touch:"), st.value.Render(fmt.Sprintf("%d", m.stats.TouchEvents)),
		st.label.Render("Battery:"), st.value.Render(fmt.Sprintf("%d", m.stats.BatteryEvents)),
		st.label.Render("Keys:"), st.value.Render(fmt.Sprintf("%d", m.stats.KeyEvents)),
	))

	if m.stats.SkippedBytes > 0 || m.desyncs > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			st.label.Render("Skipped Bytes:"), st.err.Render(fmt.Sprintf("%d", m.stats.SkippedBytes)),
			st.label.Render("Desyncs:"), st.err.Render(fmt.Sprintf("%d", m.desyncs)),
		))
	}

	if m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			st.label.Render("Anomalous:"), st.warning.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Anomalies, anomalyPercent)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		st.label.Render("Event Rate:"), st.value.Render(fmt.Sprintf("%.1f evt/s", m.stats.EventRate)),
		st.label.Render("Bytes In:"), st.value.Render(fmt.Sprintf("%d", m.stats.BytesIn)),
	))

	s.WriteString(st.box.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Peripheral state (only shown once something arrived)
	if m.hasBattery || len(m.points) > 0 || m.stats.TouchEvents > 0 {
		s.WriteString(st.label.Render("Latest State:"))
		s.WriteString("\n")

		stateContent := strings.Builder{}
		if m.hasBattery {
			stateContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
				st.label.Render("Battery:"), st.value.Render(fmt.Sprintf("%.2f V", m.battery.Voltage)),
				st.label.Render("Current:"), st.value.Render(fmt.Sprintf("%+.3f A", m.battery.Current)),
			))
		}
		if len(m.points) == 0 {
			stateContent.WriteString(fmt.Sprintf("%s %s",
				st.label.Render("Touch:"), st.header.Render("released"),
			))
		}
		for i, p := range m.points {
			if i > 0 {
				stateContent.WriteString("\n")
			}
			stateContent.WriteString(fmt.Sprintf("%s %s",
				st.label.Render(fmt.Sprintf("Point %d:", i)),
				st.value.Render(tablet.FormatPoint(p)),
			))
		}

		s.WriteString(st.box.Render(stateContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(st.label.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 17 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	s.WriteString(st.box.Width(m.width - 4).Render(m.logs.render(st, logHeight, "01/02/06 15:04:05.000")))

	return s.String()
}
