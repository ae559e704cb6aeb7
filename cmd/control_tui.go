// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ntios/peripherald/pkg/tablet"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const textInputLimit = 64

// Focus states
const (
	focusDisplayList = iota
	focusTextInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// displayItem is one screen attached to the peripheral
type displayItem struct {
	index  int
	width  int
	height int
	writes int
}

// Implement list.Item interface
func (d displayItem) Title() string { return fmt.Sprintf("Display %d", d.index) }
func (d displayItem) Description() string {
	return fmt.Sprintf("%dx%d, %d write(s)", d.width, d.height, d.writes)
}
func (d displayItem) FilterValue() string { return fmt.Sprintf("%d", d.index) }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Displays
	displays    []displayItem
	displayList list.Model

	// Monitoring
	stats tablet.Statistics
	logs  eventLog

	// Peripheral state
	points      []tablet.Point
	battery     tablet.BatteryEvent
	hasBattery  bool
	lastGesture string
	vibrating   bool

	// Control
	textInput    textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	events   []tablet.Event
	gestures []string
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string, count int) controlModel {
	ti := textinput.New()
	ti.Placeholder = "Hello"
	ti.CharLimit = textInputLimit
	ti.Width = 30

	cfg := connMgr.getDevice().Config()
	displays := make([]displayItem, count)
	items := make([]list.Item, count)
	for i := range displays {
		displays[i] = displayItem{index: i, width: cfg.Width, height: cfg.Height}
		items[i] = displays[i]
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	displayList := list.New(items, delegate, 30, 10)
	displayList.Title = "Displays"
	displayList.SetShowStatusBar(false)
	displayList.SetShowHelp(false)
	displayList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		displays:      displays,
		displayList:   displayList,
		stats:         connMgr.getDevice().Statistics(),
		logs:          newEventLog(100),
		textInput:     ti,
		focusedField:  focusDisplayList,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		if dev := m.connMgr.getDevice(); dev != nil && !m.connectionLost {
			m.stats = dev.Statistics()
		}
		return m, controlTickCmd()

	case controlBatchMsg:
		for _, evt := range msg.events {
			m.processEvent(evt)
		}
		for _, g := range msg.gestures {
			m.lastGesture = g
			if !strings.HasPrefix(g, "Drag") {
				m.logs.add(g, false)
			}
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.logs.add(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.points = nil
		m.vibrating = false
		m.logs.add("Reconnected", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusTextInput {
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusDisplayList {
		m.displayList, cmd = m.displayList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		return m.handleEnter()
	}

	// Pass through to focused component
	if m.focusedField == focusTextInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "v":
		return m.toggleVibrate()

	case "c":
		return m.clearDisplay()

	case "up", "k", "down", "j":
		if m.focusedField == focusDisplayList {
			m.displayList, _ = m.displayList.Update(msg)
		}
	}

	return m, nil
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// Pass mouse events to the list
	m.displayList, _ = m.displayList.Update(msg)

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	maxFocus := focusButton
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	if m.focusedField == focusTextInput {
		m.textInput.Focus()
	} else {
		m.textInput.Blur()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focusedField == focusButton || m.focusedField == focusTextInput {
		return m.sendText()
	}
	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	st := styles

	// Header
	s.WriteString(st.title.Render("PERIPHERALD CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | q=quit Tab=switch v=vibrate c=clear", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (displays) | right panel (control)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := st.box.Width(leftWidth)
	if m.focusedField == focusDisplayList {
		listStyle = st.focusedBox.Width(leftWidth)
	}
	displayPanel := listStyle.Render(m.displayList.View())

	controlPanel := st.box.Width(rightWidth).Render(m.renderControlPanel(st))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, displayPanel, " ", controlPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(st))
	s.WriteString("\n\n")

	s.WriteString(m.renderTouch(st))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(st))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderControlPanel(st tuiStyles) string {
	var s strings.Builder

	selected := m.getSelectedDisplay()
	if selected == nil {
		s.WriteString(st.header.Render("No display selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s Display %d (%dx%d)\n", st.label.Render("Selected:"),
		selected.index, selected.width, selected.height))

	vibe := "off"
	if m.vibrating {
		vibe = "on"
	}
	battery := st.header.Render("no report yet")
	if m.hasBattery {
		battery = st.value.Render(fmt.Sprintf("%.2f V %+.3f A", m.battery.Voltage, m.battery.Current))
	}
	s.WriteString(fmt.Sprintf("%s %s   %s %s\n\n",
		st.label.Render("Vibration:"), st.value.Render(vibe),
		st.label.Render("Battery:"), battery))

	s.WriteString(st.label.Render("Text: "))
	if m.focusedField == focusTextInput {
		s.WriteString(m.textInput.View())
	} else {
		val := m.textInput.Value()
		if val == "" {
			val = m.textInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n\n")

	btnText := "[ Send Text ]"
	if m.focusedField == focusButton {
		s.WriteString(st.focusedButton.Render(btnText))
	} else {
		s.WriteString(st.button.Render(btnText))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(st tuiStyles) string {
	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		st.label.Render("Events:"), st.value.Render(fmt.Sprintf("%d", m.stats.TotalEvents)),
		st.label.Render("Skipped:"), func() string {
			if m.stats.SkippedBytes > 0 {
				return st.err.Render(fmt.Sprintf("%d", m.stats.SkippedBytes))
			}
			return st.value.Render("0")
		}(),
		st.label.Render("Commands:"), st.value.Render(fmt.Sprintf("%d", m.stats.Commands)),
		st.label.Render("Out:"), st.value.Render(fmt.Sprintf("%d B", m.stats.BytesOut)),
		st.label.Render("Rate:"), st.value.Render(fmt.Sprintf("%.1f evt/s", m.stats.EventRate)),
	)

	return st.box.Width(m.width - 4).Render(content)
}

func (m controlModel) renderTouch(st tuiStyles) string {
	var content strings.Builder
	content.WriteString(st.label.Render("TOUCH"))
	content.WriteString(" | ")

	if len(m.points) == 0 {
		content.WriteString(st.header.Render("released"))
	}
	for i, p := range m.points {
		if i > 0 {
			content.WriteString(" ")
		}
		content.WriteString(st.value.Render(tablet.FormatPoint(p)))
	}

	if m.lastGesture != "" {
		content.WriteString(fmt.Sprintf("  %s %s", st.label.Render("Gesture:"), st.value.Render(m.lastGesture)))
	}

	return st.box.Width(m.width - 4).Render(content.String())
}

func (m controlModel) renderEventLog(st tuiStyles) string {
	var s strings.Builder
	s.WriteString(st.label.Render("EVENTS"))
	s.WriteString("\n")
	s.WriteString(m.logs.render(st, 8, "15:04:05.000"))
	return st.box.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processEvent(evt tablet.Event) {
	switch e := evt.(type) {
	case tablet.TouchEvent:
		m.points = e.Points

	case tablet.BatteryEvent:
		if !m.hasBattery {
			m.logs.add(fmt.Sprintf("Battery: %.2f V", e.Voltage), false)
		}
		m.battery = e
		m.hasBattery = true

	case tablet.KeyPressEvent:
		m.logs.add("Key pressed", false)
	}

	cfg := m.connMgr.getDevice().Config()
	for _, a := range tablet.ValidateEvent(evt, cfg.Width, cfg.Height) {
		m.logs.add(fmt.Sprintf("%s: %s", tablet.FormatEventType(evt.Opcode()), a.Message), true)
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) sendText() (tea.Model, tea.Cmd) {
	selected := m.getSelectedDisplay()
	if selected == nil {
		return m, nil
	}
	if m.connectionLost {
		m.logs.add("Cannot send command: connection lost", true)
		return m, nil
	}

	text := m.textInput.Value()
	if text == "" {
		text = m.textInput.Placeholder
	}

	disp := m.connMgr.getDevice().Display(selected.index)
	if err := disp.WriteText(text + "\n"); err != nil {
		m.logs.add(fmt.Sprintf("Failed to send text: %v", err), true)
		return m, nil
	}

	selected.writes++
	m.updateDisplayList()
	m.textInput.SetValue("")
	m.logs.add(fmt.Sprintf("Sent %q to display %d", text, selected.index), false)
	return m, nil
}

func (m *controlModel) clearDisplay() (tea.Model, tea.Cmd) {
	selected := m.getSelectedDisplay()
	if selected == nil {
		return m, nil
	}
	if m.connectionLost {
		m.logs.add("Cannot send command: connection lost", true)
		return m, nil
	}

	disp := m.connMgr.getDevice().Display(selected.index)
	err := disp.FillScreen(color.Black)
	if err == nil {
		err = disp.SetCursor(0, 0)
	}
	if err != nil {
		m.logs.add(fmt.Sprintf("Failed to clear display %d: %v", selected.index, err), true)
		return m, nil
	}

	m.logs.add(fmt.Sprintf("Cleared display %d", selected.index), false)
	return m, nil
}

func (m *controlModel) toggleVibrate() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.logs.add("Cannot send command: connection lost", true)
		return m, nil
	}

	on := !m.vibrating
	if err := m.connMgr.getDevice().SetVibrate(on); err != nil {
		m.logs.add(fmt.Sprintf("Failed to set vibration: %v", err), true)
		return m, nil
	}

	m.vibrating = on
	if on {
		m.logs.add("Vibration on", false)
	} else {
		m.logs.add("Vibration off", false)
	}
	return m, nil
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) getSelectedDisplay() *displayItem {
	idx := m.displayList.Index()
	if idx < 0 || idx >= len(m.displays) {
		return nil
	}
	return &m.displays[idx]
}

func (m *controlModel) updateDisplayList() {
	items := make([]list.Item, len(m.displays))
	for i, d := range m.displays {
		items[i] = d
	}
	m.displayList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.displayList.SetSize(28, listHeight)
}
