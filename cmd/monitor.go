// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Motionforge

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/motionforge/rigwave/pkg/regwave"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching and driving the rig",
	Long: `Monitor the rig via an interactive terminal UI.

Shows the live run state, the latest telemetry positions, and poll-loop
statistics, with an event log of faults and transport errors.

Keys:
  p  power on      o  power off    r  reset fault
  s  start         x  stop
  t  focus the jog-target field (enter sends, esc cancels)
  q  quit

All register traffic runs on a single background goroutine; key commands
are queued to it, never raced against the poller.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// pollMsg carries one poll cycle's outcome from the I/O goroutine.
type pollMsg struct {
	samples []float64
	status  regwave.Status
	stats   regwave.Statistics // copy, safe to render
	err     error
	lost    bool
}

type monitorEventMsg struct {
	message string
	isError bool
}

type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type monitorModel struct {
	connInfo string
	cfg      Config

	// commands queues register writes onto the I/O goroutine.
	commands chan<- func(regwave.Transport) error

	status   regwave.Status
	lastPos  []float64
	totalSeq uint64
	stats    regwave.Statistics
	lost     bool

	targetInput textinput.Model
	typing      bool

	eventLog      []monitorLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

func initialMonitorModel(connInfo string, cfg Config, commands chan<- func(regwave.Transport) error) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 12
	ti.Width = 14

	return monitorModel{
		connInfo:      connInfo,
		cfg:           cfg,
		commands:      commands,
		targetInput:   ti,
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

//////////////////////////////////////////////////////////////
// Update
//////////////////////////////////////////////////////////////

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.typing {
			return m.updateTyping(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "p":
			m.queueCoil("power on", m.cfg.RegisterMap().CoilPowerOn)
		case "o":
			m.queueCoil("power off", m.cfg.RegisterMap().CoilPowerOff)
		case "r":
			m.queueCoil("reset", m.cfg.RegisterMap().CoilReset)
		case "s":
			m.queueCoil("start", m.cfg.RegisterMap().CoilStart)
		case "x":
			m.queueCoil("stop", m.cfg.RegisterMap().CoilStop)
		case "t":
			m.typing = true
			m.targetInput.Focus()
			return m, textinput.Blink
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		return m, monitorTickCmd()

	case pollMsg:
		m.stats = msg.stats
		m.lost = msg.lost
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("POLL ERROR: %v", msg.err), true)
			if msg.lost {
				m.addLogEntry("Connection lost; press q to quit", true)
			}
			return m, nil
		}
		if msg.status != m.status {
			m.addLogEntry(fmt.Sprintf("State: %v -> %v", m.status, msg.status), false)
		}
		m.status = msg.status
		if len(msg.samples) > 0 {
			m.lastPos = msg.samples
			m.totalSeq += uint64(len(msg.samples))
		}

	case monitorEventMsg:
		m.addLogEntry(msg.message, msg.isError)
	}

	return m, nil
}

func (m monitorModel) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.typing = false
		m.targetInput.Blur()
		m.targetInput.SetValue("")
		return m, nil
	case "enter":
		raw := strings.TrimSpace(m.targetInput.Value())
		m.typing = false
		m.targetInput.Blur()
		m.targetInput.SetValue("")
		target, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("Bad jog target %q", raw), true)
			return m, nil
		}
		m.queueJog(m.cfg.ClampTarget(target))
		return m, nil
	}
	var cmd tea.Cmd
	m.targetInput, cmd = m.targetInput.Update(msg)
	return m, cmd
}

// queueCoil hands a coil pulse to the I/O goroutine.
func (m *monitorModel) queueCoil(name string, coil uint16) {
	m.addLogEntry(fmt.Sprintf("Command: %s", name), false)
	select {
	case m.commands <- func(t regwave.Transport) error {
		return t.WriteCoil(coil, true)
	}:
	default:
		m.addLogEntry("Command queue full, dropped", true)
	}
}

// queueJog writes the target position register then pulses the
// write-target coil, as one queued unit.
func (m *monitorModel) queueJog(target float64) {
	rm := m.cfg.RegisterMap()
	m.addLogEntry(fmt.Sprintf("Command: jog to %.5f", target), false)
	codec := regwave.FixedPointCodec{}
	select {
	case m.commands <- func(t regwave.Transport) error {
		words := codec.Encode([]float64{target})
		if err := t.WriteRegisters(rm.TargetPos, words); err != nil {
			return err
		}
		return t.WriteCoil(rm.CoilWriteTarget, true)
	}:
	default:
		m.addLogEntry("Command queue full, dropped", true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("RIGWAVE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// State lamp
	stateStr := m.status.String()
	switch {
	case m.lost:
		s.WriteString(errorStyle.Render("✗ CONNECTION LOST"))
	case m.status.State() == regwave.StateFault:
		s.WriteString(errorStyle.Render("✗ " + stateStr))
	case m.status.State() == regwave.StateRunning:
		s.WriteString(valueStyle.Render("▶ " + stateStr))
	default:
		s.WriteString(warningStyle.Render("● " + stateStr))
	}
	s.WriteString("\n\n")

	// Telemetry
	telemetry := strings.Builder{}
	last := "-"
	if len(m.lastPos) > 0 {
		last = fmt.Sprintf("%.5f", m.lastPos[len(m.lastPos)-1])
	}
	telemetry.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Position:"), valueStyle.Render(last),
		labelStyle.Render("Samples:"), valueStyle.Render(fmt.Sprintf("%d", m.totalSeq)),
		labelStyle.Render("Last batch:"), valueStyle.Render(fmt.Sprintf("%d", len(m.lastPos))),
	))
	telemetry.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Poll rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", m.stats.PollRate)),
		labelStyle.Render("Sample rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", m.stats.SampleRate)),
	))
	if m.stats.TransportErrors > 0 {
		telemetry.WriteString(fmt.Sprintf("   %s %s",
			labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.TransportErrors))))
	}
	if m.stats.Overruns > 0 {
		telemetry.WriteString(fmt.Sprintf("   %s %s",
			labelStyle.Render("Overruns:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Overruns))))
	}
	s.WriteString(boxStyle.Render(telemetry.String()))
	s.WriteString("\n\n")

	// Jog target input
	if m.typing {
		s.WriteString(labelStyle.Render("Jog target: "))
		s.WriteString(m.targetInput.View())
		s.WriteString(headerStyle.Render("  (enter to send, esc to cancel)"))
	} else {
		s.WriteString(headerStyle.Render("p power on | o power off | r reset | s start | x stop | t jog"))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 14
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

//////////////////////////////////////////////////////////////
// I/O goroutine
//////////////////////////////////////////////////////////////

// monitorLoop owns the transport: it alternates queued commands and
// poll cycles, pushing results into the TUI.
func monitorLoop(p *tea.Program, link *Link, m regwave.RegisterMap, commands <-chan func(regwave.Transport) error, done <-chan struct{}) {
	poller := regwave.NewPoller(link, m, regwave.FixedPointCodec{})
	if err := poller.Resync(); err != nil {
		p.Send(monitorEventMsg{message: fmt.Sprintf("Resync failed: %v", err), isError: true})
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case cmd := <-commands:
			if err := cmd(link); err != nil {
				p.Send(monitorEventMsg{message: fmt.Sprintf("Command failed: %v", err), isError: true})
			}
		case <-ticker.C:
			samples, err := poller.Poll()
			poller.Stats.CalculateRates()
			p.Send(pollMsg{
				samples: samples,
				status:  poller.Status(),
				stats:   *poller.Stats,
				err:     err,
				lost:    poller.Lost(),
			})
			if errors.Is(err, regwave.ErrConnectionLost) {
				return
			}
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	link, err := OpenLink()
	if err != nil {
		return err
	}
	defer link.Close()

	commands := make(chan func(regwave.Transport) error, 8)
	done := make(chan struct{})

	model := initialMonitorModel(link.Info, cfg, commands)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go monitorLoop(p, link, cfg.RegisterMap(), commands, done)

	_, err = p.Run()
	close(done)
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
