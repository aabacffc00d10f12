package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BYTE-6D65/driftsync/pkg/emitter"
	"github.com/BYTE-6D65/driftsync/pkg/spline"
)

// View states
type viewState int

const (
	viewMainMenu viewState = iota
	viewSummary
	viewChannel
	viewVerification
	viewDiagnostics
)

type messageType int

const (
	msgInfo messageType = iota
	msgWarning
	msgSuccess
)

type userMessage struct {
	msgType messageType
	text    string
}

// model is the state of the artifact viewer.
type model struct {
	state   viewState
	cursor  int
	choices []string
	width   int
	height  int

	path      string
	artifacts *emitter.Artifacts

	// channel shown in viewChannel
	channel int

	userMessage *userMessage
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	menuItemStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("#7D56F4")).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1).
			PaddingLeft(2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))

	infoMessageStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00A9E0")).
				Foreground(lipgloss.Color("#00A9E0")).
				Padding(0, 2).
				MarginTop(1).
				MarginLeft(2)

	warningMessageStyle = infoMessageStyle.
				BorderForeground(lipgloss.Color("#FFB800")).
				Foreground(lipgloss.Color("#FFB800"))

	successMessageStyle = infoMessageStyle.
				BorderForeground(lipgloss.Color("#50FA7B")).
				Foreground(lipgloss.Color("#50FA7B"))
)

func initialModel(path string, a *emitter.Artifacts) model {
	m := model{
		state:     viewMainMenu,
		path:      path,
		artifacts: a,
	}
	m.choices = append(m.choices, "Summary")
	for _, ch := range a.Channels {
		m.choices = append(m.choices, "Channel "+ch.Name)
	}
	m.choices = append(m.choices, "Verification", "Diagnostics", "Exit")
	m.userMessage = statusMessage(a)
	return m
}

// statusMessage flags runs that left rows unsynchronized.
func statusMessage(a *emitter.Artifacts) *userMessage {
	switch {
	case a.Stats.Rows == 0:
		return &userMessage{msgWarning, "Timeline is empty"}
	case a.Stats.Missing > 0:
		return &userMessage{msgWarning, fmt.Sprintf("%d of %d rows have no synced timestamp", a.Stats.Missing, a.Stats.Rows)}
	case len(a.Diagnostics) > 0:
		return &userMessage{msgInfo, fmt.Sprintf("All %d rows synced, with diagnostics", a.Stats.Rows)}
	}
	return &userMessage{msgSuccess, fmt.Sprintf("All %d rows synced", a.Stats.Rows)}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == viewMainMenu {
		return m.handleMainMenuKeys(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "enter", " ", "esc", "backspace":
		m.state = viewMainMenu
	case "left", "h":
		if m.state == viewChannel && m.channel > 0 {
			m.channel--
		}
	case "right", "l":
		if m.state == viewChannel && m.channel < len(m.artifacts.Channels)-1 {
			m.channel++
		}
	}
	return m, nil
}

func (m model) handleMainMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}

	case "enter", " ":
		n := len(m.artifacts.Channels)
		switch {
		case m.cursor == 0:
			m.state = viewSummary
		case m.cursor <= n:
			m.state = viewChannel
			m.channel = m.cursor - 1
		case m.cursor == n+1:
			m.state = viewVerification
		case m.cursor == n+2:
			m.state = viewDiagnostics
		default:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	switch m.state {
	case viewMainMenu:
		return m.renderMainMenu()
	case viewSummary:
		return m.renderPanel("Summary", m.renderSummary())
	case viewChannel:
		ch := m.artifacts.Channels[m.channel]
		return m.renderPanel("Channel "+ch.Name, m.renderChannel(ch))
	case viewVerification:
		return m.renderPanel("Verification", m.renderVerification())
	case viewDiagnostics:
		return m.renderPanel("Diagnostics", m.renderDiagnostics())
	}
	return ""
}

func (m model) renderMainMenu() string {
	a := m.artifacts
	s := titleStyle.Render(fmt.Sprintf("driftsync: %s onto %s", a.Receiver, a.Base)) + "\n"
	s += helpStyle.Render(m.path) + "\n\n"

	for i, choice := range m.choices {
		if m.cursor == i {
			s += selectedItemStyle.Render("> "+choice) + "\n"
		} else {
			s += menuItemStyle.Render(choice) + "\n"
		}
	}

	s += helpStyle.Render("\nUse up/down or j/k to navigate, Enter to select, q to quit")
	if m.userMessage != nil {
		s += "\n" + m.renderUserMessage()
	}
	return s
}

func (m model) renderPanel(title, body string) string {
	help := "Enter or Esc to go back, q to quit"
	if m.state == viewChannel && len(m.artifacts.Channels) > 1 {
		help = "left/right to switch channel, " + help
	}
	return titleStyle.Render(title) + "\n\n" + panelStyle.Render(body) + "\n" + helpStyle.Render(help)
}

func (m model) renderSummary() string {
	a := m.artifacts
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run:          %s\n", a.RunID)
	fmt.Fprintf(&sb, "Created:      %s\n", a.Created.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Base:         %s\n", a.Base)
	fmt.Fprintf(&sb, "Receiver:     %s\n\n", a.Receiver)
	fmt.Fprintf(&sb, "Rows:         %d\n", a.Stats.Rows)
	fmt.Fprintf(&sb, "Direct:       %s\n", okStyle.Render(fmt.Sprint(a.Stats.Direct)))
	fmt.Fprintf(&sb, "Interpolated: %s\n", warnStyle.Render(fmt.Sprint(a.Stats.Interpolated)))
	fmt.Fprintf(&sb, "Missing:      %s\n", styleCount(a.Stats.Missing, failStyle).Render(fmt.Sprint(a.Stats.Missing)))

	curve := a.Timeline
	if len(curve) > 0 {
		offsets := make([]float64, 0, len(curve))
		for _, row := range curve {
			if row.SyncedValid {
				offsets = append(offsets, row.Offset)
			}
		}
		if len(offsets) > 0 {
			lo, hi := bounds(offsets)
			fmt.Fprintf(&sb, "\nOffset:       %+.6f s to %+.6f s\n", lo, hi)
			sb.WriteString(sparkline(offsets, m.chartWidth()))
		}
	}
	return sb.String()
}

func (m model) renderChannel(ch emitter.ChannelArtifacts) string {
	var sb strings.Builder
	missing := 0
	for _, s := range ch.Samples {
		if !s.Valid {
			missing++
		}
	}
	smoothed := 0
	for _, s := range ch.Series {
		if s.SmoothValid {
			smoothed++
		}
	}
	fmt.Fprintf(&sb, "Transmitter:  %s\n", ch.Transmitter)
	fmt.Fprintf(&sb, "Samples:      %d (%d without match)\n", len(ch.Samples), missing)
	fmt.Fprintf(&sb, "Smoothed:     %d\n", smoothed)
	fmt.Fprintf(&sb, "Estimate:     %d points\n\n", len(ch.Estimate))

	fmt.Fprintf(&sb, "%-4s %-20s %-20s %6s %-13s %5s %s\n", "seg", "from", "to", "points", "status", "knots", "residual")
	for _, o := range ch.Outcomes {
		status := fmt.Sprintf("%-13s", o.Status)
		switch o.Status {
		case spline.StatusFitted:
			status = okStyle.Render(status)
		case spline.StatusInsufficient:
			status = warnStyle.Render(status)
		default:
			status = failStyle.Render(status)
		}
		fmt.Fprintf(&sb, "%-4d %-20s %-20s %6d %s %5d %.3g\n",
			o.Segment, o.From.Format("2006-01-02 15:04:05"), o.To.Format("2006-01-02 15:04:05"),
			o.Points, status, o.Knots, o.Residual)
	}

	if len(ch.Estimate) > 0 {
		offsets := make([]float64, len(ch.Estimate))
		for i, p := range ch.Estimate {
			offsets[i] = p.Offset
		}
		sb.WriteString("\n" + sparkline(offsets, m.chartWidth()))
	}
	return sb.String()
}

func (m model) renderVerification() string {
	if len(m.artifacts.Verification) == 0 {
		return "Verification was not run"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-12s %8s %8s %12s %12s %12s\n", "channel", "matched", "missing", "mean (ms)", "std (ms)", "max (ms)")
	for _, v := range m.artifacts.Verification {
		fmt.Fprintf(&sb, "%-12s %8d %8d %12.3f %12.3f %12.3f\n",
			v.Channel, v.Matched, v.Missing, v.Mean*1e3, v.Std*1e3, v.MaxAbs*1e3)
	}
	return sb.String()
}

func (m model) renderDiagnostics() string {
	if len(m.artifacts.Diagnostics) == 0 {
		return okStyle.Render("No diagnostics")
	}
	var sb strings.Builder
	for _, c := range m.artifacts.Diagnostics {
		fmt.Fprintf(&sb, "%-28s %6d\n", c.Code, c.Count)
	}
	return sb.String()
}

func (m model) renderUserMessage() string {
	var style lipgloss.Style
	switch m.userMessage.msgType {
	case msgInfo:
		style = infoMessageStyle
	case msgWarning:
		style = warningMessageStyle
	case msgSuccess:
		style = successMessageStyle
	}
	return style.Render(m.userMessage.text)
}

func (m model) chartWidth() int {
	if m.width > 20 {
		return min(m.width-12, 100)
	}
	return 60
}

func styleCount(n int, style lipgloss.Style) lipgloss.Style {
	if n == 0 {
		return okStyle
	}
	return style
}

func bounds(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	return lo, hi
}

// sparkline draws values as one row of block characters, averaging values
// that share a column.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	blocks := []rune("▁▂▃▄▅▆▇█")
	cols := min(width, len(values))

	lo, hi := bounds(values)
	var sb strings.Builder
	for c := 0; c < cols; c++ {
		from, to := c*len(values)/cols, (c+1)*len(values)/cols
		sum := 0.0
		for _, v := range values[from:to] {
			sum += v
		}
		level := 0
		if hi > lo {
			level = int((sum/float64(to-from) - lo) / (hi - lo) * float64(len(blocks)-1))
		}
		sb.WriteRune(blocks[level])
	}
	return sb.String()
}

func startTUI(path string) error {
	a, err := emitter.ReadArtifacts(path)
	if err != nil {
		return err
	}
	p := tea.NewProgram(initialModel(path, a), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
