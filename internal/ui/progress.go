// Package ui renders batch translation progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"wavefront/internal/driver"
)

const statusWidth = 10

// stageWeight is the share of a function's work finished once a stage
// starts.
var stageWeight = map[driver.Stage]float64{
	driver.StageCache: 0.1,
	driver.StageLower: 0.3,
	driver.StagePrint: 0.8,
}

var workingLabel = map[driver.Stage]string{
	driver.StageCache: "cache",
	driver.StageLower: "lowering",
	driver.StagePrint: "printing",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

type funcItem struct {
	name    string
	stage   driver.Stage
	status  driver.Status
	elapsed time.Duration
	err     error
}

// label is the status column text.
func (it *funcItem) label() string {
	switch it.status {
	case driver.StatusDone:
		if it.stage == driver.StageCache {
			return "cached"
		}
		return "done"
	case driver.StatusError:
		return "error"
	case driver.StatusWorking:
		if l, ok := workingLabel[it.stage]; ok {
			return l
		}
	}
	return "queued"
}

func (it *funcItem) finished() bool {
	return it.status == driver.StatusDone || it.status == driver.StatusError
}

type progressModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	bar     progress.Model
	items   []funcItem
	index   map[string]int
	width   int
	done    bool
}

type eventMsg driver.Event
type closedMsg struct{}

// NewProgressModel returns a Bubble Tea model that shows one line per
// function until events is closed.
func NewProgressModel(title string, funcs []string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = workingStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		items:   make([]funcItem, len(funcs)),
		index:   make(map[string]int, len(funcs)),
		width:   80,
	}
	for i, name := range funcs {
		m.items[i] = funcItem{name: name, stage: driver.StageQueued, status: driver.StatusQueued}
		m.index[name] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.applyEvent(driver.Event(msg)), m.next())
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) failed() int {
	n := 0
	for i := range m.items {
		if m.items[i].status == driver.StatusError {
			n++
		}
	}
	return n
}

func (m *progressModel) header() string {
	switch {
	case !m.done:
		return m.spinner.View() + " " + m.title
	case m.failed() > 0:
		return fmt.Sprintf("failed (%d): %s", m.failed(), m.title)
	}
	return "done: " + m.title
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.header()))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusWidth-16, 20)
	for i := range m.items {
		it := &m.items[i]
		status := fmt.Sprintf("%*s", statusWidth, it.label())
		fmt.Fprintf(&b, "  %s %s", statusStyle(it).Render(status), truncate(it.name, nameWidth))
		switch {
		case it.err != nil:
			b.WriteString("  " + errStyle.Render(truncate(it.err.Error(), nameWidth)))
		case it.finished() && it.elapsed > 0:
			b.WriteString("  " + dimStyle.Render(it.elapsed.Round(time.Microsecond).String()))
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	idx, ok := m.index[ev.Func]
	if !ok {
		return nil
	}
	it := &m.items[idx]
	it.stage, it.status = ev.Stage, ev.Status
	if it.finished() {
		it.elapsed, it.err = ev.Elapsed, ev.Err
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for i := range m.items {
		if m.items[i].finished() {
			total++
		} else {
			total += stageWeight[m.items[i].stage]
		}
	}
	return total / float64(len(m.items))
}

func statusStyle(it *funcItem) lipgloss.Style {
	switch {
	case it.status == driver.StatusError:
		return errStyle
	case it.finished():
		return okStyle
	case it.status == driver.StatusWorking:
		return workingStyle
	}
	return idleStyle
}

// truncate shortens value to width terminal cells.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
