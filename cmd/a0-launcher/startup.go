package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"github.com/agent0ai/a0-launcher/internal/syncer"
)

var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#FF79C6")
	dimColor       = lipgloss.Color("#6272A4")
	textColor      = lipgloss.Color("#F8F8F2")
	successColor   = lipgloss.Color("#50FA7B")
	errorColor     = lipgloss.Color("#FF5555")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(textColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	countStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

const logo = `
   ▄▀▄ █▀█   █   ▄▀▄ █ █ █▄ █ ▄▀▀ █ █ █▀▀ █▀▄
   █▀█ █▄█   █▄▄ █▀█ ▀▄▀ █ ▀█ ▀▄▄ █▀█ ██▄ █▀▄
`

// defaultWrapWidth applies until the terminal reports its size.
const defaultWrapWidth = 72

type updateKind int

const (
	updateStatus updateKind = iota
	updateError
	updateProgress
	updateDone
)

type startupUpdate struct {
	kind    updateKind
	message string
	read    int64
	total   int64
}

type updateMsg startupUpdate

// startupModel is the bubbletea model for the startup screen.
type startupModel struct {
	spinner  spinner.Model
	progress progress.Model

	status      string
	errText     string
	read        int64
	total       int64
	downloading bool

	width int
	ready bool
	done  bool

	// updates carries status, error and done messages, which are never
	// dropped. Progress is coalesced: only the latest value is kept and
	// progressReady holds at most one pending signal.
	updates       chan startupUpdate
	progressMu    sync.Mutex
	latest        startupUpdate
	progressReady chan struct{}
}

func newStartupModel() *startupModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &startupModel{
		spinner:  s,
		progress: p,
		status:   "Starting",
		updates:       make(chan startupUpdate, 32),
		progressReady: make(chan struct{}, 1),
	}
}

func (m *startupModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m *startupModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.updates:
			return updateMsg(u)
		default:
		}
		select {
		case u := <-m.updates:
			return updateMsg(u)
		case <-m.progressReady:
			return updateMsg(m.takeProgress())
		}
	}
}

func (m *startupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.ready = true
		return m, nil

	case updateMsg:
		var cmds []tea.Cmd
		switch msg.kind {
		case updateDone:
			m.done = true
			return m, tea.Quit
		case updateStatus:
			m.status = msg.message
			m.downloading = false
		case updateError:
			m.errText = msg.message
			m.downloading = false
		case updateProgress:
			m.read, m.total = msg.read, msg.total
			m.downloading = true
			if m.total > 0 {
				cmds = append(cmds, m.progress.SetPercent(float64(m.read)/float64(m.total)))
			}
		}
		cmds = append(cmds, m.waitForUpdate())
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *startupModel) View() string {
	if !m.ready {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(logo))
	b.WriteString("\n")

	switch {
	case m.downloading && m.total > 0:
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(countStyle.Render(fmt.Sprintf("%s %s / %s", m.status,
			humanize.Bytes(uint64(m.read)), humanize.Bytes(uint64(m.total)))))
	case m.downloading:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString(countStyle.Render(" " + humanize.Bytes(uint64(m.read))))
	case m.errText == "" && isFinalStatus(m.status):
		b.WriteString(successStyle.Render("✓ " + m.status))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(statusStyle.Render(m.status))
	}

	if m.errText != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(wrapError(m.errText, m.wrapWidth())))
	}

	return containerStyle.Render(b.String())
}

func (m *startupModel) wrapWidth() int {
	// Leave room for the container padding.
	if w := m.width - 4; w > 10 {
		return w
	}
	return defaultWrapWidth
}

// wrapError word-wraps text to width and cuts any line that still overflows,
// such as a long URL.
func wrapError(text string, width int) string {
	lines := strings.Split(wordwrap.String(text, width), "\n")
	for i, line := range lines {
		if ansi.StringWidth(line) > width {
			lines[i] = ansi.Truncate(line, width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

func isFinalStatus(status string) bool {
	return status == syncer.MsgUpdateComplete || status == syncer.MsgUpToDate
}

// sendProgress replaces any progress the model has not read yet.
func (m *startupModel) sendProgress(read, total int64) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	m.latest = startupUpdate{kind: updateProgress, read: read, total: total}
	select {
	case m.progressReady <- struct{}{}:
	default:
	}
}

func (m *startupModel) takeProgress() startupUpdate {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	return m.latest
}

// sendUpdate queues a status, error or done message. Pending progress is
// discarded so it cannot overwrite the newer message. It blocks while the
// queue is full and gives up only when stop is closed.
func (m *startupModel) sendUpdate(update startupUpdate, stop <-chan struct{}) {
	m.progressMu.Lock()
	select {
	case <-m.progressReady:
	default:
	}
	m.progressMu.Unlock()

	select {
	case m.updates <- update:
	case <-stop:
	}
}

// StartupDisplay shows sync progress on an interactive terminal. It
// implements syncer.Notifier and syncer.ProgressNotifier.
type StartupDisplay struct {
	program *tea.Program
	model   *startupModel
	out     io.Writer
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

// NewStartupDisplay starts the startup screen on w.
func NewStartupDisplay(w io.Writer) *StartupDisplay {
	model := newStartupModel()

	program := tea.NewProgram(
		model,
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
	)

	d := &StartupDisplay{
		program: program,
		model:   model,
		out:     w,
		done:    make(chan struct{}),
	}

	go func() {
		_, _ = program.Run()
		close(d.done)
	}()

	// Give the program a moment to start
	time.Sleep(10 * time.Millisecond)

	return d
}

func (d *StartupDisplay) Status(message string) {
	d.send(startupUpdate{kind: updateStatus, message: message})
}

func (d *StartupDisplay) Error(message string) {
	d.send(startupUpdate{kind: updateError, message: message})
}

func (d *StartupDisplay) Progress(read, total int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.model.sendProgress(read, total)
}

func (d *StartupDisplay) send(update startupUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.model.sendUpdate(update, d.done)
}

// Stop ends the startup screen.
func (d *StartupDisplay) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	stop := make(chan struct{})
	timer := time.AfterFunc(100*time.Millisecond, func() { close(stop) })
	d.model.sendUpdate(startupUpdate{kind: updateDone}, stop)
	timer.Stop()

	select {
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
		d.program.Kill()
	}

	_, _ = fmt.Fprint(d.out, "\r\033[K")
}
