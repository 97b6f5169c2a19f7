package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/ilkoid/goose-tune/pkg/events"
)

const (
	maxMessages  = 6
	maxBarWidth  = 60
	messageWidth = 100
	defaultTitle = "goose-tune"
)

// stageStatus — состояние строки этапа.
type stageStatus int

const (
	stageRunning stageStatus = iota
	stageDone
	stageWarning
	stageFailed
)

type stageLine struct {
	name   string
	detail string
	status stageStatus
	err    string
}

// Model — экран прогресса прогона.
type Model struct {
	title  string
	sub    events.Subscriber
	cancel context.CancelFunc

	keys   KeyMap
	colors ColorScheme

	spinner spinner.Model
	bar     progress.Model

	stages   []stageLine
	progress events.ProgressData
	messages []string
	smoke    []events.SmokeResultData
	showLogs bool

	streamClosed bool
	done         bool
	aborted      bool
	err          error
}

// Option настраивает Model.
type Option func(*Model)

// WithTitle устанавливает заголовок.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithColorScheme выбирает цветовую схему по имени.
func WithColorScheme(name string) Option {
	return func(m *Model) { m.colors = GetColorScheme(name) }
}

// NewModel создаёт модель. cancel вызывается, когда пользователь
// прерывает прогон.
func NewModel(sub events.Subscriber, cancel context.CancelFunc, opts ...Option) Model {
	m := Model{
		title:    defaultTitle,
		sub:      sub,
		cancel:   cancel,
		keys:     DefaultKeyMap(),
		colors:   GetColorScheme("default"),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		showLogs: true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, ReceiveEventCmd(m.sub))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleLogs):
			m.showLogs = !m.showLogs
		}
		return m, nil

	case tea.WindowSizeMsg:
		w := msg.Width - 4
		if w > maxBarWidth {
			w = maxBarWidth
		}
		if w > 10 {
			m.bar.Width = w
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.apply(events.Event(msg))
		return m, ReceiveEventCmd(m.sub)

	case streamClosedMsg:
		m.streamClosed = true
		if m.done {
			return m, tea.Quit
		}
		return m, nil

	case workDoneMsg:
		m.done = true
		m.err = msg.err
		// Выходим, когда дочитаны все события
		if m.streamClosed {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// apply переносит событие в состояние экрана.
func (m *Model) apply(ev events.Event) {
	switch d := ev.Data.(type) {
	case events.StageData:
		if ev.Type == events.EventStageStarted {
			m.stages = append(m.stages, stageLine{name: d.Stage, detail: d.Detail, status: stageRunning})
		} else {
			m.setStatus(d.Stage, stageDone, "")
		}
	case events.ProgressData:
		if d.Step > 0 || d.TotalSteps > 0 {
			m.progress = d
		}
		if d.Message != "" {
			m.pushMessage(d.Message)
		}
	case events.ErrorData:
		status := stageFailed
		if ev.Type == events.EventWarning {
			status = stageWarning
		}
		m.setStatus(d.Stage, status, fmt.Sprint(d.Err))
	case events.SmokeResultData:
		m.smoke = append(m.smoke, d)
	}
}

func (m *Model) setStatus(name string, status stageStatus, errText string) {
	for i := len(m.stages) - 1; i >= 0; i-- {
		if m.stages[i].name == name && m.stages[i].status == stageRunning {
			m.stages[i].status = status
			m.stages[i].err = errText
			return
		}
	}
}

func (m *Model) pushMessage(msg string) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.colors.Title)
	stage := lipgloss.NewStyle().Foreground(m.colors.Stage)
	done := lipgloss.NewStyle().Foreground(m.colors.Done)
	warn := lipgloss.NewStyle().Foreground(m.colors.Warning)
	fail := lipgloss.NewStyle().Foreground(m.colors.Error)
	dim := lipgloss.NewStyle().Foreground(m.colors.Dim)

	var b strings.Builder
	b.WriteString(title.Render("🪿 "+m.title) + "\n\n")

	for _, s := range m.stages {
		label := s.name
		if s.detail != "" {
			label += dim.Render(" " + truncate.StringWithTail(s.detail, 60, "..."))
		}
		switch s.status {
		case stageRunning:
			b.WriteString(m.spinner.View() + " " + stage.Render(label))
		case stageDone:
			b.WriteString(done.Render("✓ ") + label)
		case stageWarning:
			b.WriteString(warn.Render("! " + s.name + ": " + s.err))
		case stageFailed:
			b.WriteString(fail.Render("✗ " + s.name + ": " + s.err))
		}
		b.WriteString("\n")
	}

	if m.progress.TotalSteps > 0 {
		b.WriteString("\n" + m.bar.ViewAs(m.progress.Fraction()))
		b.WriteString(dim.Render(fmt.Sprintf("  step %d/%d  loss %.4f", m.progress.Step, m.progress.TotalSteps, m.progress.Loss)))
		b.WriteString("\n")
	}

	if m.showLogs && len(m.messages) > 0 {
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(dim.Render("  "+truncate.StringWithTail(msg, messageWidth, "...")) + "\n")
		}
	}

	for _, r := range m.smoke {
		if r.Valid {
			b.WriteString(done.Render(fmt.Sprintf("✓ %s (%d elements)", r.Prompt, r.Elements)) + "\n")
		} else {
			b.WriteString(fail.Render(fmt.Sprintf("✗ %s: %v", r.Prompt, r.Err)) + "\n")
		}
	}

	switch {
	case m.aborted:
		b.WriteString("\n" + warn.Render("aborting...") + "\n")
	case m.done && m.err != nil:
		b.WriteString("\n" + fail.Render("run failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n" + done.Render("run finished") + "\n")
	default:
		b.WriteString("\n" + dim.Render("ctrl+c abort • l toggle messages") + "\n")
	}
	return b.String()
}
