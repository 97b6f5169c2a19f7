// goose-data — просмотр обучающих данных: какие файлы попадут в обучение,
// сколько в них примеров и где битые строки.
//
// Использование:
//
//	./goose-data                          # data.dir из goose.yaml
//	./goose-data --data-dir s3://goose/training
//	./goose-data --plain                  # без TUI, код выхода 1 при ошибках
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ilkoid/goose-tune/pkg/app"
	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/dataset"
)

// --- Стили ---
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")). // Зеленый
			Padding(0, 1)

	itemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")) // Розовый
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

const inspectTimeout = 60 * time.Second

// --- Сообщения ---
type errMsg error
type reportMsg []dataset.FileReport

// --- Модель ---
type model struct {
	loader   *dataset.Loader
	source   string
	spinner  spinner.Model
	viewport viewport.Model
	content  string

	loading bool
	err     error
	ready   bool
}

func initialModel(loader *dataset.Loader, source string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		loader:  loader,
		source:  source,
		spinner: s,
		loading: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, inspect(m.loader))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case errMsg:
		m.err = msg
		m.loading = false
		return m, nil

	case reportMsg:
		m.loading = false
		m.content = formatReport(msg)
		if m.ready {
			m.viewport.SetContent(m.content)
		}
		return m, nil

	case tea.WindowSizeMsg:
		headerHeight := 2
		verticalMarginHeight := 2

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - verticalMarginHeight
		}
	}

	if m.loading {
		m.spinner, cmd = m.spinner.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n❌ Error: %v\n\nPress 'q' to quit.", m.err)
	}
	if m.loading {
		return fmt.Sprintf("\n %s Reading %s...\n\n", m.spinner.View(), m.source)
	}

	header := titleStyle.Render("🪿 Training data · " + m.source)
	return fmt.Sprintf("%s\n%s\n\n(Press 'q' to quit, arrows to scroll)", header, m.viewport.View())
}

// --- Команды ---

func inspect(loader *dataset.Loader) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
		defer cancel()

		reports, err := loader.Inspect(ctx)
		if err != nil {
			return errMsg(err)
		}
		return reportMsg(reports)
	}
}

// formatReport — таблица файлов с итогом.
func formatReport(reports []dataset.FileReport) string {
	if len(reports) == 0 {
		return "No files found."
	}

	var (
		b        strings.Builder
		files    int
		examples int
		broken   int
	)
	for _, r := range reports {
		switch {
		case !r.Training:
			b.WriteString(skippedStyle.Render(fmt.Sprintf("-  %-8s  %s", "skipped", r.Name)))
		case r.Err != nil:
			broken++
			b.WriteString(errStyle.Render(fmt.Sprintf("✗  %-8s  %s: %v", "broken", r.Name, r.Err)))
		default:
			files++
			examples += r.Examples
			b.WriteString(fmt.Sprintf("%s  %-8d  %s", itemStyle.Render("•"), r.Examples, r.Name))
		}
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("Training files: %d  Examples: %d  Broken: %d\n\n", files, examples, broken)
	return summary + b.String()
}

func hasBroken(reports []dataset.FileReport) bool {
	for _, r := range reports {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// --- Main ---

func main() {
	var (
		configPath = flag.String("config", "", "Path to goose.yaml (default: ./goose.yaml)")
		dataDir    = flag.String("data-dir", "", "Training data directory or s3://prefix (overrides data.dir)")
		plain      = flag.Bool("plain", false, "Print the report without the interactive view")
	)
	flag.Parse()

	cfg, _, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config Error: %v\n", err)
		os.Exit(1)
	}
	// Журнал прогонов здесь не нужен
	cfg.App.HistoryDB = ""

	components, err := app.Initialize(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Init Error: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	dir := cfg.Data.Dir
	if *dataDir != "" {
		dir = *dataDir
	}
	source, err := components.DataSource(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Data Error: %v\n", err)
		os.Exit(1)
	}
	loader := dataset.NewLoader(source, cfg.Data)

	if *plain {
		ctx, cancel := context.WithTimeout(context.Background(), inspectTimeout)
		defer cancel()
		reports, err := loader.Inspect(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(formatReport(reports))
		if hasBroken(reports) {
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(initialModel(loader, source.String()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
