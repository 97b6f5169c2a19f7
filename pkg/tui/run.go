package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/goose-tune/pkg/events"
)

// Run показывает экран прогресса, пока выполняется work.
//
// work получает контекст, который отменяется при Ctrl+C, и публикует
// события в emitter. После завершения work эмиттер закрывается.
// Возвращает ошибку work (или ошибку TUI, если work успешен).
func Run(ctx context.Context, emitter *events.ChanEmitter, work func(ctx context.Context) error, opts ...Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(emitter.Subscribe(), cancel, opts...)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	workErr := make(chan error, 1)
	go func() {
		err := work(ctx)
		emitter.Close()
		workErr <- err
		p.Send(workDoneMsg{err: err})
	}()

	_, uiErr := p.Run()
	// Выход из TUI отменяет прогон; ждём, пока work отпустит ресурсы
	cancel()
	err := <-workErr
	if err != nil {
		return err
	}
	if uiErr != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", uiErr)
	}
	return nil
}
