package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/goose-tune/pkg/events"
)

// EventMsg — events.Event в виде Bubble Tea сообщения.
type EventMsg events.Event

// streamClosedMsg — эмиттер закрыт, событий больше не будет.
type streamClosedMsg struct{}

// workDoneMsg — прогон завершён (err = nil при успехе).
type workDoneMsg struct {
	err error
}

// ReceiveEventCmd возвращает Cmd, ждущий следующего события из sub.
func ReceiveEventCmd(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg(event)
	}
}
