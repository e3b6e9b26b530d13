package tui

import tea "github.com/charmbracelet/bubbletea"

// ChangedMsg tells the model the transcript store has new state to render.
type ChangedMsg struct{}

// Notifier carries store change notifications into the bubbletea event loop.
// Notifications coalesce, so Notify never blocks even when called from Update.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify is meant to be passed to transcript.WithOnChange.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

func (n *Notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n.ch
		return ChangedMsg{}
	}
}
