// Package tui is the terminal chat screen over a transcript.Store.
package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"gwi.com/docs-assistant/internal/transcript"
)

const (
	headerHeight = 1
	footerHeight = 5 // input box, error line and help line
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

type Model struct {
	ctx      context.Context
	store    *transcript.Store
	notifier *Notifier

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	imageCursor int // index into the flattened image list, -1 when none was picked
	notice      string
	width       int
	height      int
	ready       bool
}

// New builds the chat screen. notifier must be the one whose Notify was
// registered on store with transcript.WithOnChange.
func New(ctx context.Context, store *transcript.Store, notifier *Notifier) Model {
	ti := textinput.New()
	ti.Placeholder = "Задайте вопрос по документации (Enter чтобы отправить)"
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	return Model{
		ctx:         ctx,
		store:       store,
		notifier:    notifier,
		input:       ti,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		imageCursor: -1,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.loadHistory(), m.notifier.wait())
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		m.store.Initialize(m.ctx)
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.input.Width = max(msg.Width-6, 10)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-4, 20)),
		)
		m.ready = true
		m.refresh(true)
		return m, nil

	case ChangedMsg:
		m.refresh(true)
		return m, m.notifier.wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if hasPending(m.store.Exchanges()) {
			m.refresh(false)
		}
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		m.notice = ""
		if handled := m.handleKey(msg); handled {
			return m, nil
		}
		switch msg.String() {
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if _, ok := msg.(tea.KeyMsg); ok {
		m.store.SetInput(m.input.Value())
	}
	return m, tea.Batch(cmds...)
}

// handleKey applies the key to the store and reports whether it was consumed.
func (m *Model) handleKey(msg tea.KeyMsg) bool {
	st := m.store.Snapshot()

	if st.ClearMenuOpen {
		switch msg.String() {
		case "y":
			m.store.ClearHistory(m.ctx, true)
			m.imageCursor = -1
		case "n", "esc", "ctrl+l":
			m.store.ToggleClearMenu()
		}
		return true
	}

	if st.ModalOpen {
		switch msg.String() {
		case "esc":
			m.store.DismissImage()
		case "c":
			if err := clipboardWriteAll(st.SelectedImage); err != nil {
				m.notice = "Не удалось скопировать ссылку"
			} else {
				m.notice = "Ссылка скопирована"
			}
		case "tab":
			m.cycleImage(st.Exchanges, 1)
		case "shift+tab":
			m.cycleImage(st.Exchanges, -1)
		}
		return true
	}

	switch msg.String() {
	case "enter":
		m.store.SetInput(m.input.Value())
		// A rejected submit surfaces through the store error.
		_, _ = m.store.SubmitInput(m.ctx)
		m.input.SetValue(m.store.Input())
		return true
	case "ctrl+l":
		m.store.ToggleClearMenu()
		return true
	case "tab":
		m.cycleImage(st.Exchanges, 1)
		return true
	case "shift+tab":
		m.cycleImage(st.Exchanges, -1)
		return true
	}
	return false
}

func (m *Model) cycleImage(exchanges []transcript.Exchange, step int) {
	images := allImages(exchanges)
	if len(images) == 0 {
		return
	}
	switch {
	case m.imageCursor < 0 && step < 0:
		m.imageCursor = len(images) - 1
	case m.imageCursor < 0:
		m.imageCursor = 0
	default:
		m.imageCursor = (m.imageCursor + step + len(images)) % len(images)
	}
	m.store.SelectImage(images[m.imageCursor])
}

func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript(m.store.Snapshot()))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTranscript(st transcript.State) string {
	if len(st.Exchanges) == 0 {
		return emptyStyle.Width(m.viewport.Width).Render("История пуста. Задайте первый вопрос.")
	}

	var sb strings.Builder
	for _, ex := range st.Exchanges {
		sb.WriteString(questionStyle.Render("Вы: " + ex.Question))
		sb.WriteString("\n")

		switch ex.Status {
		case transcript.StatusPending:
			sb.WriteString(m.spinner.View() + " " + pendingStyle.Render("Ищу ответ..."))
			sb.WriteString("\n")
		case transcript.StatusFailed:
			sb.WriteString(failedStyle.Render("(ответ не получен)"))
			sb.WriteString("\n")
		default:
			sb.WriteString(m.renderMarkdown(ex.Answer))
			for _, img := range ex.Images {
				if st.ModalOpen && img == st.SelectedImage {
					sb.WriteString(selectedStyle.Render("▸ " + img))
				} else {
					sb.WriteString(imageStyle.Render("• " + img))
				}
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (m Model) View() string {
	if !m.ready {
		return "Загрузка..."
	}

	st := m.store.Snapshot()
	if st.ModalOpen {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.modalView(st.SelectedImage))
	}

	header := titleStyle.Render("Помощник по документации")

	status := errorStyle.Render(st.Error)
	if m.notice != "" {
		status = helpStyle.Render(m.notice)
	}

	help := helpStyle.Render("enter: отправить • tab: изображения • ctrl+l: очистить историю • ctrl+c: выход")
	if st.ClearMenuOpen {
		help = confirmStyle.Render("Очистить всю историю? Это действие необратимо. (y/n)")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputStyle.Width(max(m.width-2, 10)).Render(m.input.View()),
		status,
		help,
	)
}

func (m Model) modalView(image string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		modalTitleStyle.Render("Изображение"),
		"",
		image,
		"",
		helpStyle.Render("c: копировать ссылку • tab/shift+tab: другое изображение • esc: закрыть"),
	)
	if m.notice != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, helpStyle.Render(m.notice))
	}
	return modalStyle.Render(body)
}

func allImages(exchanges []transcript.Exchange) []string {
	var images []string
	for _, ex := range exchanges {
		images = append(images, ex.Images...)
	}
	return images
}

func hasPending(exchanges []transcript.Exchange) bool {
	for _, ex := range exchanges {
		if ex.Status == transcript.StatusPending {
			return true
		}
	}
	return false
}
