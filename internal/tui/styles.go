package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	pendingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	imageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).PaddingLeft(2)
	selectedStyle = imageStyle.Foreground(lipgloss.Color("170")).Bold(true)
	emptyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Align(lipgloss.Center)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).PaddingLeft(1)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).PaddingLeft(1)
	confirmStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")).PaddingLeft(1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	modalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(1, 3)

	modalTitleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1).
			Bold(true)
)
