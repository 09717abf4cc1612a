package tui

import "github.com/charmbracelet/lipgloss"

// ────────────────────────────────────────────────────────────
// Color Palette
// ────────────────────────────────────────────────────────────
//
// All colors are defined here. No ad-hoc color literals anywhere.

var (
	// Base
	colorBg        = lipgloss.Color("#0d1117")
	colorBgSurface = lipgloss.Color("#1c2128")

	// Text
	colorText      = lipgloss.Color("#e6edf3")
	colorTextDim   = lipgloss.Color("#8b949e")
	colorTextMuted = lipgloss.Color("#484f58")

	// Accents
	colorBlue   = lipgloss.Color("#58a6ff")
	colorGreen  = lipgloss.Color("#3fb950")
	colorRed    = lipgloss.Color("#f85149")
	colorYellow = lipgloss.Color("#d29922")
	colorPurple = lipgloss.Color("#bc8cff")
	colorCyan   = lipgloss.Color("#76e3ea")

	// Structural
	colorDivider   = lipgloss.Color("#30363d")
	colorHighlight = lipgloss.Color("#1f6feb")
)

// ────────────────────────────────────────────────────────────
// Component Styles
// ────────────────────────────────────────────────────────────

// Header bar
var (
	headerBarStyle = lipgloss.NewStyle().
			Background(colorBgSurface).
			Foreground(colorText).
			Padding(0, 1)

	headerBrandStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorBlue)

	headerSepStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	headerMetaStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	headerTabStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	headerTabActiveStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Underline(true).
				Bold(true)
)

// Panel chrome
var (
	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.Border{Top: "─"}).
			BorderForeground(colorDivider)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(colorDivider)
)

// Lists (devices, poses, joints)
var (
	itemStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Padding(0, 1)

	itemSelectedStyle = lipgloss.NewStyle().
				Background(colorHighlight).
				Foreground(colorText).
				Bold(true).
				Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	emptyStateStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Padding(2, 4)
)

// Session state
var (
	labelStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	busyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	disabledStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Italic(true)

	matrixStyle = lipgloss.NewStyle().
			Foreground(colorCyan)
)

// Statistics
var (
	barRangeStyle = lipgloss.NewStyle().
			Foreground(colorPurple)

	barStdStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	sparkStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	sparkDriftStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	tableHeadStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			Bold(true)
)

// Blocking notice
var (
	noticeStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorYellow).
			Padding(1, 3)

	noticeTitleStyle = lipgloss.NewStyle().
				Foreground(colorYellow).
				Bold(true)
)

// Footer / status bar
var (
	statusStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	hintKeyStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	hintDescStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)
)

// Notes input
var (
	inputBarStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorBgSurface).
			Padding(0, 1)

	inputCursorStyle = lipgloss.NewStyle().
				Background(colorBlue).
				Foreground(colorBg)
)
