package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// currentTheme holds the active theme (set at init)
var currentTheme Theme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red                         lipgloss.Color
}

// Dark Theme - Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
}

// Active color variables (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorOrange  lipgloss.Color
	ColorRed     lipgloss.Color
)

// themeMu protects global color/style variables during live theme switches.
var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name
// Must be called before any UI rendering
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	p := darkColors
	currentTheme = ThemeDark
	if theme == "light" {
		p = lightColors
		currentTheme = ThemeLight
	}
	ColorBg = p.Bg
	ColorSurface = p.Surface
	ColorBorder = p.Border
	ColorText = p.Text
	ColorTextDim = p.TextDim
	ColorAccent = p.Accent
	ColorPurple = p.Purple
	ColorCyan = p.Cyan
	ColorGreen = p.Green
	ColorYellow = p.Yellow
	ColorOrange = p.Orange
	ColorRed = p.Red
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme("dark")
}

// Base Styles
var (
	TitleStyle   lipgloss.Style
	DimStyle     lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
)

// Search bar
var (
	SearchBoxStyle    lipgloss.Style
	SearchPromptStyle lipgloss.Style
	FacetStyle        lipgloss.Style
)

// Result list
var (
	RowStyle         lipgloss.Style
	RowSelectedStyle lipgloss.Style
	StarStyle        lipgloss.Style
	CountStyle       lipgloss.Style
	DateStyle        lipgloss.Style
	KeywordStyle     lipgloss.Style
)

// Detail pane
var (
	PanelStyle       lipgloss.Style
	PanelActiveStyle lipgloss.Style
	HeaderStyle      lipgloss.Style
	NoteStyle        lipgloss.Style
	CodeStyle        lipgloss.Style
	CodeLangStyle    lipgloss.Style
	ToolStyle        lipgloss.Style
	SimilarStyle     lipgloss.Style
)

// Menu bar
var (
	MenuBarStyle  lipgloss.Style
	MenuKeyStyle  lipgloss.Style
	MenuDescStyle lipgloss.Style
)

// roleStyles maps Message.RoleClass() to a label style.
var roleStyles map[string]lipgloss.Style

func initStyles() {
	TitleStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	DimStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	InfoStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)
	SearchPromptStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	FacetStyle = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorPurple).Padding(0, 1)

	RowStyle = lipgloss.NewStyle().Foreground(ColorText)
	RowSelectedStyle = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorAccent).Bold(true)
	StarStyle = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	CountStyle = lipgloss.NewStyle().Foreground(ColorCyan)
	DateStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	KeywordStyle = lipgloss.NewStyle().Foreground(ColorPurple)

	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)
	PanelActiveStyle = PanelStyle.BorderForeground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Foreground(ColorText).Bold(true).Underline(true)
	NoteStyle = lipgloss.NewStyle().Foreground(ColorGreen).Italic(true)
	CodeStyle = lipgloss.NewStyle().Foreground(ColorText).Background(ColorSurface)
	CodeLangStyle = lipgloss.NewStyle().Foreground(ColorOrange)
	ToolStyle = lipgloss.NewStyle().Foreground(ColorTextDim).Italic(true)
	SimilarStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	MenuBarStyle = lipgloss.NewStyle().Foreground(ColorTextDim).Padding(0, 1)
	MenuKeyStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	MenuDescStyle = lipgloss.NewStyle().Foreground(ColorTextDim)

	roleStyles = map[string]lipgloss.Style{
		"user":      lipgloss.NewStyle().Foreground(ColorGreen).Bold(true),
		"assistant": lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),
		"system":    lipgloss.NewStyle().Foreground(ColorOrange).Bold(true),
		"tool":      lipgloss.NewStyle().Foreground(ColorTextDim).Bold(true),
	}
}

// RoleStyle returns the label style for a role class.
func RoleStyle(class string) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	if s, ok := roleStyles[class]; ok {
		return s
	}
	return lipgloss.NewStyle().Foreground(ColorPurple).Bold(true)
}

// MenuKey renders one "key description" hint for the menu bar.
func MenuKey(key, description string) string {
	return MenuKeyStyle.Render(key) + " " + MenuDescStyle.Render(description)
}
