package style

import "github.com/charmbracelet/lipgloss"

// Цвета вывода CLI
var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Warnings, stale entries
	Green   = lipgloss.Color("#2AFFAA") // Up to date
	Red     = lipgloss.Color("#FF5555") // Errors

	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
	Base1  = lipgloss.Color("#B4BCC8") // Secondary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color

	Text          lipgloss.Color
	TextMuted     lipgloss.Color
	TextSecondary lipgloss.Color
}

// DefaultPalette returns the default color palette
func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,

		Text:          Base2,
		TextMuted:     Base01,
		TextSecondary: Base1,
	}
}

// Styles used by the list output.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Fresh lipgloss.Style
	Stale lipgloss.Style
}

func NewStyles(palette Palette) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true),
		Label: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
		Value: lipgloss.NewStyle().
			Foreground(palette.Text),
		Fresh: lipgloss.NewStyle().
			Foreground(palette.Success),
		Stale: lipgloss.NewStyle().
			Foreground(palette.Warning).
			Bold(true),
	}
}
