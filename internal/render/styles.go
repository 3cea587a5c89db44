package render

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha.
var (
	colorText     = lipgloss.Color("#CDD6F4")
	colorSubtext  = lipgloss.Color("#A6ADC8")
	colorDim      = lipgloss.Color("#585B70")
	colorSurface1 = lipgloss.Color("#45475A")
	colorAccent   = lipgloss.Color("#CBA6F7")
	colorLavender = lipgloss.Color("#B4BEFE")
	colorGreen    = lipgloss.Color("#A6E3A1")
	colorYellow   = lipgloss.Color("#F9E2AF")
	colorRed      = lipgloss.Color("#F38BA8")
	colorPeach    = lipgloss.Color("#FAB387")

	colorOK   = colorGreen
	colorWarn = colorYellow
	colorCrit = colorRed
	colorAuth = colorPeach
)

// Usage thresholds, in percent used.
const (
	warnAt = 70
	critAt = 90
)

// styles are bound to one renderer so color output follows the destination
// writer rather than the process's stdout.
type styles struct {
	r *lipgloss.Renderer

	name   lipgloss.Style
	active lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	dim    lipgloss.Style
	err    lipgloss.Style
	auth   lipgloss.Style
	track  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		r:      r,
		name:   r.NewStyle().Bold(true).Foreground(colorLavender),
		active: r.NewStyle().Bold(true).Foreground(colorAccent),
		label:  r.NewStyle().Foreground(colorSubtext),
		value:  r.NewStyle().Foreground(colorText),
		dim:    r.NewStyle().Foreground(colorDim),
		err:    r.NewStyle().Foreground(colorCrit),
		auth:   r.NewStyle().Foreground(colorAuth),
		track:  r.NewStyle().Foreground(colorSurface1),
	}
}

func (s styles) usageColor(percent int) lipgloss.Color {
	switch {
	case percent >= critAt:
		return colorCrit
	case percent >= warnAt:
		return colorWarn
	default:
		return colorOK
	}
}
