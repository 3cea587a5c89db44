package render

import (
	"fmt"
	"strings"
)

// usageGauge fills from left to right as usage grows. The bar saturates at
// 100% but the printed figure does not.
func (s styles) usageGauge(usedPercent, width int) string {
	if width < 5 {
		width = 5
	}

	fill := usedPercent
	if fill < 0 {
		fill = 0
	}
	if fill > 100 {
		fill = 100
	}

	filled := fill * width / 100
	empty := width - filled

	color := s.usageColor(usedPercent)
	bar := s.r.NewStyle().Foreground(color).Render(strings.Repeat("━", filled)) +
		s.track.Render(strings.Repeat("━", empty))

	pct := s.r.NewStyle().Foreground(color).Bold(true).Render(fmt.Sprintf("%3d%%", usedPercent))
	return bar + " " + pct
}
