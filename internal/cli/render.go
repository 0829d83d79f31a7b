package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/budgetwatch/internal/model"
)

var zoneColors = map[model.Zone]lipgloss.Color{
	model.ZoneNormal:   lipgloss.Color("#3FB950"),
	model.ZoneWarning:  lipgloss.Color("#D29922"),
	model.ZoneCritical: lipgloss.Color("#F85149"),
	model.ZoneOverflow: lipgloss.Color("#A371F7"),
}

var (
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	emergencyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	tierStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
)

// zoneBadge renders a fixed-width colored zone label.
func zoneBadge(z model.Zone) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(zoneColors[z]).
		Width(8).
		Render(z.String())
}

// usageBar renders usage against max as a 20-cell bar, capped at full.
func usageBar(used, max uint64) string {
	const cells = 20
	filled := cells
	if max > 0 && used < max {
		filled = int(float64(used) / float64(max) * cells)
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", cells-filled) + "]"
}

// obligationLine renders one obligation for terminal output.
func obligationLine(ob model.Obligation) string {
	kind := string(ob.Document.TierKind)
	line := fmt.Sprintf("  -> %s %s %s",
		tierStyle.Render(ob.Tier),
		labelStyle.Render("("+kind+")"),
		labelStyle.Render(ob.Reason))
	if ob.IsEmergency {
		line = "  " + emergencyStyle.Render("EMERGENCY") + line[1:]
	}
	return line
}
