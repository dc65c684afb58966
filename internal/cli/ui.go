package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/stitch/pkg/pipeline"
)

// Terminal styles. Colors are ANSI 256 codes so they degrade on basic terminals.
var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	styleHighlight = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleValue     = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	styleWarning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleKey       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)

	styleIconSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	styleIconInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleIconSpinner = styleHighlight
	styleCached      = styleIconSuccess
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// printStatus prints msg behind a styled icon.
func printStatus(icon string, style lipgloss.Style, format string, args ...any) {
	fmt.Println(style.Render(icon) + " " + fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) {
	printStatus(iconSuccess, styleIconSuccess, format, args...)
}

func printInfo(format string, args ...any) {
	printStatus(iconInfo, styleIconInfo, format, args...)
}

func printWarning(format string, args ...any) {
	printStatus(iconWarning, styleWarning, "%s", styleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, muted line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + styleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile points at a file the command wrote.
func printFile(path string) {
	fmt.Println("  " + styleDim.Render(iconArrow) + " " + styleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + styleValue.Render(value))
}

// printRunStats prints layer, pair, size and cache counts on one line, e.g.
//
//	3 layers · 3 pairs · 84x94 · 2/3 cached
func printRunStats(r *pipeline.Result) {
	parts := []string{
		styleDim.Render(fmt.Sprintf("%d layers", r.Stats.LayerCount)),
		styleDim.Render(fmt.Sprintf("%d pairs", r.Stats.PairCount)),
	}
	if r.Output != nil {
		parts = append(parts, styleDim.Render(fmt.Sprintf("%dx%d", r.Stats.Width, r.Stats.Height)))
	}
	if total := r.CacheInfo.OffsetHits + r.CacheInfo.OffsetMisses; total > 0 {
		if r.CacheInfo.OffsetHits > 0 {
			parts = append(parts, styleCached.Render(fmt.Sprintf("%d/%d cached", r.CacheInfo.OffsetHits, total)))
		} else {
			parts = append(parts, styleDim.Render("fresh"))
		}
	}
	fmt.Println("  " + strings.Join(parts, styleDim.Render(" · ")))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(styleDim.Render(description+":") + " " + styleHighlight.Render(cmd))
}

func printNewline() {
	fmt.Println()
}
