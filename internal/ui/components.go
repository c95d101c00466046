package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
)

// filledCells is the number of bar cells lit by level, clamped to width.
func filledCells(level float64, width int) int {
	if !(level > 0) {
		return 0
	}
	n := int(level * float64(width))
	if n > width {
		n = width
	}
	return n
}

func renderBar(level float64, width int) string {
	filled := filledCells(level, width)
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

// renderLabel pads "[label]" to labelW so the bars line up.
func renderLabel(label string, labelW int) string {
	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, "["+label+"]"))
}

// renderLine draws "[Label] - {####----}".
func renderLine(label string, labelW int, level float64, width int) string {
	return fmt.Sprintf("%s - {%s}", renderLabel(label, labelW), renderBar(level, width))
}

func renderGradientLine(label string, labelW int, level float64, width int, p progress.Model) string {
	p.Width = width
	ratio := float64(filledCells(level, width)) / float64(width)
	return fmt.Sprintf("%s - {%s}", renderLabel(label, labelW), p.ViewAs(ratio))
}
