package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/corvid/threadview/backend/api/conv"
)

var (
	functionStyle = lipgloss.NewStyle().Bold(true)

	argsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	failureOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("203"))

	synthesizedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Italic(true)
)

const maxInlineOutput = 120

// RenderPair renders one reconciled pair as a status line plus an indented
// output line.
func RenderPair(p conv.ToolCallPair, width int) string {
	var b strings.Builder

	b.WriteString(stateSymbol(p))
	b.WriteString(" ")
	b.WriteString(functionStyle.Render(p.Function))
	if p.Arguments != "" && p.Arguments != "{}" {
		b.WriteString(argsStyle.Render("(" + truncate(p.Arguments, 60) + ")"))
	}
	if p.Synthesized {
		b.WriteString(" " + synthesizedStyle.Render("(synthesized)"))
	}

	switch {
	case p.State == "pending":
		note := "waiting for result"
		if !p.CallCreatedAt.IsZero() {
			note += ", called " + RelativeTime(p.CallCreatedAt)
		}
		b.WriteString(" " + pendingStyle.Render(note))
	case p.Output != "":
		style := outputStyle
		if !p.Success {
			style = failureOutputStyle
		}
		limit := maxInlineOutput
		if width > 0 && width-4 < limit {
			limit = width - 4
		}
		b.WriteString("\n    " + style.Render(truncate(oneLine(p.Output), limit)))
	}

	return b.String()
}

// RenderPairs renders the full pair list, one entry per pair, in call order.
func RenderPairs(pairs []conv.ToolCallPair, width int) string {
	if len(pairs) == 0 {
		return InfoSymbol + " no tool calls in this thread"
	}

	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = RenderPair(p, width)
	}
	return strings.Join(lines, "\n")
}

// Summary renders a one-line count of pair states.
func Summary(pairs []conv.ToolCallPair) string {
	var pending, failed, succeeded int
	for _, p := range pairs {
		switch {
		case p.State == "pending":
			pending++
		case p.Success:
			succeeded++
		default:
			failed++
		}
	}
	return fmt.Sprintf("%d pairs: %d succeeded, %d failed, %d pending",
		len(pairs), succeeded, failed, pending)
}

func stateSymbol(p conv.ToolCallPair) string {
	switch {
	case p.State == "pending":
		return ActionSymbol
	case p.Success:
		return SuccessSymbol
	default:
		return SmallErrorSymbol
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}
