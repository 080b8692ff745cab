package terminal

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/corvid/threadview/backend/api/conv"
)

var (
	feedHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	feedFooterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// PairsMsg delivers a fresh pair list to the feed.
type PairsMsg []conv.ToolCallPair

// StatusMsg updates the connection status line.
type StatusMsg string

// ErrMsg terminates the feed with an error.
type ErrMsg struct{ Err error }

// PairFeed is a live view of a thread's reconciled pairs. Each PairsMsg
// replaces the whole list; the feed never accumulates deltas.
type PairFeed struct {
	viewport viewport.Model
	threadID string
	status   string
	pairs    []conv.ToolCallPair
	width    int
	height   int
	ready    bool
	err      error
}

func NewPairFeed(threadID string) PairFeed {
	return PairFeed{
		threadID: threadID,
		status:   "connecting",
	}
}

func (m PairFeed) Err() error {
	return m.err
}

func (m PairFeed) Init() tea.Cmd {
	return nil
}

func (m PairFeed) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(RenderPairs(m.pairs, m.width))

	case PairsMsg:
		m.pairs = msg
		if m.ready {
			atBottom := m.viewport.AtBottom()
			m.viewport.SetContent(RenderPairs(m.pairs, m.width))
			if atBottom {
				m.viewport.GotoBottom()
			}
		}

	case StatusMsg:
		m.status = string(msg)

	case ErrMsg:
		m.err = msg.Err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m PairFeed) View() string {
	if !m.ready {
		return "loading..."
	}

	header := feedHeaderStyle.Render(fmt.Sprintf("thread %s [%s]", m.threadID, m.status))
	footer := feedFooterStyle.Render(Summary(m.pairs) + "  (q to quit)")
	return header + "\n\n" + m.viewport.View() + "\n" + footer
}
