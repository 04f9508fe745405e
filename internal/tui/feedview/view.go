package feedview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/output"
)

// cardHeight is the rendered height of one poll card including its border
const cardHeight = 6

// chromeHeight is header, filter line and footer
const chromeHeight = 4

// placeholderCards is how many ghost cards show while loading
const placeholderCards = 3

func (m Model) cardsPerPage() int {
	if m.Height == 0 {
		return 1
	}
	return max((m.Height-chromeHeight)/cardHeight, 1)
}

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	bodyHeight := m.Height - chromeHeight
	body := m.renderBody(bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderFilter(),
		lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body),
		m.renderFooter(),
	)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString(fmt.Sprintf("%s (resize for full view)\n\n", m.title))
	s.WriteString(fmt.Sprintf("State: %s\n", m.State))
	s.WriteString(fmt.Sprintf("Polls: %d\n", len(m.Rows)))
	if pos := m.SelectedPosition(); pos >= 0 {
		row := m.Rows[pos]
		s.WriteString(ansi.Truncate(fmt.Sprintf("> %s (%s)", row.Title, output.FormatVotes(row.TotalVoteCount)), m.Width, "…"))
		s.WriteString("\n")
	}

	s.WriteString("\nq:quit r:refresh ?:help")
	return s.String()
}

func (m Model) renderHeader() string {
	left := headerStyle.Render(m.title)

	switch {
	case m.State == feed.StateLoading || m.State == feed.StateInitialized:
		left += " " + m.spinner.View() + subtleStyle.Render(" Loading polls")
	case m.State == feed.StateRefreshing:
		left += " " + m.spinner.View() + subtleStyle.Render(" Refreshing")
	case m.State == feed.StateLoadingNextPage:
		left += " " + m.spinner.View() + subtleStyle.Render(" Loading more")
	}

	right := subtleStyle.Render(fmt.Sprintf("%d polls", len(m.Rows)))
	if len(m.Visible) != len(m.Rows) {
		right = subtleStyle.Render(fmt.Sprintf("%d of %d polls", len(m.Visible), len(m.Rows)))
	}

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderFilter() string {
	if m.Filtering || m.filter.Value() != "" {
		return m.filter.View()
	}
	return ""
}

func (m Model) renderBody(height int) string {
	if len(m.Rows) == 0 && (m.State == feed.StateLoading || m.State == feed.StateInitialized) {
		return m.renderPlaceholders(height)
	}

	if len(m.Visible) == 0 {
		return m.renderOverlay(height)
	}

	per := m.cardsPerPage()
	var cards []string
	for i := m.ScrollOffset; i < len(m.Visible) && i < m.ScrollOffset+per; i++ {
		pos := m.Visible[i]
		cards = append(cards, m.renderCard(pos, m.Rows[pos], i == m.Cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// renderPlaceholders draws ghost cards while the first load is in flight
func (m Model) renderPlaceholders(height int) string {
	n := min(placeholderCards, max(height/cardHeight, 1))
	width := m.Width - 4
	bar := func(frac float64) string {
		return ghostStyle.Render(strings.Repeat("░", max(int(float64(width)*frac), 1)))
	}

	var cards []string
	for i := 0; i < n; i++ {
		inner := strings.Join([]string{bar(0.3), bar(0.8), bar(0.6), bar(0.4)}, "\n")
		cards = append(cards, cardStyle.Width(m.Width-2).Render(inner))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// renderOverlay is shown when there is nothing to list
func (m Model) renderOverlay(height int) string {
	var msg string
	switch {
	case m.Err != nil:
		msg = errorStyle.Render("Couldn't load polls") + "\n\n" +
			ansi.Truncate(m.Err.Error(), m.Width-10, "…") + "\n\n" +
			helpStyle.Render("press r to retry")
	case m.filter.Value() != "":
		msg = fmt.Sprintf("No polls match %q", m.filter.Value()) + "\n\n" +
			helpStyle.Render("esc to clear the filter")
	default:
		msg = titleStyle.Render("No polls yet") + "\n\n" +
			helpStyle.Render("press r to refresh")
	}
	return lipgloss.Place(m.Width, height, lipgloss.Center, lipgloss.Center, overlayStyle.Render(msg))
}

// renderCard renders one poll. Shares stay hidden until the poll has a vote.
func (m Model) renderCard(pos int, row feed.Row, selected bool) string {
	width := m.Width - 4

	meta := subtleStyle.Render(fmt.Sprintf("%d. %s · %s", pos+1, row.AuthorName, output.FormatTimeAgo(row.CreatedAt)))
	if row.HasCurrentUserVoted {
		meta += " " + votedStyle.Render("[voted]")
	}

	title := titleStyle.Render(ansi.Truncate(row.Title, width, "…"))

	var opts []string
	for i, o := range row.Options {
		s := keyStyle.Render(fmt.Sprintf("[%d]", i+1)) + " " + o.ID + " " + countStyle.Render(output.FormatCount(o.VotedCount))
		if row.HasCurrentUserVoted {
			s += " " + subtleStyle.Render(output.FormatRatio(row.Ratio(o.ID)))
		}
		opts = append(opts, s)
	}
	options := ansi.Truncate(strings.Join(opts, "   "), width, "…")

	footer := output.FormatVotes(row.TotalVoteCount)
	if row.LastVotedAt != nil {
		footer += " · last vote " + output.FormatTimeAgo(*row.LastVotedAt)
	}

	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	inner := strings.Join([]string{ansi.Truncate(meta, width, "…"), title, options, subtleStyle.Render(footer)}, "\n")
	return style.Width(m.Width - 2).Render(inner)
}

// renderFooter renders the footer with key bindings and the last action status
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  ↑↓:select  1-9:vote  r:refresh  n:more  /:filter  ?:help")
	if m.Status == "" {
		return keys
	}
	status := errorStyle.Render(ansi.Truncate(m.Status, max(m.Width-lipgloss.Width(keys)-2, 10), "…"))
	return keys + "  " + status
}

// renderHelp renders the key binding overlay
func (m Model) renderHelp() string {
	bindings := [][2]string{
		{"j / ↓", "next poll"},
		{"k / ↑", "previous poll"},
		{"g / G", "first / last poll"},
		{"1-9", "vote for option N"},
		{"a / b", "vote for the first / second option"},
		{"r", "refresh the feed"},
		{"n", "load more polls"},
		{"/", "filter by question"},
		{"esc", "clear the filter"},
		{"?", "toggle help"},
		{"q", "quit"},
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title+" keys"))
	sb.WriteString("\n\n")
	for _, b := range bindings {
		sb.WriteString(keyStyle.Render(fmt.Sprintf("%-8s", b[0])))
		sb.WriteString(" ")
		sb.WriteString(b[1])
		sb.WriteString("\n")
	}
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, overlayStyle.Render(strings.TrimRight(sb.String(), "\n")))
}
