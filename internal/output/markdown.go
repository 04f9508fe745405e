package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/marcus/pollexa/internal/feed"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// IsTerminal reports whether stdout is a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// PollMarkdown describes a row as a markdown document: the question as a
// heading, author and dates, then an option table. Shares are only listed
// once the poll has a vote.
func PollMarkdown(row feed.Row) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(row.Title))
	fmt.Fprintf(&sb, "*%s* · %s", escapeMarkdown(row.AuthorName), FormatCreated(row.CreatedAt))
	if row.LastVotedAt != nil {
		fmt.Fprintf(&sb, " · last vote %s", FormatTimeAgo(*row.LastVotedAt))
	}
	sb.WriteString("\n\n")

	if row.HasCurrentUserVoted {
		sb.WriteString("| Option | Votes | Share |\n|---|---:|---:|\n")
		for _, o := range row.Options {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", escapeMarkdown(o.ID), FormatCount(o.VotedCount), FormatRatio(row.Ratio(o.ID)))
		}
	} else {
		sb.WriteString("| Option | Votes |\n|---|---:|\n")
		for _, o := range row.Options {
			fmt.Fprintf(&sb, "| %s | %s |\n", escapeMarkdown(o.ID), FormatCount(o.VotedCount))
		}
	}

	fmt.Fprintf(&sb, "\n**%s** in total\n", FormatVotes(row.TotalVoteCount))
	return sb.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"|", `\|`,
	"#", `\#`,
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// RenderMarkdown renders markdown using Glamour with terminal-aware wrapping.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultMarkdownWidth))
}

// RenderMarkdownWithWidth renders markdown using Glamour with explicit wrapping.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(rendered, "\n"), nil
}
