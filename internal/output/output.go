// Package output provides styled terminal output helpers (success, error,
// warning, poll formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	votedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

var printer = message.NewPrinter(language.English)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeSourceError  = "source_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatCount formats a vote count with thousands separators
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatVotes returns "1 vote" or "1,234 votes"
func FormatVotes(n int) string {
	if n == 1 {
		return "1 vote"
	}
	return FormatCount(n) + " votes"
}

// FormatRatio formats a 0-100 share as "37.5%"
func FormatRatio(pct float64) string {
	return printer.Sprintf("%.1f%%", pct)
}

// FormatOption formats one option line. The share is only shown once the
// poll has been voted on.
func FormatOption(row feed.Row, opt models.Option) string {
	parts := []string{
		titleStyle.Render(opt.ID),
		countStyle.Render(FormatVotes(opt.VotedCount)),
	}
	if row.HasCurrentUserVoted {
		parts = append(parts, subtleStyle.Render(FormatRatio(row.Ratio(opt.ID))))
	}
	return strings.Join(parts, "  ")
}

// FormatRowShort formats a row in one line, prefixed with its 1-based
// position
func FormatRowShort(position int, row feed.Row) string {
	var parts []string
	parts = append(parts, subtleStyle.Render(fmt.Sprintf("%2d.", position+1)))
	parts = append(parts, titleStyle.Render(row.ID))
	parts = append(parts, row.Title)
	parts = append(parts, subtleStyle.Render("by "+row.AuthorName))
	parts = append(parts, countStyle.Render(FormatVotes(row.TotalVoteCount)))
	if row.HasCurrentUserVoted {
		parts = append(parts, votedStyle.Render("[voted]"))
	}
	return strings.Join(parts, "  ")
}

// FormatRowLong formats a row with its options and vote history
func FormatRowLong(row feed.Row) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", row.ID, row.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Author: %s | Created: %s\n", row.AuthorName, FormatCreated(row.CreatedAt)))
	if row.LastVotedAt != nil {
		sb.WriteString(fmt.Sprintf("Last vote: %s\n", FormatTimeAgo(*row.LastVotedAt)))
	}
	sb.WriteString(fmt.Sprintf("Total: %s\n", FormatVotes(row.TotalVoteCount)))

	sb.WriteString(SectionHeader("Options"))
	for _, opt := range row.Options {
		sb.WriteString("  " + FormatOption(row, opt) + "\n")
	}

	if len(row.Voters) > 0 {
		sb.WriteString(SectionHeader("Votes"))
		for _, v := range row.Voters {
			sb.WriteString(fmt.Sprintf("  [%s] %s -> %s\n", v.CastAt.Format("15:04"), VoterName(v), v.SelectedOption.ID))
		}
	}

	return sb.String()
}

// VoterName returns the username on a vote record, or "anonymous"
func VoterName(v models.VoteRecord) string {
	if v.User == nil || v.User.Username == "" {
		return "anonymous"
	}
	return v.User.Username
}

// FormatCreated formats a creation date with a relative hint,
// e.g. "2024-05-13 (3 weeks ago)"
func FormatCreated(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02"), humanize.Time(t))
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nOPTIONS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// RowJSON is the stable JSON shape of a row for --json output
type RowJSON struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Author         string       `json:"author"`
	CreatedAt      time.Time    `json:"created_at"`
	LastVotedAt    *time.Time   `json:"last_voted_at,omitempty"`
	TotalVoteCount int          `json:"total_vote_count"`
	Voted          bool         `json:"has_current_user_voted"`
	Options        []OptionJSON `json:"options"`
}

// OptionJSON is one option inside RowJSON
type OptionJSON struct {
	ID    string  `json:"id"`
	Image string  `json:"image"`
	Votes int     `json:"votes"`
	Ratio float64 `json:"ratio"`
}

// ToJSON converts rows to their JSON shape
func ToJSON(rows []feed.Row) []RowJSON {
	out := make([]RowJSON, 0, len(rows))
	for _, r := range rows {
		rj := RowJSON{
			ID:             r.ID,
			Title:          r.Title,
			Author:         r.AuthorName,
			CreatedAt:      r.CreatedAt,
			LastVotedAt:    r.LastVotedAt,
			TotalVoteCount: r.TotalVoteCount,
			Voted:          r.HasCurrentUserVoted,
			Options:        make([]OptionJSON, 0, len(r.Options)),
		}
		for _, o := range r.Options {
			rj.Options = append(rj.Options, OptionJSON{
				ID:    o.ID,
				Image: o.Image.Name,
				Votes: o.VotedCount,
				Ratio: r.Ratio(o.ID),
			})
		}
		out = append(out, rj)
	}
	return out
}
