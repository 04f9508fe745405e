package feed

import (
	"time"

	"github.com/marcus/pollexa/internal/models"
)

// NoAuthorName is shown for polls without an author
const NoAuthorName = "-"

// Row is the render-ready projection of one poll. Rows are rebuilt from
// scratch on every change and never mutated afterwards.
type Row struct {
	ID                  string
	Title               string
	AuthorName          string
	Avatar              *models.Asset
	CreatedAt           time.Time
	LastVotedAt         *time.Time
	TotalVoteCount      int
	Options             []models.Option
	HasCurrentUserVoted bool
	CurrentUser         *models.User
	Voters              []models.VoteRecord
}

// Ratio returns the share of votes for optionID as a percentage (0-100).
// A poll without votes yields 0 for every option.
func (r Row) Ratio(optionID string) float64 {
	if r.TotalVoteCount == 0 {
		return 0
	}
	for _, o := range r.Options {
		if o.ID == optionID {
			return float64(o.VotedCount) / float64(r.TotalVoteCount) * 100
		}
	}
	return 0
}

// BuildRows projects polls into rows, one per poll, in poll order. It never
// mutates its inputs and shares nothing with them but the immutable asset
// bytes.
func BuildRows(polls []models.Poll, current *models.User) []Row {
	rows := make([]Row, 0, len(polls))
	for i := range polls {
		rows = append(rows, buildRow(&polls[i], current))
	}
	return rows
}

func buildRow(p *models.Poll, current *models.User) Row {
	row := Row{
		ID:                  p.ID,
		Title:               p.Content,
		AuthorName:          NoAuthorName,
		CreatedAt:           p.CreatedAt,
		TotalVoteCount:      p.TotalVotes(),
		Options:             models.CloneOptions(p.Options),
		HasCurrentUserVoted: hasCurrentUserVoted(p),
		CurrentUser:         current.Clone(),
		Voters:              models.CloneVoteRecords(p.VotedBy),
	}
	if p.Author != nil {
		row.AuthorName = p.Author.Username
		avatar := p.Author.Avatar
		row.Avatar = &avatar
	}
	if p.LastVoteAt != nil {
		t := *p.LastVoteAt
		row.LastVotedAt = &t
	}
	return row
}

// hasCurrentUserVoted is true when any vote record targets this poll with an
// option the poll still has. It does not check who cast the vote: every
// record counts, whichever user it belongs to. Keep it that way until the
// product decides otherwise; tests pin this behavior.
func hasCurrentUserVoted(p *models.Poll) bool {
	for _, v := range p.VotedBy {
		if v.PollID == p.ID && p.HasOption(v.SelectedOption.ID) {
			return true
		}
	}
	return false
}
