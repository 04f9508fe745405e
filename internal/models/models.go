// Package models defines the poll feed domain: polls, their options, authors,
// vote records and the image assets they reference.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Asset is an image resolved from the asset catalog at decode time.
// Assets are immutable once loaded.
type Asset struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// IsZero reports whether the asset was never resolved
func (a Asset) IsZero() bool {
	return a.Name == "" && len(a.Data) == 0
}

// User represents a poll author or voter
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   Asset  `json:"avatar"`
}

// Option is one selectable choice on a poll with its running tally
type Option struct {
	ID         string `json:"id"`
	Image      Asset  `json:"image"`
	VotedCount int    `json:"voted_count"`
}

// VoteRecord links a user, a poll and the option they selected.
// SelectedOption is a copy of the option as it was right after the vote.
type VoteRecord struct {
	ID             string    `json:"id"`
	User           *User     `json:"user,omitempty"`
	PollID         string    `json:"poll_id,omitempty"`
	SelectedOption Option    `json:"selected_option"`
	CastAt         time.Time `json:"cast_at"`
}

// Poll is a feed post with voteable options
type Poll struct {
	ID         string       `json:"id"`
	CreatedAt  time.Time    `json:"created_at"`
	Content    string       `json:"content"`
	Options    []Option     `json:"options"`
	Author     *User        `json:"author,omitempty"`
	LastVoteAt *time.Time   `json:"last_vote_at,omitempty"`
	VotedBy    []VoteRecord `json:"voted_by,omitempty"`
}

var (
	ErrNoOptions       = errors.New("poll has no options")
	ErrDuplicateOption = errors.New("duplicate option id")
	ErrMissingID       = errors.New("missing id")
)

// Validate checks the structural invariants of a poll
func (p *Poll) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("poll: %w", ErrMissingID)
	}
	if len(p.Options) == 0 {
		return fmt.Errorf("poll %s: %w", p.ID, ErrNoOptions)
	}
	seen := make(map[string]bool, len(p.Options))
	for _, opt := range p.Options {
		if opt.ID == "" {
			return fmt.Errorf("poll %s option: %w", p.ID, ErrMissingID)
		}
		if seen[opt.ID] {
			return fmt.Errorf("poll %s option %s: %w", p.ID, opt.ID, ErrDuplicateOption)
		}
		if opt.VotedCount < 0 {
			return fmt.Errorf("poll %s option %s: negative vote count %d", p.ID, opt.ID, opt.VotedCount)
		}
		seen[opt.ID] = true
	}
	return nil
}

// TotalVotes returns the sum of every option's tally
func (p *Poll) TotalVotes() int {
	total := 0
	for _, opt := range p.Options {
		total += opt.VotedCount
	}
	return total
}

// OptionIndex returns the position of the option with the given id, or -1
func (p *Poll) OptionIndex(optionID string) int {
	for i, opt := range p.Options {
		if opt.ID == optionID {
			return i
		}
	}
	return -1
}

// HasOption reports whether the poll carries an option with the given id
func (p *Poll) HasOption(optionID string) bool {
	return p.OptionIndex(optionID) >= 0
}

// Clone returns a deep copy that shares only the immutable asset bytes
func (p Poll) Clone() Poll {
	out := p
	out.Options = CloneOptions(p.Options)
	out.Author = p.Author.Clone()
	if p.LastVoteAt != nil {
		t := *p.LastVoteAt
		out.LastVoteAt = &t
	}
	out.VotedBy = CloneVoteRecords(p.VotedBy)
	return out
}

// Clone returns a copy of the user, or nil for a nil receiver
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// CloneOptions copies an option slice, preserving nil
func CloneOptions(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}

// CloneVoteRecords copies a vote record slice, preserving nil
func CloneVoteRecords(records []VoteRecord) []VoteRecord {
	if records == nil {
		return nil
	}
	out := make([]VoteRecord, len(records))
	for i, r := range records {
		out[i] = r
		out[i].User = r.User.Clone()
	}
	return out
}

// ClonePolls deep-copies a poll list
func ClonePolls(polls []Poll) []Poll {
	if polls == nil {
		return nil
	}
	out := make([]Poll, len(polls))
	for i, p := range polls {
		out[i] = p.Clone()
	}
	return out
}
