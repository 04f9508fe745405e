package models

import (
	"errors"
	"testing"
	"time"
)

func samplePoll() Poll {
	last := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	return Poll{
		ID:        "post-1",
		CreatedAt: time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC),
		Content:   "Which one?",
		Options: []Option{
			{ID: "a", Image: Asset{Name: "option_a", Data: []byte("A")}, VotedCount: 3},
			{ID: "b", Image: Asset{Name: "option_b", Data: []byte("B")}, VotedCount: 1},
		},
		Author:     &User{ID: "u1", Username: "emirhan"},
		LastVoteAt: &last,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Poll)
		wantErr error
	}{
		{"valid", func(p *Poll) {}, nil},
		{"missing id", func(p *Poll) { p.ID = "" }, ErrMissingID},
		{"no options", func(p *Poll) { p.Options = nil }, ErrNoOptions},
		{"duplicate option", func(p *Poll) { p.Options[1].ID = "a" }, ErrDuplicateOption},
		{"empty option id", func(p *Poll) { p.Options[0].ID = "" }, ErrMissingID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePoll()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNegativeCount(t *testing.T) {
	p := samplePoll()
	p.Options[0].VotedCount = -1
	if err := p.Validate(); err == nil {
		t.Error("expected error for negative vote count")
	}
}

func TestTotalVotes(t *testing.T) {
	p := samplePoll()
	if got := p.TotalVotes(); got != 4 {
		t.Errorf("TotalVotes() = %d, want 4", got)
	}

	p.Options = []Option{{ID: "x"}}
	if got := p.TotalVotes(); got != 0 {
		t.Errorf("TotalVotes() = %d, want 0", got)
	}
}

func TestOptionIndex(t *testing.T) {
	p := samplePoll()
	if got := p.OptionIndex("b"); got != 1 {
		t.Errorf("OptionIndex(b) = %d, want 1", got)
	}
	if got := p.OptionIndex("zzz"); got != -1 {
		t.Errorf("OptionIndex(zzz) = %d, want -1", got)
	}
	if !p.HasOption("a") || p.HasOption("c") {
		t.Error("HasOption mismatch")
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := samplePoll()
	p.VotedBy = []VoteRecord{{ID: "v1", User: &User{ID: "u1"}, PollID: p.ID, SelectedOption: p.Options[0]}}

	c := p.Clone()
	c.Options[0].VotedCount = 99
	c.Author.Username = "changed"
	*c.LastVoteAt = time.Time{}
	c.VotedBy[0].User.ID = "u2"

	if p.Options[0].VotedCount != 3 {
		t.Error("clone shares options with original")
	}
	if p.Author.Username != "emirhan" {
		t.Error("clone shares author with original")
	}
	if p.LastVoteAt.IsZero() {
		t.Error("clone shares last vote time with original")
	}
	if p.VotedBy[0].User.ID != "u1" {
		t.Error("clone shares voter with original")
	}
}

func TestClonePreservesNil(t *testing.T) {
	if ClonePolls(nil) != nil {
		t.Error("ClonePolls(nil) should be nil")
	}
	p := Poll{ID: "x"}
	c := p.Clone()
	if c.Options != nil || c.VotedBy != nil || c.Author != nil || c.LastVoteAt != nil {
		t.Error("Clone should preserve nil fields")
	}
}
