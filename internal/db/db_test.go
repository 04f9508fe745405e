package db

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/pollexa/internal/assets"
	"github.com/marcus/pollexa/internal/feed"
	"github.com/marcus/pollexa/internal/models"
	"github.com/marcus/pollexa/internal/repository"
)

var testCatalog = assets.MapCatalog{
	"avatar_1": []byte("avatar"),
	"opt_a":    []byte("a"),
	"opt_b":    []byte("b"),
}

func testPolls() []models.Poll {
	last := time.Date(2024, 5, 13, 10, 42, 0, 0, time.UTC)
	return []models.Poll{
		{
			ID:        "2",
			CreatedAt: time.Date(2024, 5, 13, 9, 10, 0, 0, time.UTC),
			Content:   "second by id, first in feed",
			Options: []models.Option{
				{ID: "A", Image: models.Asset{Name: "opt_a"}, VotedCount: 3},
				{ID: "B", Image: models.Asset{Name: "opt_b"}, VotedCount: 1},
			},
			Author:     &models.User{ID: "u1", Username: "emirhan", Avatar: models.Asset{Name: "avatar_1"}},
			LastVoteAt: &last,
		},
		{
			ID:        "1",
			CreatedAt: time.Date(2024, 5, 12, 9, 10, 0, 0, time.UTC),
			Content:   "no author",
			Options: []models.Option{
				{ID: "B", Image: models.Asset{Name: "opt_b"}},
				{ID: "A", Image: models.Asset{Name: "opt_a"}, VotedCount: 7},
			},
		},
	}
}

func seed(t *testing.T, polls []models.Poll) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".pollexa", "pollexa.db")

	database, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	if err := database.ImportPolls(context.Background(), polls); err != nil {
		t.Fatalf("ImportPolls failed: %v", err)
	}
	return path
}

func TestInitialize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pollexa.db")
	database, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Database file not created")
	}

	v, err := database.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error opening missing database")
	}
}

func TestImportAndFetch(t *testing.T) {
	path := seed(t, testPolls())

	polls, err := NewSource(path, testCatalog).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(polls) != 2 {
		t.Fatalf("expected 2 polls, got %d", len(polls))
	}

	// Feed order is preserved, not id order
	if polls[0].ID != "2" || polls[1].ID != "1" {
		t.Errorf("order = [%s %s], want [2 1]", polls[0].ID, polls[1].ID)
	}

	first := polls[0]
	if first.Author == nil || first.Author.Username != "emirhan" || string(first.Author.Avatar.Data) != "avatar" {
		t.Errorf("author not restored: %+v", first.Author)
	}
	if first.LastVoteAt == nil || !first.LastVoteAt.Equal(time.Date(2024, 5, 13, 10, 42, 0, 0, time.UTC)) {
		t.Errorf("LastVoteAt = %v", first.LastVoteAt)
	}
	if !first.CreatedAt.Equal(time.Date(2024, 5, 13, 9, 10, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", first.CreatedAt)
	}

	second := polls[1]
	if second.Author != nil {
		t.Errorf("expected nil author, got %+v", second.Author)
	}
	if second.Options[0].ID != "B" || second.Options[1].VotedCount != 7 {
		t.Errorf("options not restored in order: %+v", second.Options)
	}
	if string(second.Options[1].Image.Data) != "a" {
		t.Errorf("option image not resolved: %q", second.Options[1].Image.Data)
	}
}

func TestImportKeepsTimeOffsets(t *testing.T) {
	istanbul := time.FixedZone("+03", 3*60*60)
	polls := testPolls()
	polls[0].CreatedAt = time.Date(2024, 5, 13, 12, 10, 0, 0, istanbul)
	last := time.Date(2024, 5, 13, 13, 42, 0, 0, istanbul)
	polls[0].LastVoteAt = &last
	path := seed(t, polls)

	got, err := NewSource(path, testCatalog).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	for name, ts := range map[string]time.Time{
		"CreatedAt":  got[0].CreatedAt,
		"LastVoteAt": *got[0].LastVoteAt,
	} {
		if _, offset := ts.Zone(); offset != 3*60*60 {
			t.Errorf("%s offset = %ds, want +03:00", name, offset)
		}
	}
	if got[0].CreatedAt.Hour() != 12 || !got[0].CreatedAt.Equal(polls[0].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, polls[0].CreatedAt)
	}
	if got[0].LastVoteAt.Hour() != 13 {
		t.Errorf("LastVoteAt = %v, want %v", got[0].LastVoteAt, last)
	}
	// UTC values still round-trip as UTC
	if got[1].CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", got[1].CreatedAt.Location())
	}
}

func TestImportReplacesFeed(t *testing.T) {
	path := seed(t, testPolls())

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	if err := database.ImportPolls(context.Background(), testPolls()[:1]); err != nil {
		t.Fatalf("ImportPolls failed: %v", err)
	}

	n, err := database.CountPolls(context.Background())
	if err != nil {
		t.Fatalf("CountPolls failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 poll after re-import, got %d", n)
	}
}

func TestImportRejectsInvalidPoll(t *testing.T) {
	path := seed(t, testPolls())

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	bad := testPolls()
	bad[1].Options = nil
	if err := database.ImportPolls(context.Background(), bad); !errors.Is(err, models.ErrNoOptions) {
		t.Fatalf("err = %v, want ErrNoOptions", err)
	}

	// Rolled back: the earlier feed is intact
	n, _ := database.CountPolls(context.Background())
	if n != 2 {
		t.Errorf("expected rollback to keep 2 polls, got %d", n)
	}
}

func TestSourceErrors(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		src := NewSource(filepath.Join(t.TempDir(), "missing.db"), testCatalog)
		_, err := src.FetchAll(context.Background())
		if !errors.Is(err, repository.ErrSourceNotFound) {
			t.Errorf("err = %v, want ErrSourceNotFound", err)
		}
	})

	t.Run("unresolvable asset", func(t *testing.T) {
		path := seed(t, testPolls())
		src := NewSource(path, assets.MapCatalog{"opt_a": []byte("a")})
		_, err := src.FetchAll(context.Background())
		if !errors.Is(err, repository.ErrDecodeFailure) {
			t.Errorf("err = %v, want ErrDecodeFailure", err)
		}
		if !errors.Is(err, assets.ErrNotFound) {
			t.Errorf("err = %v should wrap assets.ErrNotFound", err)
		}
	})

	t.Run("not a database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.db")
		if err := os.WriteFile(path, []byte("definitely not sqlite"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := NewSource(path, testCatalog).FetchAll(context.Background())
		if !errors.Is(err, repository.ErrReadFailure) {
			t.Errorf("err = %v, want ErrReadFailure", err)
		}
	})
}

func TestSourcePages(t *testing.T) {
	path := seed(t, testPolls())
	ctx := context.Background()

	src := NewSource(path, testCatalog).WithPageSize(1)
	var _ repository.Pager = src

	first, err := src.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(first) != 1 || first[0].ID != "2" {
		t.Fatalf("first page = %v, want [2]", pollIDs(first))
	}
	if len(first[0].Options) != 2 {
		t.Errorf("first page options = %d, want 2", len(first[0].Options))
	}

	second, err := src.FetchPage(ctx, 2)
	if err != nil {
		t.Fatalf("FetchPage(2) failed: %v", err)
	}
	if len(second) != 1 || second[0].ID != "1" || second[0].Options[1].VotedCount != 7 {
		t.Errorf("second page = %+v", second)
	}

	third, err := src.FetchPage(ctx, 3)
	if err != nil {
		t.Fatalf("FetchPage(3) failed: %v", err)
	}
	if len(third) != 0 {
		t.Errorf("third page = %v, want empty", pollIDs(third))
	}
}

func TestSourceUnpagedServesOnePage(t *testing.T) {
	path := seed(t, testPolls())
	src := NewSource(path, testCatalog)

	more, err := src.FetchPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(more) != 0 {
		t.Errorf("unpaged page 2 = %v, want empty", pollIDs(more))
	}
}

func pollIDs(polls []models.Poll) []string {
	ids := make([]string, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
	}
	return ids
}

func TestPagedSourceDrivesEngine(t *testing.T) {
	path := seed(t, testPolls())
	ctx := context.Background()

	e := feed.New(NewSource(path, testCatalog).WithPageSize(1), feed.WithLogger(slog.New(slog.DiscardHandler)))
	defer e.Close()
	<-e.Ready()

	snap, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Rows) != 1 {
		t.Fatalf("first load rows = %d, want 1", len(snap.Rows))
	}

	if err := e.LoadNextPage(ctx); err != nil {
		t.Fatalf("LoadNextPage failed: %v", err)
	}
	snap, err = e.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Rows) != 2 || snap.Rows[1].ID != "1" || snap.State != feed.StatePosts {
		t.Errorf("after next page: state %s, %d rows", snap.State, len(snap.Rows))
	}
	if snap.Rows[1].AuthorName != "-" {
		t.Errorf("AuthorName = %q, want -", snap.Rows[1].AuthorName)
	}
}
