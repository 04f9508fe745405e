package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marcus/pollexa/internal/assets"
	"github.com/marcus/pollexa/internal/models"
)

// Wire records. Image fields are asset names, not URLs.

type wirePost struct {
	ID         *string      `json:"id"`
	CreatedAt  *time.Time   `json:"created_at"`
	Content    *string      `json:"content"`
	Options    []wireOption `json:"options"`
	User       *wireUser    `json:"user"`
	LastVoteAt *time.Time   `json:"last_vote_at"`
}

type wireOption struct {
	ID        *string `json:"id"`
	ImageName *string `json:"image_name"`
	Voted     *int    `json:"voted"`
}

type wireUser struct {
	ID        *string `json:"id"`
	Username  *string `json:"username"`
	ImageName *string `json:"image_name"`
}

// Decode parses a JSON array of post records and resolves every image name
// against catalog. The batch fails as a whole on the first bad record.
func Decode(data []byte, catalog assets.Catalog) ([]models.Poll, error) {
	if catalog == nil {
		return nil, errors.New("no asset catalog")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var records []wirePost
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	if records == nil {
		return nil, errors.New("expected a JSON array of posts")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the posts array")
	}

	polls := make([]models.Poll, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		p, err := decodePost(rec, catalog)
		if err != nil {
			return nil, fmt.Errorf("post[%d]: %w", i, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("post[%d]: duplicate post id %q", i, p.ID)
		}
		seen[p.ID] = true
		polls = append(polls, p)
	}
	return polls, nil
}

func decodePost(rec wirePost, catalog assets.Catalog) (models.Poll, error) {
	switch {
	case rec.ID == nil:
		return models.Poll{}, missingKey("id")
	case rec.CreatedAt == nil:
		return models.Poll{}, missingKey("created_at")
	case rec.Content == nil:
		return models.Poll{}, missingKey("content")
	case rec.Options == nil:
		return models.Poll{}, missingKey("options")
	}

	p := models.Poll{
		ID:         *rec.ID,
		CreatedAt:  *rec.CreatedAt,
		Content:    *rec.Content,
		LastVoteAt: rec.LastVoteAt,
		Options:    make([]models.Option, 0, len(rec.Options)),
	}

	for i, o := range rec.Options {
		switch {
		case o.ID == nil:
			return models.Poll{}, fmt.Errorf("options[%d]: %w", i, missingKey("id"))
		case o.ImageName == nil:
			return models.Poll{}, fmt.Errorf("options[%d]: %w", i, missingKey("image_name"))
		case o.Voted == nil:
			return models.Poll{}, fmt.Errorf("options[%d]: %w", i, missingKey("voted"))
		}
		opt, err := ResolveOption(catalog, *o.ID, *o.ImageName, *o.Voted)
		if err != nil {
			return models.Poll{}, fmt.Errorf("options[%d]: %w", i, err)
		}
		p.Options = append(p.Options, opt)
	}

	if rec.User != nil {
		u := rec.User
		switch {
		case u.ID == nil:
			return models.Poll{}, fmt.Errorf("user: %w", missingKey("id"))
		case u.Username == nil:
			return models.Poll{}, fmt.Errorf("user: %w", missingKey("username"))
		case u.ImageName == nil:
			return models.Poll{}, fmt.Errorf("user: %w", missingKey("image_name"))
		}
		author, err := ResolveUser(catalog, *u.ID, *u.Username, *u.ImageName)
		if err != nil {
			return models.Poll{}, fmt.Errorf("user: %w", err)
		}
		p.Author = author
	}

	if err := p.Validate(); err != nil {
		return models.Poll{}, err
	}
	return p, nil
}

// ResolveOption builds an option, failing if its image is not in the catalog
func ResolveOption(catalog assets.Catalog, id, imageName string, voted int) (models.Option, error) {
	img, err := catalog.Lookup(imageName)
	if err != nil {
		return models.Option{}, fmt.Errorf("image_name: %w", err)
	}
	return models.Option{ID: id, Image: img, VotedCount: voted}, nil
}

// ResolveUser builds a user, failing if its avatar is not in the catalog
func ResolveUser(catalog assets.Catalog, id, username, imageName string) (*models.User, error) {
	img, err := catalog.Lookup(imageName)
	if err != nil {
		return nil, fmt.Errorf("image_name: %w", err)
	}
	return &models.User{ID: id, Username: username, Avatar: img}, nil
}

func missingKey(key string) error {
	return fmt.Errorf("missing key %q", key)
}
