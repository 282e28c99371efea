// Package service holds the post and account operations. Every operation
// that acts on behalf of someone takes that user explicitly.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/casdoor/oss"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tweetyard/domain"
	"tweetyard/form"
)

type PostRepository interface {
	List(ctx context.Context) ([]domain.Post, error)
	Create(ctx context.Context, p *domain.Post) error
	GetOwned(ctx context.Context, id, authorID string) (*domain.Post, error)
	Update(ctx context.Context, p *domain.Post) error
	Delete(ctx context.Context, id, authorID string) error
}

type Posts struct {
	repo      PostRepository
	files     oss.StorageInterface
	validator *form.Validator
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewPosts(repo PostRepository, files oss.StorageInterface, v *form.Validator, log logrus.FieldLogger) *Posts {
	return &Posts{
		repo:      repo,
		files:     files,
		validator: v,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every post, newest first.
func (s *Posts) List(ctx context.Context) ([]domain.Post, error) {
	return s.repo.List(ctx)
}

// Create validates in and stores a new post authored by author. The
// attachment is written to the file store before the row that references it.
func (s *Posts) Create(ctx context.Context, author domain.User, in form.PostInput) (*domain.Post, error) {
	if err := s.validator.Post(&in); err != nil {
		return nil, err
	}

	p := &domain.Post{
		ID:         uuid.Must(uuid.NewV7()).String(),
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Body:       in.Body,
		CreatedAt:  s.now(),
	}
	if in.Upload != nil {
		key, err := s.store(in.Upload)
		if err != nil {
			return nil, err
		}
		p.Attachment = key
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if p.Attachment != "" {
			s.discard(p.Attachment)
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"post": p.ID, "author": author.ID}).Info("post created")
	return p, nil
}

// GetOwned returns the post only when owner wrote it; otherwise domain.ErrNotFound.
func (s *Posts) GetOwned(ctx context.Context, owner domain.User, id string) (*domain.Post, error) {
	return s.repo.GetOwned(ctx, id, owner.ID)
}

// Update replaces body and attachment of a post owned by owner. A new upload
// replaces the old attachment, ClearAttachment drops it, otherwise it is kept.
func (s *Posts) Update(ctx context.Context, owner domain.User, id string, in form.PostInput) (*domain.Post, error) {
	p, err := s.repo.GetOwned(ctx, id, owner.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Post(&in); err != nil {
		return nil, err
	}

	old := p.Attachment
	p.Body = in.Body
	p.AuthorID = owner.ID
	p.AuthorName = owner.Username
	switch {
	case in.Upload != nil:
		key, err := s.store(in.Upload)
		if err != nil {
			return nil, err
		}
		p.Attachment = key
	case in.ClearAttachment:
		p.Attachment = ""
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if in.Upload != nil {
			s.discard(p.Attachment)
		}
		return nil, err
	}
	if old != "" && old != p.Attachment {
		s.discard(old)
	}

	s.log.WithFields(logrus.Fields{"post": p.ID, "author": owner.ID}).Info("post updated")
	return p, nil
}

// Delete removes a post owned by owner, then its attachment.
func (s *Posts) Delete(ctx context.Context, owner domain.User, id string) error {
	p, err := s.repo.GetOwned(ctx, id, owner.ID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID, owner.ID); err != nil {
		return err
	}
	if p.Attachment != "" {
		s.discard(p.Attachment)
	}

	s.log.WithFields(logrus.Fields{"post": p.ID, "author": owner.ID}).Info("post deleted")
	return nil
}

// AttachmentURL resolves a stored attachment key to a link for templates.
func (s *Posts) AttachmentURL(key string) string {
	if key == "" {
		return ""
	}
	url, err := s.files.GetURL(key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("attachment url")
		return ""
	}
	return url
}

func (s *Posts) store(u *form.Upload) (string, error) {
	key := "photos/" + uuid.NewString() + u.Extension
	if _, err := s.files.Put(key, u.Content); err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	return key, nil
}

func (s *Posts) discard(key string) {
	if err := s.files.Delete(key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("attachment cleanup failed")
	}
}
