package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tweetyard/domain"
)

type PostStore struct {
	DB *sql.DB
}

const postColumns = `p.id, p.author_id, u.username, p.body, p.attachment_ref, p.created_at`

// List returns every post, newest first. Posts sharing a timestamp are ordered by id, descending.
func (s *PostStore) List(ctx context.Context) ([]domain.Post, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *PostStore) Create(ctx context.Context, p *domain.Post) error {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO posts (id, author_id, body, attachment_ref, created_at) VALUES ($1, $2, $3, $4, $5)",
		p.ID, p.AuthorID, p.Body, nullable(p.Attachment), p.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetOwned looks a post up by id and author in one query, so a post owned by
// someone else is indistinguishable from a missing one.
func (s *PostStore) GetOwned(ctx context.Context, id, authorID string) (*domain.Post, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.author_id
		WHERE p.id = $1 AND p.author_id = $2`, id, authorID)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// Update writes body and attachment and re-asserts the author. It only
// touches a row that p.AuthorID already owns.
func (s *PostStore) Update(ctx context.Context, p *domain.Post) error {
	res, err := s.DB.ExecContext(ctx,
		"UPDATE posts SET body = $1, attachment_ref = $2, author_id = $3 WHERE id = $4 AND author_id = $5",
		p.Body, nullable(p.Attachment), p.AuthorID, p.ID, p.AuthorID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return expectOne(res)
}

func (s *PostStore) Delete(ctx context.Context, id, authorID string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM posts WHERE id = $1 AND author_id = $2", id, authorID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*domain.Post, error) {
	var (
		p          domain.Post
		attachment sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Body, &attachment, &createdAt); err != nil {
		return nil, err
	}
	p.Attachment = attachment.String
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
