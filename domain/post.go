package domain

import (
	"time"
)

type Post struct {
	ID         string
	AuthorID   string
	AuthorName string
	Body       string
	Attachment string
	CreatedAt  time.Time
}

func (p Post) HasAttachment() bool {
	return p.Attachment != ""
}
