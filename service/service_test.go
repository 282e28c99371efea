package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tweetyard/config"
	"tweetyard/domain"
	"tweetyard/form"
	"tweetyard/storage"
	"tweetyard/store"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fixture struct {
	posts    *Posts
	accounts *Accounts
	files    *storage.LocalFileSystem
	repo     *store.PostStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(config.DB{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewFileSystem(t.TempDir(), storage.MediaPrefix)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	v := form.NewValidator(config.Limits{
		MaxPostLength:     240,
		MaxUploadBytes:    1 << 20,
		AllowedMediaTypes: []string{"image/png"},
	})
	repo := &store.PostStore{DB: db}
	return &fixture{
		posts:    NewPosts(repo, files, v, log),
		accounts: NewAccounts(&store.UserStore{DB: db}, v, bcrypt.MinCost, log),
		files:    files,
		repo:     repo,
	}
}

func (f *fixture) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := f.accounts.Register(context.Background(), form.Registration{
		Username: name, Password1: "correct-horse", Password2: "correct-horse",
	})
	require.NoError(t, err)
	return *u
}

func png() *form.Upload {
	return &form.Upload{Filename: "a.png", Size: int64(len(pngHeader)), Content: bytes.NewReader(pngHeader)}
}

func (f *fixture) stored(t *testing.T) int {
	t.Helper()
	objs, err := f.files.List("")
	require.NoError(t, err)
	return len(objs)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.posts.now = func() time.Time { return clock }
	for _, body := range []string{"one", "two", "three"} {
		_, err := f.posts.Create(ctx, alice, form.PostInput{Body: body})
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}
	// "four" shares the timestamp of "three"; the later id wins the tie
	clock = clock.Add(-time.Minute)
	_, err := f.posts.Create(ctx, alice, form.PostInput{Body: "four"})
	require.NoError(t, err)

	list, err := f.posts.List(ctx)
	require.NoError(t, err)
	var bodies []string
	for _, p := range list {
		bodies = append(bodies, p.Body)
	}
	assert.Equal(t, []string{"four", "three", "two", "one"}, bodies)
}

func TestCreateValidationStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	for _, body := range []string{"", "   ", string(make([]rune, 241))} {
		_, err := f.posts.Create(ctx, alice, form.PostInput{Body: body, Upload: png()})
		var verr *form.ValidationError
		require.ErrorAs(t, err, &verr)
	}

	list, err := f.posts.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.stored(t))
}

func TestCreateWithAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	p, err := f.posts.Create(ctx, alice, form.PostInput{Body: "pic", Upload: png()})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, p.AuthorID)
	assert.Regexp(t, `^photos/.+\.png$`, p.Attachment)
	assert.Equal(t, "/media/"+p.Attachment, f.posts.AttachmentURL(p.Attachment))
	assert.Equal(t, 1, f.stored(t))
}

func TestOwnershipScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	p, err := f.posts.Create(ctx, alice, form.PostInput{Body: "hello"})
	require.NoError(t, err)

	list, err := f.posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	_, err = f.posts.GetOwned(ctx, bob, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.posts.Update(ctx, bob, p.ID, form.PostInput{Body: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.posts.Delete(ctx, bob, p.ID), domain.ErrNotFound)

	unchanged, err := f.posts.GetOwned(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", unchanged.Body)

	updated, err := f.posts.Update(ctx, alice, p.ID, form.PostInput{Body: "bye"})
	require.NoError(t, err)
	assert.Equal(t, "bye", updated.Body)

	reloaded, err := f.posts.GetOwned(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "bye", reloaded.Body)
	assert.Equal(t, alice.ID, reloaded.AuthorID)
	assert.Equal(t, p.ID, reloaded.ID)
	assert.True(t, p.CreatedAt.Equal(reloaded.CreatedAt))
}

func TestUpdateMissingPostBeforeValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.posts.Update(context.Background(), alice, "nope", form.PostInput{Body: ""})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateAttachmentLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	p, err := f.posts.Create(ctx, alice, form.PostInput{Body: "pic", Upload: png()})
	require.NoError(t, err)
	first := p.Attachment

	kept, err := f.posts.Update(ctx, alice, p.ID, form.PostInput{Body: "still pic"})
	require.NoError(t, err)
	assert.Equal(t, first, kept.Attachment)

	replaced, err := f.posts.Update(ctx, alice, p.ID, form.PostInput{Body: "new pic", Upload: png()})
	require.NoError(t, err)
	assert.NotEqual(t, first, replaced.Attachment)
	assert.Equal(t, 1, f.stored(t))
	_, err = f.files.Get(first)
	assert.Error(t, err)

	cleared, err := f.posts.Update(ctx, alice, p.ID, form.PostInput{Body: "no pic", ClearAttachment: true})
	require.NoError(t, err)
	assert.Empty(t, cleared.Attachment)
	assert.Zero(t, f.stored(t))
}

func TestUpdateValidationLeavesPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	p, err := f.posts.Create(ctx, alice, form.PostInput{Body: "hello"})
	require.NoError(t, err)

	_, err = f.posts.Update(ctx, alice, p.ID, form.PostInput{Body: " "})
	var verr *form.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := f.posts.GetOwned(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body)
}

func TestDeleteRemovesAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	p, err := f.posts.Create(ctx, alice, form.PostInput{Body: "pic", Upload: png()})
	require.NoError(t, err)

	require.NoError(t, f.posts.Delete(ctx, alice, p.ID))
	_, err = f.posts.GetOwned(ctx, alice, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.stored(t))
}

type failingRepo struct {
	PostRepository
}

func (failingRepo) Create(context.Context, *domain.Post) error {
	return errors.New("disk full")
}

func TestCreateDiscardsAttachmentWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.posts.repo = failingRepo{PostRepository: f.repo}

	_, err := f.posts.Create(context.Background(), alice, form.PostInput{Body: "pic", Upload: png()})
	assert.EqualError(t, err, "disk full")
	assert.Zero(t, f.stored(t))
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.accounts.Register(ctx, form.Registration{Username: "ALICE", Password1: "correct-horse", Password2: "correct-horse"})
	var verr *form.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "A user with that username already exists.", verr.Fields["username"])

	u, err := f.accounts.Authenticate(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = f.accounts.Authenticate(ctx, "alice", "wrong-horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.accounts.Authenticate(ctx, "carol", "correct-horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	got, err := f.accounts.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")

	u, err := f.accounts.Login(ctx, form.Login{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = f.accounts.Login(ctx, form.Login{Username: "alice", Password: "nope"})
	var verr *form.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields[form.NonField], "correct username and password")

	_, err = f.accounts.Login(ctx, form.Login{Username: "alice"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")
}
