package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetyard/config"
	"tweetyard/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(config.DB{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, users *UserStore, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Username: name, CreatedAt: time.Now().UTC()}
	require.NoError(t, users.Create(context.Background(), u, []byte("hash-"+name)))
	return u
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, Migrate(db, "sqlite"))
}

func TestMigrateUnknownDriver(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, Migrate(db, "oracle"))
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	users := &UserStore{DB: openTestDB(t)}
	alice := createUser(t, users, "alice")

	got, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := users.Exists(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &domain.User{ID: uuid.NewString(), Username: "Alice", CreatedAt: time.Now()}
	assert.ErrorIs(t, users.Create(ctx, dup, []byte("x")), domain.ErrDuplicate)

	u, hash, err := users.Credentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)
	assert.Equal(t, []byte("hash-alice"), hash)

	_, _, err = users.Credentials(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostStoreListOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := &UserStore{DB: db}
	posts := &PostStore{DB: db}
	alice := createUser(t, users, "alice")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{3 * time.Second, 1 * time.Second, 5 * time.Second, 2 * time.Second}
	for i, off := range offsets {
		p := &domain.Post{
			ID:        uuid.NewString(),
			AuthorID:  alice.ID,
			Body:      string(rune('a' + i)),
			CreatedAt: base.Add(off),
		}
		require.NoError(t, posts.Create(ctx, p))
	}

	list, err := posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(offsets))
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt), "posts must be newest first")
	}
	assert.Equal(t, "c", list[0].Body)
	assert.Equal(t, "alice", list[0].AuthorName)
	assert.True(t, base.Add(5*time.Second).Equal(list[0].CreatedAt))
}

func TestPostStoreListTieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := &UserStore{DB: db}
	posts := &PostStore{DB: db}
	alice := createUser(t, users, "alice")

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, posts.Create(ctx, &domain.Post{ID: id, AuthorID: alice.ID, Body: id, CreatedAt: at}))
	}

	list, err := posts.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestPostStoreListEmpty(t *testing.T) {
	list, err := (&PostStore{DB: openTestDB(t)}).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPostStoreOwnership(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	users := &UserStore{DB: db}
	posts := &PostStore{DB: db}
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	p := &domain.Post{ID: uuid.NewString(), AuthorID: alice.ID, Body: "hello", Attachment: "photos/x.png", CreatedAt: time.Now()}
	require.NoError(t, posts.Create(ctx, p))

	got, err := posts.GetOwned(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "photos/x.png", got.Attachment)

	_, err = posts.GetOwned(ctx, p.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = posts.GetOwned(ctx, "missing", alice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	forged := *got
	forged.AuthorID = bob.ID
	forged.Body = "stolen"
	assert.ErrorIs(t, posts.Update(ctx, &forged), domain.ErrNotFound)

	got.Body = "bye"
	got.Attachment = ""
	require.NoError(t, posts.Update(ctx, got))
	updated, err := posts.GetOwned(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "bye", updated.Body)
	assert.Empty(t, updated.Attachment)
	assert.True(t, got.CreatedAt.Equal(updated.CreatedAt))

	assert.ErrorIs(t, posts.Delete(ctx, p.ID, bob.ID), domain.ErrNotFound)
	require.NoError(t, posts.Delete(ctx, p.ID, alice.ID))
	assert.ErrorIs(t, posts.Delete(ctx, p.ID, alice.ID), domain.ErrNotFound)
}
