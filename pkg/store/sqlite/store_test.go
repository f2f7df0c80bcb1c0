package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bferrors "github.com/otherjamesbrown/backoffice/pkg/errors"
	"github.com/otherjamesbrown/backoffice/pkg/picker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, filepath.Join(t.TempDir(), "backoffice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ana, err := s.InsertUser(ctx, "Ana", "ana@x.io")
	require.NoError(t, err)
	_, err = s.InsertUser(ctx, "Ann", "ann@x.io")
	require.NoError(t, err)
	bob, err := s.InsertUser(ctx, "Bob", "bob@x.io")
	require.NoError(t, err)

	_, err = s.InsertPost(ctx, ana, "Lost cat", "Grey tabby")
	require.NoError(t, err)
	_, err = s.InsertPost(ctx, bob, "Found keys", "Near the park")
	require.NoError(t, err)
	return s
}

func TestOpen_MigratesIdempotently(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "bo.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, (Migrator{}).Up(ctx, s.DB()))

	for _, table := range []string{"users", "posts", "comments", "private_messages"} {
		var cnt int
		err := s.DB().QueryRowContext(ctx, `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&cnt)
		require.NoError(t, err)
		assert.Equal(t, 1, cnt, "table %s", table)
	}
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestPicker_AnaAnn(t *testing.T) {
	reg := picker.NewRegistry(openTestStore(t), nil)

	got, err := reg.Search(context.Background(), "AN", picker.EntityUser)
	require.NoError(t, err)
	assert.Equal(t, picker.OptionSet{
		{Key: 1, Label: "Ana - ana@x.io"},
		{Key: 2, Label: "Ann - ann@x.io"},
	}, got)
}

func TestPicker_PostsWithOwner(t *testing.T) {
	reg := picker.NewRegistry(openTestStore(t), nil)
	ctx := context.Background()

	got, err := reg.Search(ctx, "park", picker.EntityPost)
	require.NoError(t, err)
	assert.Equal(t, picker.OptionSet{{Key: 2, Label: "Found keys - Bob"}}, got)

	label, err := reg.ResolveLabel(ctx, picker.EntityPost, 2)
	require.NoError(t, err)
	assert.Equal(t, got[0].Label, label)
}

func TestPicker_SearchByKey(t *testing.T) {
	reg := picker.NewRegistry(openTestStore(t), nil)

	got, err := reg.Search(context.Background(), "3", picker.EntityUser)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, got.Keys())
}

func TestPicker_LimitAndEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		_, err := s.InsertUser(ctx, "user", fmt.Sprintf("u%d@x.io", i))
		require.NoError(t, err)
	}
	reg := picker.NewRegistry(s, nil)

	got, err := reg.Search(ctx, "", picker.EntityUser)
	require.NoError(t, err)
	require.Len(t, got, picker.MaxOptions)
	assert.Equal(t, int64(1), got[0].Key)
}

func TestPicker_ResolveMissing(t *testing.T) {
	reg := picker.NewRegistry(openTestStore(t), nil)

	_, err := reg.ResolveLabel(context.Background(), picker.EntityUser, 999)
	assert.ErrorIs(t, err, bferrors.ErrNotFound)
}

func TestSoftDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SoftDelete(ctx, picker.EntityUser, 1, time.Now()))

	recs, err := s.Find(ctx, picker.Query{
		Entity:     picker.EntityUser,
		Attributes: picker.Users.Attributes,
		Pattern:    "%an%",
		Fields:     picker.Users.LabelFields,
		Limit:      50,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0].Key)

	_, err = s.Get(ctx, picker.EntityUser, 1, picker.Users.LabelFields)
	assert.True(t, bferrors.IsNotFound(err))

	ok, err := s.Exists(ctx, picker.EntityUser, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Posts of a soft-deleted owner still render the owner's name.
	rec, err := s.Get(ctx, picker.EntityPost, 1, picker.Posts.LabelFields)
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.Fields["owner_name"])

	assert.True(t, bferrors.IsNotFound(s.SoftDelete(ctx, picker.EntityUser, 999, time.Now())))
}

func TestPrivateMessageCheckConstraint(t *testing.T) {
	s := openTestStore(t)
	_, err := s.DB().ExecContext(context.Background(),
		`INSERT INTO private_messages (sender_id, receiver_id, description) VALUES (1, 1, 'hi')`)
	assert.Error(t, err)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Find(context.Background(), picker.Query{Entity: picker.EntityUser, Fields: []string{"name"}})
	assert.True(t, bferrors.IsStoreUnavailable(err))
}
