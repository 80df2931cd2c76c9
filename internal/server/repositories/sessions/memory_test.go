package sessions

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/passshare/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	require.NoError(t, r.Create(ctx, &models.Session{Passkey: "AB12CD34", Owner: "alice"}))
	assert.ErrorIs(t, r.Create(ctx, &models.Session{Passkey: "AB12CD34", Owner: "bob"}), ErrDuplicatePasskey)

	s, err := r.Get(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Owner)
	assert.False(t, s.CreatedAt.IsZero())

	_, err = r.Get(ctx, "ZZZZ0000")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.AddMember(ctx, "AB12CD34", "bob"))
	require.NoError(t, r.AddMember(ctx, "AB12CD34", "bob"))
	assert.Equal(t, []string{"bob"}, r.Members("AB12CD34"))
	assert.ErrorIs(t, r.AddMember(ctx, "ZZZZ0000", "bob"), ErrNotFound)

	files, err := r.ListFiles(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)

	a := &models.File{Passkey: "AB12CD34", FileName: "a.txt", StorageKey: "k1"}
	b := &models.File{Passkey: "AB12CD34", FileName: "b.txt", StorageKey: "k2"}
	require.NoError(t, r.AddFile(ctx, a))
	require.NoError(t, r.AddFile(ctx, b))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.ErrorIs(t, r.AddFile(ctx, &models.File{Passkey: "ZZZZ0000"}), ErrNotFound)

	files, err = r.ListFiles(ctx, "AB12CD34")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].FileName)
	assert.Equal(t, "b.txt", files[1].FileName)

	got, err := r.GetFile(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "k2", got.StorageKey)

	_, err = r.GetFile(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	require.NoError(t, r.Create(ctx, &models.Session{Passkey: "AB12CD34"}))
	require.NoError(t, r.AddFile(ctx, &models.File{Passkey: "AB12CD34", FileName: "a.txt"}))

	files, err := r.ListFiles(ctx, "AB12CD34")
	require.NoError(t, err)
	files[0].FileName = "mutated"

	got, err := r.GetFile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)
}
