package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func testMeta(name, id string) *models.FileMetadata {
	return &models.FileMetadata{
		FileID:       id,
		OriginalName: name,
		Size:         10,
		ChunkSize:    256 << 20,
		TotalChunks:  1,
		SHA256:       "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Chunks: []models.Chunk{
			{Index: 0, BotID: "bot-a", BlobID: "blob-1", MsgID: 1, Size: 10},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestFileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := testMeta("docs/a.txt", "id-1")
	require.NoError(t, s.SaveFile(ctx, meta))

	byName, err := s.FileByName(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, meta.FileID, byName.FileID)
	assert.Equal(t, meta.Chunks, byName.Chunks)
	assert.Equal(t, meta.SHA256, byName.SHA256)

	byID, err := s.FileByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", byID.OriginalName)
}

func TestSaveRejectsDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testMeta("a.txt", "id-1")))
	require.ErrorIs(t, s.SaveFile(ctx, testMeta("a.txt", "id-2")), store.ErrFileExists)
}

func TestLookupMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.FileByName(ctx, "nope")
	require.ErrorIs(t, err, store.ErrFileNotFound)
	_, err = s.FileByID(ctx, "nope")
	require.ErrorIs(t, err, store.ErrFileNotFound)
}

func TestListFilesByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testMeta("docs/b.txt", "id-1")))
	require.NoError(t, s.SaveFile(ctx, testMeta("docs/a.txt", "id-2")))
	require.NoError(t, s.SaveFile(ctx, testMeta("media/c.bin", "id-3")))

	all, err := s.ListFiles(ctx, store.AllFiles)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "docs/a.txt", all[0].OriginalName)
	assert.Equal(t, "docs/b.txt", all[1].OriginalName)
	assert.Equal(t, "media/c.bin", all[2].OriginalName)

	docs, err := s.ListFiles(ctx, "docs/")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testMeta("old.txt", "id-1")))
	require.NoError(t, s.RenameFile(ctx, "old.txt", "new.txt"))

	_, err := s.FileByName(ctx, "old.txt")
	require.ErrorIs(t, err, store.ErrFileNotFound)

	byID, err := s.FileByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", byID.OriginalName)

	require.NoError(t, s.SaveFile(ctx, testMeta("other.txt", "id-2")))
	require.ErrorIs(t, s.RenameFile(ctx, "new.txt", "other.txt"), store.ErrFileExists)
	require.ErrorIs(t, s.RenameFile(ctx, "ghost", "x"), store.ErrFileNotFound)
}

func TestDeleteFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, testMeta("a.txt", "id-1")))
	require.NoError(t, s.DeleteFile(ctx, "a.txt"))

	_, err := s.FileByName(ctx, "a.txt")
	require.ErrorIs(t, err, store.ErrFileNotFound)
	_, err = s.FileByID(ctx, "id-1")
	require.ErrorIs(t, err, store.ErrFileNotFound)

	require.ErrorIs(t, s.DeleteFile(ctx, "a.txt"), store.ErrFileNotFound)
}

func TestBotTokenSurvivesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-a", Token: "111:secret", Active: true}))

	active, err := s.ActiveBots(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "111:secret", active[0].Token)
}

func TestUpsertBotKeepsCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-a", Token: "t", Active: true}))
	require.NoError(t, s.IncrementBotUsage(ctx, "bot-a"))
	require.NoError(t, s.IncrementBotUsage(ctx, "bot-a"))

	// Re-registering at startup must not reset usage.
	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-a", Token: "t-rotated", Active: true, UploadCount: 99}))

	active, err := s.ActiveBots(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].UploadCount)
	assert.Equal(t, "t-rotated", active[0].Token)

	require.ErrorIs(t, s.IncrementBotUsage(ctx, "ghost"), store.ErrBotNotFound)
}

func TestActiveBotsFiltersInactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-b", Token: "t1", Active: true}))
	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-a", Token: "t2", Active: true}))
	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-c", Token: "t3", Active: false}))

	active, err := s.ActiveBots(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "bot-a", active[0].BotID)
	assert.Equal(t, "bot-b", active[1].BotID)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveFile(ctx, testMeta("a.txt", "id-1")))
	require.NoError(t, s.UpsertBot(ctx, models.Bot{BotID: "bot-a", Token: "t", Active: true}))
	require.NoError(t, s.Close(ctx))

	s, err = New(dir)
	require.NoError(t, err)
	defer s.Close(ctx)

	got, err := s.FileByName(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.FileID)

	active, err := s.ActiveBots(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "t", active[0].Token)
}
