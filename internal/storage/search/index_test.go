package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"message_archiver/internal/domain"
)

var testChannel = domain.Channel{ID: 111, Name: "general"}

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testBatch() []domain.Message {
	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	return []domain.Message{
		{ID: 12, ChannelID: 111, ChannelName: "general", AuthorID: 7, AuthorName: "alice",
			Content: "deployment finished without errors", Timestamp: now},
		{ID: 11, ChannelID: 111, ChannelName: "general", AuthorID: 8, AuthorName: "bob",
			Content: "lunch anyone?", Timestamp: now,
			Attachments: []string{"https://cdn.example.com/menu.png"}},
	}
}

func TestIndex_PersistAndSearch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Persist(ctx, testChannel, testBatch()))

	results, err := idx.Search(ctx, "deployment", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Snowflake(12), results[0].ID)
	assert.Equal(t, "alice", results[0].AuthorName)
	assert.Equal(t, "general", results[0].ChannelName)
}

func TestIndex_Persist_Idempotent(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	batch := testBatch()
	require.NoError(t, idx.Persist(ctx, testChannel, batch))
	require.NoError(t, idx.Persist(ctx, testChannel, batch))

	results, err := idx.Search(ctx, "lunch", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"https://cdn.example.com/menu.png"}, results[0].Attachments)
}

func TestIndex_Search_ByAuthorName(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Persist(ctx, testChannel, testBatch()))

	results, err := idx.Search(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.Snowflake(11), results[0].ID)
}

func TestIndex_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Persist(ctx, testChannel, testBatch()))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search(ctx, "deployment", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
