package processor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/types"
)

// fakeChunkCache 内存分块缓存
type fakeChunkCache struct {
	data map[string][]types.DocumentChunk
}

func newFakeChunkCache() *fakeChunkCache {
	return &fakeChunkCache{data: make(map[string][]types.DocumentChunk)}
}

func (c *fakeChunkCache) CacheChunks(_ context.Context, ownerID string, docType types.DocumentType, chunks []types.DocumentChunk) error {
	c.data[chunkKey(ownerID, docType)] = chunks
	return nil
}

func (c *fakeChunkCache) GetCachedChunks(_ context.Context, ownerID string, docType types.DocumentType) ([]types.DocumentChunk, error) {
	chunks, ok := c.data[chunkKey(ownerID, docType)]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return chunks, nil
}

func (c *fakeChunkCache) InvalidateChunks(_ context.Context, ownerID string, docType types.DocumentType) error {
	delete(c.data, chunkKey(ownerID, docType))
	return nil
}

// buildDocumentText 生成可分出若干块的测试文本
func buildDocumentText(wordCount int) string {
	words := make([]string, wordCount)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(words, " ")
}

func TestDocumentProcessor_EmptyTextRejected(t *testing.T) {
	p := NewDocumentProcessor(parser.NewChunker(), newFakeStore())

	_, err := p.ProcessText(context.Background(), "owner-1", types.DocumentTypePrimary, "  \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestDocumentProcessor_ReuploadReplacesWholesale(t *testing.T) {
	store := newFakeStore()
	chunker := parser.NewChunker(parser.WithChunkSize(100), parser.WithOverlap(0))
	p := NewDocumentProcessor(chunker, store)

	first, err := p.ProcessText(context.Background(), "owner-1", types.DocumentTypePrimary, buildDocumentText(1300))
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := p.ProcessText(context.Background(), "owner-1", types.DocumentTypePrimary, buildDocumentText(260))
	require.NoError(t, err)

	// 重新上传后只剩新集合，没有旧分块残留
	persisted, err := store.GetChunks(context.Background(), "owner-1", types.DocumentTypePrimary)
	require.NoError(t, err)
	assert.Len(t, persisted, len(second))
	assert.Less(t, len(second), len(first))
}

func TestDocumentProcessor_CacheRefreshedOnUpload(t *testing.T) {
	store := newFakeStore()
	cache := newFakeChunkCache()
	chunker := parser.NewChunker(parser.WithChunkSize(100), parser.WithOverlap(0))
	p := NewDocumentProcessor(chunker, store, WithChunkCache(cache))

	persisted, err := p.ProcessText(context.Background(), "owner-1", types.DocumentTypePrimary, buildDocumentText(650))
	require.NoError(t, err)

	cached, err := cache.GetCachedChunks(context.Background(), "owner-1", types.DocumentTypePrimary)
	require.NoError(t, err)
	assert.Equal(t, persisted, cached)
}

func TestDocumentProcessor_GetChunksFallsBackToStore(t *testing.T) {
	store := newFakeStore()
	cache := newFakeChunkCache()
	seedChunks(store, "owner-1", types.DocumentTypePrimary, 4)
	p := NewDocumentProcessor(parser.NewChunker(), store, WithChunkCache(cache))

	// 首次读取回源并回填缓存
	chunks, err := p.GetChunks(context.Background(), "owner-1", types.DocumentTypePrimary)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)

	cached, err := cache.GetCachedChunks(context.Background(), "owner-1", types.DocumentTypePrimary)
	require.NoError(t, err)
	assert.Equal(t, chunks, cached)
}
