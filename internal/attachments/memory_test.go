package attachments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAtLimitSucceeds(t *testing.T) {
	store := NewMemoryStore(8)

	refs, err := store.Put(context.Background(), []Upload{
		{Name: "exact.bin", MimeType: "application/octet-stream", Content: make([]byte, 8)},
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(8), refs[0].Size)
	assert.Equal(t, "exact.bin", refs[0].Name)
	assert.Contains(t, refs[0].URL, "/attachments/")
}

func TestPutOneByteOverFailsWithoutPersisting(t *testing.T) {
	store := NewMemoryStore(8)

	_, err := store.Put(context.Background(), []Upload{
		{Name: "ok.txt", MimeType: "text/plain", Content: []byte("hello")},
		{Name: "big.bin", MimeType: "application/octet-stream", Content: make([]byte, 9)},
	})

	var tooLarge *PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, "big.bin", tooLarge.Name)
	assert.Equal(t, int64(9), tooLarge.Size)
	assert.Equal(t, 0, store.Len(), "a rejected batch must persist nothing")
}

func TestGetRoundTrip(t *testing.T) {
	store := NewMemoryStore(64)

	refs, err := store.Put(context.Background(), []Upload{
		{Name: "note.txt", MimeType: "text/plain", Content: []byte("hi there")},
	})
	require.NoError(t, err)

	id := refs[0].URL[len("/attachments/"):]
	blob, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "note.txt", blob.Name)
	assert.Equal(t, "text/plain", blob.MimeType)
	assert.Equal(t, []byte("hi there"), blob.Content)
	assert.Equal(t, int64(8), blob.Size)

	ref, err := store.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, refs[0], ref)
}

func TestGetUnknownID(t *testing.T) {
	store := NewMemoryStore(64)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrBlobNotFound))

	_, err = store.Resolve(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrBlobNotFound))
}
