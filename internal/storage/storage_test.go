package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndResolve(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8083/api/files/images/")
	require.NoError(t, err)

	name := NewObjectName("cat.PNG", "image/png")
	url, err := store.Save(context.Background(), name, "image/png", strings.NewReader("png-bytes"), 9)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8083/api/files/images/"+name, url)

	path, err := store.Path(name)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	_, err = store.Save(context.Background(), name, "image/png", strings.NewReader("again"), 5)
	assert.Error(t, err, "names are never overwritten")
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://x")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "../escape.png", "image/png", strings.NewReader("x"), 1)
	assert.Error(t, err)
	_, err = store.Path("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Path("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewObjectName(t *testing.T) {
	assert.True(t, strings.HasSuffix(NewObjectName("photo", "image/jpeg"), ".jpg"))
	assert.True(t, strings.HasSuffix(NewObjectName("a.bmp", "image/bmp"), ".bmp"))
	assert.NotEqual(t, NewObjectName("a.png", "image/png"), NewObjectName("a.png", "image/png"))
	assert.True(t, ValidName(NewObjectName("a.png", "image/png")))
}

func TestS3ObjectURL(t *testing.T) {
	s := &S3Store{bucket: "chat", region: "eu-west-1"}
	assert.Equal(t, "https://chat.s3.eu-west-1.amazonaws.com/images/a.png", s.objectURL("images/a.png"))

	s.endpoint = "http://minio:9000"
	assert.Equal(t, "http://minio:9000/chat/images/a.png", s.objectURL("images/a.png"))

	s.publicBaseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/images/a.png", s.objectURL("images/a.png"))
}
