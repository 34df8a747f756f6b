package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/previews")
	require.NoError(t, err)
	ctx := context.Background()

	preview, err := store.Put(ctx, UploadInput{Filename: "photo.JPG", ContentType: "image/jpeg", Body: bytes.NewReader([]byte("jpeg-bytes"))})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(preview.Key, "preview-"))
	assert.True(t, strings.HasSuffix(preview.Key, ".jpg"))
	assert.Equal(t, "/previews/"+preview.Key, preview.URL)

	file, err := store.Open(preview.Key)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.Release(ctx, preview.Key))
	_, err = store.Open(preview.Key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Release(ctx, preview.Key), ErrNotFound)
}

func TestLocalStore_RejectsForeignKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "preview-/../../x", "other.png"} {
		_, err := store.Open(key)
		assert.ErrorIs(t, err, ErrNotFound, key)
		assert.ErrorIs(t, store.Release(context.Background(), key), ErrNotFound, key)
	}
}

func TestLocalStore_RequiresBody(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), UploadInput{Filename: "a.png"})
	assert.Error(t, err)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled().Put(context.Background(), UploadInput{Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrStoreDisabled)
	assert.NoError(t, Disabled().Release(context.Background(), "anything"))
}

type fakeObjects struct {
	puts    []*s3.PutObjectInput
	deletes []string
	err     error
}

func (f *fakeObjects) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeObjects) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, *params.Key)
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3Store(t *testing.T) {
	objects := &fakeObjects{}
	store := &s3Store{client: objects, bucket: "previews", region: "eu-north-1", prefix: "uploads"}
	ctx := context.Background()

	preview, err := store.Put(ctx, UploadInput{Filename: "me.png", ContentType: "image/png", Body: bytes.NewReader([]byte("png")), Size: 3})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(preview.Key, "uploads/"))
	assert.True(t, strings.HasSuffix(preview.Key, ".png"))
	assert.Equal(t, "https://previews.s3.eu-north-1.amazonaws.com/"+preview.Key, preview.URL)
	require.Len(t, objects.puts, 1)
	assert.Equal(t, "image/png", *objects.puts[0].ContentType)
	assert.Equal(t, int64(3), *objects.puts[0].ContentLength)

	require.NoError(t, store.Release(ctx, preview.Key))
	assert.Equal(t, []string{preview.Key}, objects.deletes)
	assert.ErrorIs(t, store.Release(ctx, ""), ErrNotFound)
}

func TestS3Store_Errors(t *testing.T) {
	objects := &fakeObjects{err: errors.New("AccessDenied")}
	store := &s3Store{client: objects, bucket: "b", region: "r", baseURL: "https://cdn.example.com"}

	_, err := store.Put(context.Background(), UploadInput{Body: bytes.NewReader(nil)})
	assert.ErrorContains(t, err, "AccessDenied")
	assert.ErrorContains(t, store.Release(context.Background(), "k"), "AccessDenied")
	assert.Equal(t, "https://cdn.example.com/k", store.objectURL("k"))
}

func TestNewS3Store_IncompleteConfigDisables(t *testing.T) {
	store, err := NewS3Store(context.Background(), Config{Bucket: "only-bucket"})
	require.NoError(t, err)
	_, err = store.Put(context.Background(), UploadInput{Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, ErrStoreDisabled)
}
