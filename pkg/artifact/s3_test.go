package artifact_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/artifact"
)

type fakeS3 struct {
	putInputs []*s3.PutObjectInput
	deleted   []string
	err       error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.putInputs = append(f.putInputs, params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newStore(t *testing.T, client artifact.S3Client) *artifact.S3Store {
	t.Helper()

	store, err := artifact.NewS3Store(context.Background(), artifact.S3Config{
		Bucket:  "exports",
		Region:  "eu-west-1",
		BaseURL: "https://cdn.example.com/",
	}, artifact.WithS3Client(client))
	require.NoError(t, err)
	return store
}

func TestS3Put(t *testing.T) {
	t.Parallel()

	client := &fakeS3{}
	store := newStore(t, client)
	accountID, exportID := uuid.New(), uuid.New()

	art, err := store.Put(context.Background(), accountID, exportID, "text/csv", strings.NewReader("sku,price\n"))
	require.NoError(t, err)

	wantKey := "exports/" + accountID.String() + "/" + exportID.String()
	assert.Equal(t, wantKey, art.Key)
	assert.Equal(t, int64(10), art.Size)
	assert.Equal(t, "https://cdn.example.com/"+wantKey, art.URL)

	require.Len(t, client.putInputs, 1)
	assert.Equal(t, "exports", *client.putInputs[0].Bucket)
	assert.Equal(t, "text/csv", *client.putInputs[0].ContentType)

	body, err := io.ReadAll(client.putInputs[0].Body)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("sku,price\n"), body))
}

func TestS3PutUploadFailure(t *testing.T) {
	t.Parallel()

	store := newStore(t, &fakeS3{err: errors.New("denied")})

	_, err := store.Put(context.Background(), uuid.New(), uuid.New(), "text/csv", strings.NewReader("x"))
	assert.ErrorIs(t, err, artifact.ErrUploadFailed)
}

func TestS3Delete(t *testing.T) {
	t.Parallel()

	client := &fakeS3{}
	store := newStore(t, client)

	require.NoError(t, store.Delete(context.Background(), "exports/a/b"))
	assert.Equal(t, []string{"exports/a/b"}, client.deleted)
}

func TestNewS3StoreRequiresBucketAndRegion(t *testing.T) {
	t.Parallel()

	_, err := artifact.NewS3Store(context.Background(), artifact.S3Config{Region: "eu-west-1"})
	assert.ErrorIs(t, err, artifact.ErrInvalidConfig)

	_, err = artifact.NewS3Store(context.Background(), artifact.S3Config{Bucket: "exports"})
	assert.ErrorIs(t, err, artifact.ErrInvalidConfig)
}

func TestMemStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := artifact.NewMemStore()
	accountID, exportID := uuid.New(), uuid.New()

	art, err := store.Put(context.Background(), accountID, exportID, "application/pdf", strings.NewReader("doc"))
	require.NoError(t, err)

	data, ok := store.Get(art.Key)
	require.True(t, ok)
	assert.Equal(t, "doc", string(data))

	require.NoError(t, store.Delete(context.Background(), art.Key))
	_, ok = store.Get(art.Key)
	assert.False(t, ok)
}
