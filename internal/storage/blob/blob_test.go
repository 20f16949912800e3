package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocal_PutURLDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, "http://localhost:8080/media/")
	require.NoError(t, err)

	p, err := store.Put(context.Background(), "products/12", Object{
		Name: "Photo.JPG",
		Body: strings.NewReader("jpeg bytes"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "products/12/"))
	assert.True(t, strings.HasSuffix(p, ".jpg"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	assert.Equal(t, "http://localhost:8080/media/"+p, store.URL(p))

	require.NoError(t, store.Delete(context.Background(), p))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(p)))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Deleting twice is fine.
	require.NoError(t, store.Delete(context.Background(), p))
}

func TestLocal_PutFailure(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root, "/media")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "products/1", Object{Name: "a.png", Body: failingReader{}})

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorContains(t, err, "connection reset")

	// The partial file is removed.
	_, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(upErr.Path)))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestObjectPath_DropsClientPath(t *testing.T) {
	p := objectPath("/products/3/", Object{Name: `..\..\etc\passwd.png`})
	assert.True(t, strings.HasPrefix(p, "products/3/"))
	assert.NotContains(t, p, "..")
	assert.True(t, strings.HasSuffix(p, ".png"))
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    string
	deleted *s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = in
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3_Put(t *testing.T) {
	client := &fakeS3{}
	store := NewS3WithClient(client, S3Config{Bucket: "shop", Region: "eu-west-1", Prefix: "media"})

	p, err := store.Put(context.Background(), "products/5", Object{
		Name:        "x.webp",
		ContentType: "image/webp",
		Size:        4,
		Body:        strings.NewReader("webp"),
	})
	require.NoError(t, err)

	assert.Equal(t, "shop", aws.ToString(client.put.Bucket))
	assert.Equal(t, "media/"+p, aws.ToString(client.put.Key))
	assert.Equal(t, "image/webp", aws.ToString(client.put.ContentType))
	assert.Equal(t, "webp", client.body)
	assert.Equal(t, "https://shop.s3.eu-west-1.amazonaws.com/media/"+p, store.URL(p))

	require.NoError(t, store.Delete(context.Background(), p))
	assert.Equal(t, "media/"+p, aws.ToString(client.deleted.Key))
}

func TestS3_PutFailure(t *testing.T) {
	store := NewS3WithClient(&fakeS3{err: errors.New("access denied")}, S3Config{Bucket: "shop", Region: "us-east-1"})

	_, err := store.Put(context.Background(), "products/5", Object{Name: "x.png", Body: strings.NewReader("png")})

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.ErrorContains(t, err, "access denied")
}

func TestS3_URLWithEndpoint(t *testing.T) {
	store := NewS3WithClient(&fakeS3{}, S3Config{Bucket: "shop", Endpoint: "http://minio:9000/"})
	assert.Equal(t, "http://minio:9000/shop/products/1/a.png", store.URL("products/1/a.png"))
}
