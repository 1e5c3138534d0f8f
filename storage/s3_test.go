package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket string
	key    string
	body   []byte
	length int64
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.length = aws.ToInt64(in.ContentLength)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "full_inputs.msgpack.zst")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestS3Config_Enabled(t *testing.T) {
	assert.False(t, S3Config{Region: "us-east-1"}.Enabled())
	assert.True(t, S3Config{Bucket: "speakers"}.Enabled())
}

func TestPublisher_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "full_inputs.msgpack.zst"},
		{"runs/2024", "runs/2024/full_inputs.msgpack.zst"},
		{"/runs/2024/", "runs/2024/full_inputs.msgpack.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			p := NewPublisher(&fakePutter{}, S3Config{Bucket: "b", Prefix: tt.prefix})
			assert.Equal(t, tt.want, p.Key("/cache/full_inputs.msgpack.zst"))
		})
	}
}

func TestPublisher_URL(t *testing.T) {
	hosted := NewPublisher(&fakePutter{}, S3Config{Bucket: "speakers", Region: "eu-west-1"})
	assert.Equal(t, "https://speakers.s3.eu-west-1.amazonaws.com/a/b", hosted.URL("a/b"))

	local := NewPublisher(&fakePutter{}, S3Config{Bucket: "speakers", Endpoint: "http://localhost:4566/"})
	assert.Equal(t, "http://localhost:4566/speakers/a/b", local.URL("a/b"))
}

func TestPublisher_Publish(t *testing.T) {
	putter := &fakePutter{}
	p := NewPublisher(putter, S3Config{Bucket: "speakers", Region: "us-east-1", Prefix: "inputs"})

	url, err := p.Publish(context.Background(), writeArtifact(t, "archive bytes"))
	require.NoError(t, err)

	assert.Equal(t, "speakers", putter.bucket)
	assert.Equal(t, "inputs/full_inputs.msgpack.zst", putter.key)
	assert.Equal(t, "archive bytes", string(putter.body))
	assert.Equal(t, int64(len("archive bytes")), putter.length)
	assert.Equal(t, "https://speakers.s3.us-east-1.amazonaws.com/inputs/full_inputs.msgpack.zst", url)
}

func TestPublisher_PublishErrors(t *testing.T) {
	boom := errors.New("access denied")
	p := NewPublisher(&fakePutter{err: boom}, S3Config{Bucket: "speakers"})

	_, err := p.Publish(context.Background(), writeArtifact(t, "x"))
	assert.ErrorIs(t, err, boom)

	_, err = p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewS3Publisher(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Config{})
	assert.Error(t, err)

	p, err := NewS3Publisher(context.Background(), S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", p.config.Bucket)
	assert.Equal(t, "x", p.Key("x"))
}
