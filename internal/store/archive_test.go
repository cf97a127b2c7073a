package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archive_PutReport(t *testing.T) {
	client := &fakeS3{}
	archive := NewS3ArchiveWithClient(client, "reports", "/funnel-reports/")

	key, err := archive.PutReport(context.Background(), "run-7", []byte(`{"runId":"run-7"}`))
	require.NoError(t, err)
	assert.Equal(t, "funnel-reports/run-7.json", key)
	assert.Equal(t, "reports", aws.ToString(client.input.Bucket))
	assert.Equal(t, key, aws.ToString(client.input.Key))
	assert.Equal(t, "application/json", aws.ToString(client.input.ContentType))
	assert.Equal(t, `{"runId":"run-7"}`, string(client.body))
}

func TestS3Archive_NoPrefix(t *testing.T) {
	assert.Equal(t, "run-1.json", NewS3ArchiveWithClient(&fakeS3{}, "b", "").Key("run-1"))
}

func TestS3Archive_Errors(t *testing.T) {
	archive := NewS3ArchiveWithClient(&fakeS3{err: errors.New("access denied")}, "reports", "")

	key, err := archive.PutReport(context.Background(), "run-1", []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, "run-1.json", key)
	assert.Contains(t, err.Error(), "access denied")

	_, err = archive.PutReport(context.Background(), "", []byte("{}"))
	assert.Error(t, err)

	_, err = NewS3Archive(context.Background(), ArchiveOptions{})
	assert.Error(t, err)
}
