package objectstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Put(t *testing.T) {
	fp := &fakePutter{}
	s := &S3{client: fp, bucket: "resumes"}

	err := s.Put(context.Background(), "resumes/u/2026/01/01/x.docx", "application/test", []byte("data"))
	require.NoError(t, err)
	require.Equal(t, "resumes", aws.ToString(fp.in.Bucket))
	require.Equal(t, "resumes/u/2026/01/01/x.docx", aws.ToString(fp.in.Key))
	require.Equal(t, "application/test", aws.ToString(fp.in.ContentType))
	require.Equal(t, int64(4), aws.ToInt64(fp.in.ContentLength))
	require.Equal(t, "data", string(fp.body))
}

func TestS3_PutError(t *testing.T) {
	s := &S3{client: &fakePutter{err: errors.New("denied")}, bucket: "b"}

	err := s.Put(context.Background(), "k", "t", nil)
	require.ErrorContains(t, err, "put k: denied")
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	s, err := New(context.Background(), Config{
		Bucket:    "b",
		Region:    "auto",
		Endpoint:  "http://localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	require.Equal(t, "b", s.bucket)
}
