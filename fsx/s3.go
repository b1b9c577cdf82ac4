package fsx

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Abraxas-365/wagate/errx"
)

// S3API is the part of the S3 client the file system needs
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3FS reads objects from one bucket. Paths are object keys.
type S3FS struct {
	client S3API
	bucket string
}

// NewS3FS creates a file system over a bucket
func NewS3FS(client S3API, bucket string) *S3FS {
	return &S3FS{client: client, bucket: bucket}
}

func (s *S3FS) key(p string) string {
	return strings.TrimPrefix(p, "/")
}

func (s *S3FS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	body, err := s.ReadFileStream(ctx, p)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fsErrors.New(ErrRead).WithDetail("bucket", s.bucket).WithDetail("key", s.key(p)).WithCause(err)
	}
	return data, nil
}

func (s *S3FS) ReadFileStream(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, s.wrap(p, err)
	}
	return out.Body, nil
}

func (s *S3FS) Stat(ctx context.Context, p string) (FileInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return FileInfo{}, s.wrap(p, err)
	}

	info := FileInfo{
		Name:        path.Base(s.key(p)),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (s *S3FS) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.Stat(ctx, p)
	if err == nil {
		return true, nil
	}
	if errx.IsCode(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *S3FS) wrap(p string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fsErrors.New(ErrNotFound).WithDetail("bucket", s.bucket).WithDetail("key", s.key(p)).WithCause(err)
	}
	return fsErrors.New(ErrRead).WithDetail("bucket", s.bucket).WithDetail("key", s.key(p)).WithCause(err)
}

// ParseS3URI splits s3://bucket/key. ok is false for anything else.
func ParseS3URI(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open resolves a location to a file system and a path inside it. s3://
// locations need an S3 client; anything else is read from the local disk.
func Open(location string, client S3API) (FileSystem, string, error) {
	if strings.HasPrefix(location, "s3://") {
		bucket, key, ok := ParseS3URI(location)
		if !ok {
			return nil, "", fsErrors.New(ErrInvalidPath).WithDetail("location", location)
		}
		if client == nil {
			return nil, "", fsErrors.New(ErrInvalidPath).
				WithDetail("location", location).
				WithDetail("reason", "no S3 client configured")
		}
		return NewS3FS(client, bucket), key, nil
	}
	if location == "" {
		return nil, "", fsErrors.New(ErrInvalidPath).WithDetail("reason", "empty location")
	}
	return NewLocalFS(""), location, nil
}
