package rawlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Source gives access to the files of one test channel. Open returns an
// error wrapping fs.ErrNotExist when name is not present.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Location() string
}

// Dir is a channel folder on the local filesystem.
type Dir string

func (d Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(string(d), name))
}

func (d Dir) Location() string {
	return string(d)
}

// S3API is the part of the S3 client used to fetch logs.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 is a channel folder stored under a bucket prefix.
type S3 struct {
	Client S3API
	Bucket string
	Prefix string
}

func (s S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join(s.Prefix, name)
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.Bucket, key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.Bucket, key, err)
	}
	return out.Body, nil
}

func (s S3) Location() string {
	return "s3://" + path.Join(s.Bucket, s.Prefix)
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// NewS3Client builds a path-style client so MinIO style endpoints work.
// Without static keys the default AWS credential chain is used.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := c.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if c.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// ParseS3Location splits s3://bucket/prefix.
func ParseS3Location(location string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %s", location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// OpenSource returns an S3 source for s3:// locations and a Dir otherwise.
func OpenSource(ctx context.Context, location string, c S3Config) (Source, error) {
	if !strings.HasPrefix(location, "s3://") {
		return Dir(location), nil
	}
	bucket, prefix, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	client, err := NewS3Client(ctx, c)
	if err != nil {
		return nil, err
	}
	return S3{Client: client, Bucket: bucket, Prefix: prefix}, nil
}
