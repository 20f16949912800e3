package blob

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
)

var _ Store = (*S3)(nil)

// S3Config configures an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket string
	Region string
	// Prefix is prepended to every object key.
	Prefix string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO. Path-style
	// addressing is used when set.
	Endpoint string
	// BaseURL overrides the derived public URL of objects.
	BaseURL         string
	AccessKeyID     string
	SecretAccessKey string
}

// ObjectAPI is the subset of the S3 client used by S3.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores objects in a bucket.
type S3 struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	baseURL string
}

// NewS3 loads AWS configuration from the environment, overridden by cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithClient(client, cfg), nil
}

// NewS3WithClient creates an S3 store on an existing client.
func NewS3WithClient(client ObjectAPI, cfg S3Config) *S3 {
	base := cfg.BaseURL
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = joinURL(cfg.Endpoint, cfg.Bucket)
	default:
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: base,
	}
}

// Put uploads obj below dir. The returned path excludes the key prefix.
func (s *S3) Put(ctx context.Context, dir string, obj Object) (string, error) {
	p := objectPath(dir, obj)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   obj.Body,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if obj.Size > 0 {
		in.ContentLength = aws.Int64(obj.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", &UploadError{Path: p, Err: err}
	}
	return p, nil
}

// URL returns the public URL of p.
func (s *S3) URL(p string) string {
	return joinURL(s.baseURL, s.key(p))
}

// Delete removes the object at p.
func (s *S3) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return errors.Wrapf(err, "delete %s", p)
	}
	return nil
}

func (s *S3) key(p string) string {
	if s.prefix == "" {
		return p
	}
	return joinURL(s.prefix, p)
}
