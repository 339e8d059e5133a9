package linkfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"reorder-go/internal/config"
	"reorder-go/internal/reorder"
)

// S3API is the subset of the S3 client used for reads and permission checks.
type S3API interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Uploader writes objects. *manager.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3File is a linked file stored as one object in an S3-compatible bucket.
type S3File struct {
	client   S3API
	uploader Uploader
	bucket   string
	key      string
}

var _ reorder.LinkedFile = (*S3File)(nil)

func NewS3File(client S3API, uploader Uploader, bucket, key string) *S3File {
	return &S3File{client: client, uploader: uploader, bucket: bucket, key: key}
}

func (f *S3File) Ref() string { return "s3://" + f.bucket + "/" + f.key }

func (f *S3File) Name() string {
	if i := strings.LastIndex(f.key, "/"); i >= 0 {
		return f.key[i+1:]
	}
	return f.key
}

func (f *S3File) Read(ctx context.Context) (string, error) {
	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", classifyS3("get "+f.Ref(), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Ref(), err)
	}
	return string(data), nil
}

func (f *S3File) Write(ctx context.Context, data string) error {
	_, err := f.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(f.bucket),
		Key:         aws.String(f.key),
		Body:        strings.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return classifyS3("upload "+f.Ref(), err)
	}
	return nil
}

// QueryPermission issues a HEAD for the object. A missing object still
// counts as granted; the first write creates it.
func (f *S3File) QueryPermission(ctx context.Context) (reorder.Permission, error) {
	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	switch {
	case err == nil, isNotFound(err):
		return reorder.PermissionGranted, nil
	case isAccessDenied(err):
		return reorder.PermissionDenied, nil
	default:
		return "", fmt.Errorf("head %s: %w", f.Ref(), err)
	}
}

// RequestPermission re-checks; credentials are not interactive.
func (f *S3File) RequestPermission(ctx context.Context) (reorder.Permission, error) {
	return f.QueryPermission(ctx)
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isNotFound(err error) bool {
	switch apiErrorCode(err) {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func isAccessDenied(err error) bool {
	switch apiErrorCode(err) {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return true
	}
	return false
}

func classifyS3(op string, err error) error {
	if isAccessDenied(err) {
		return fmt.Errorf("%s: %w: %v", op, reorder.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ParseS3Ref splits "s3://bucket/key" into its parts.
func ParseS3Ref(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 ref: %q", ref)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 ref must name a bucket and an object key: %q", ref)
	}
	return bucket, key, nil
}

// NewS3Client builds a client from the sync config. Static keys are used
// when configured, otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg config.SyncConfig) (*s3.Client, error) {
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}

	if cfg.S3AccessKey != "" {
		opts := s3.Options{
			Region:       region,
			Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
			UsePathStyle: cfg.S3Endpoint != "",
		}
		if cfg.S3Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		return s3.New(opts), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
