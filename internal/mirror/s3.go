package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fim-go/internal/config"
	"fim-go/internal/fim"
)

// versionMetadataKey is the user metadata entry carrying the object version.
// S3 lower-cases metadata keys, so it is stored lower-case.
const versionMetadataKey = "fim-version"

// Static credentials, when set, take precedence over the default AWS chain.
const (
	envAccessKeyID     = "FIM_S3_ACCESS_KEY_ID"
	envSecretAccessKey = "FIM_S3_SECRET_ACCESS_KEY"
)

const s3Timeout = 5 * time.Minute

// S3Client is the subset of the S3 API used by S3Mirror.
type S3Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Mirror stores baseline copies as objects under
// <prefix>/<hostID>/<name>, with the version in object metadata.
type S3Mirror struct {
	client   S3Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Mirror creates a mirror using an existing client.
func NewS3Mirror(client S3Client, bucket, prefix string) *S3Mirror {
	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// NewS3MirrorFromConfig builds an S3 client from the mirror config and the
// environment. A custom endpoint switches to path-style addressing, which
// S3-compatible stores such as MinIO expect.
func NewS3MirrorFromConfig(ctx context.Context, cfg config.MirrorConfig) (*S3Mirror, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if id, secret := os.Getenv(envAccessKeyID), os.Getenv(envSecretAccessKey); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Mirror(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func (m *S3Mirror) key(hostID, name string) string {
	return path.Join(m.prefix, hostID, name)
}

// Put uploads the object with its version attached as metadata.
// The body is read in full first, so a short or long reader fails before
// anything replaces the stored copy.
func (m *S3Mirror) Put(hostID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key(hostID, name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			versionMetadataKey: strconv.FormatInt(version, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", m.key(hostID, name), err)
	}
	return nil
}

// Get downloads the object into w.
func (m *S3Mirror) Get(hostID string, name string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(hostID, name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%s not found for host: %s", name, hostID)
		}
		return fmt.Errorf("downloading %s: %w", m.key(hostID, name), err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", m.key(hostID, name), err)
	}
	return nil
}

// Version reads the version from object metadata. A missing object is version 0.
func (m *S3Mirror) Version(hostID string, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s3Timeout)
	defer cancel()

	out, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(hostID, name)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading metadata of %s: %w", m.key(hostID, name), err)
	}

	raw, ok := out.Metadata[versionMetadataKey]
	if !ok {
		return 0, fmt.Errorf("object %s has no version metadata", m.key(hostID, name))
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (m *S3Mirror) ValidateSetup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)}); err != nil {
		return fmt.Errorf("mirror bucket %s not accessible: %w", m.bucket, err)
	}
	return nil
}

// Compile-time check that S3Mirror implements fim.Mirror interface
var _ fim.Mirror = (*S3Mirror)(nil)
