package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config configures the S3-backed artifact store, populated from the
// environment by pkg/config. Endpoint and ForcePathStyle support
// S3-compatible services like MinIO in development.
type S3Config struct {
	Bucket         string `env:"ARTIFACT_S3_BUCKET,required"`
	Region         string `env:"ARTIFACT_S3_REGION,required"`
	AccessKeyID    string `env:"ARTIFACT_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"ARTIFACT_S3_SECRET_KEY"`
	Endpoint       string `env:"ARTIFACT_S3_ENDPOINT"`
	BaseURL        string `env:"ARTIFACT_S3_BASE_URL"`
	ForcePathStyle bool   `env:"ARTIFACT_S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// S3Client is the subset of the AWS S3 API the store uses, extracted for
// mocking in tests.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps export documents in an S3 bucket.
type S3Store struct {
	client  S3Client
	bucket  string
	baseURL string
}

// S3Option overrides pieces of the store, mainly for tests.
type S3Option func(*S3Store)

// WithS3Client injects a pre-built client instead of loading AWS config.
func WithS3Client(client S3Client) S3Option {
	return func(s *S3Store) {
		s.client = client
	}
}

// NewS3Store builds the store, loading AWS credentials from the config or
// the default chain.
func NewS3Store(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	store := &S3Store{
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
	for _, opt := range opts {
		opt(store)
	}

	if store.client == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}

		store.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return store, nil
}

func (s *S3Store) Put(ctx context.Context, accountID, exportID uuid.UUID, contentType string, body io.Reader) (*Artifact, error) {
	// Buffer to learn the size; export documents are modest.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, errors.Join(ErrUploadFailed, err)
	}

	key := Key(accountID, exportID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, errors.Join(ErrUploadFailed, err)
	}

	artifact := &Artifact{
		Key:         key,
		Size:        int64(buf.Len()),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if s.baseURL != "" {
		artifact.URL = s.baseURL + "/" + key
	}
	return artifact, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Join(ErrDeleteFailed, err)
	}
	return nil
}
