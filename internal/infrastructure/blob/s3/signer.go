package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultExpiry = 15 * time.Minute

var ErrBucketRequired = errors.New("s3 bucket required")

// Config параметры подключения к S3-совместимому хранилищу (AWS S3, MinIO)
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	Expiry    time.Duration

	// Credentials если не задан, используется стандартная цепочка AWS
	Credentials aws.CredentialsProvider
}

// Signer выдает подписанные ссылки на загрузку и скачивание вложений.
// Сами файлы сервер не передает.
type Signer struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

func New(ctx context.Context, cfg Config) (*Signer, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}
	region := cfg.Region
	if region == "" {
		region = "eu-central-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.Credentials != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(cfg.Credentials))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Signer{presign: s3.NewPresignClient(client), bucket: cfg.Bucket, expiry: expiry}, nil
}

func (s *Signer) UploadURL(ctx context.Context, key string) (string, error) {
	out, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return out.URL, nil
}

func (s *Signer) DownloadURL(ctx context.Context, key string) (string, error) {
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return out.URL, nil
}
