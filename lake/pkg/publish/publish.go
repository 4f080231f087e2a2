package publish

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	Logger *slog.Logger
	// URI is s3://bucket[/prefix].
	URI string
	S3  *S3Config
	// CreateBucket creates the bucket when it does not exist. Only honored for MinIO endpoints.
	CreateBucket bool
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if _, _, err := ParseURI(c.URI); err != nil {
		return err
	}
	if c.S3 == nil {
		return fmt.Errorf("s3 config is required")
	}
	return nil
}

// ParseURI splits s3://bucket/prefix into bucket and prefix (without slashes at either end).
func ParseURI(uri string) (string, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3:// URI format: %w", err)
	}
	if parsed.Scheme != "s3" {
		return "", "", fmt.Errorf("publish URI must start with s3:// (got: %q)", uri)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("s3:// URI must include a bucket name (e.g., s3://bucket-name/path)")
	}
	if len(parsed.Host) < 3 || len(parsed.Host) > 63 {
		return "", "", fmt.Errorf("s3 bucket name must be between 3 and 63 characters")
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// Publisher uploads run artifacts to object storage.
type Publisher struct {
	log    *slog.Logger
	cfg    Config
	client *s3.Client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bucket, prefix, _ := ParseURI(cfg.URI)

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
	if cfg.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			endpoint := cfg.S3.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "http://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Publisher{
		log:    cfg.Logger,
		cfg:    cfg,
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Key returns the object key for a file published under runID. The file's parent directory name is
// kept so raw and processed copies of a dataset do not collide.
func (p *Publisher) Key(runID, file string) string {
	return path.Join(p.prefix, runID, filepath.Base(filepath.Dir(file)), filepath.Base(file))
}

// Publish uploads files under <prefix>/<runID>/ and returns their s3:// URIs.
func (p *Publisher) Publish(ctx context.Context, runID string, files []string) ([]string, error) {
	if p.cfg.CreateBucket && p.cfg.S3.IsMinIO() {
		if err := p.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}

	uris := make([]string, 0, len(files))
	for _, file := range files {
		key := p.Key(runID, file)
		if err := p.upload(ctx, file, key); err != nil {
			return uris, fmt.Errorf("failed to publish %s: %w", file, err)
		}
		uri := "s3://" + p.bucket + "/" + key
		uris = append(uris, uri)
		p.log.Info("publisher: uploaded artifact", "file", file, "uri", uri)
	}
	return uris, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open: %w", err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	if _, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err == nil {
		return nil
	}
	p.log.Info("publisher: creating bucket", "bucket", p.bucket, "endpoint", p.cfg.S3.Endpoint)
	if _, err := p.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", p.bucket, err)
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		return "text/csv"
	case ".geojson":
		return "application/geo+json"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
