package tableio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures uploads to s3:// targets. Empty credentials fall back to
// the default aws credential chain.
type S3Config struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyId     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	PathStyle       bool   `json:"path_style"`
}

func NewS3Client(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKeyId != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	opts := append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)
	return s3.NewFromConfig(awsCfg, opts...), nil
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type SinkOptions struct {
	S3 S3Config
	// used instead of a client built from S3 when set
	S3Client ObjectPutter
	// sent as the Content-Type of uploaded objects
	ContentType string
}

type stdoutSink struct{}

func (stdoutSink) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdoutSink) Close() error                { return nil }

// s3Sink buffers everything written to it and uploads the object on Close.
type s3Sink struct {
	ctx         context.Context
	client      ObjectPutter
	bucket      string
	key         string
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (s *s3Sink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("write to closed sink s3://%s/%s", s.bucket, s.key)
	}
	return s.buf.Write(p)
}

func (s *s3Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	}
	if s.contentType != "" {
		input.ContentType = aws.String(s.contentType)
	}
	_, err := s.client.PutObject(s.ctx, input)
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	slog.DebugContext(s.ctx, "uploaded object", "bucket", s.bucket, "key", s.key, "bytes", s.buf.Len())
	return nil
}

func parseS3Target(target string) (bucket, key string, err error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 target '%s' must look like s3://bucket/key", target)
	}
	return bucket, key, nil
}

// OpenSink opens the destination named by target. An empty target or "-" is
// stdout, s3://bucket/key is an object uploaded on Close and anything else is a
// local file path.
func OpenSink(ctx context.Context, target string, opts SinkOptions) (io.WriteCloser, error) {
	if target == "" || target == "-" {
		return stdoutSink{}, nil
	}

	if strings.HasPrefix(target, "s3://") {
		bucket, key, err := parseS3Target(target)
		if err != nil {
			return nil, err
		}
		client := opts.S3Client
		if client == nil {
			client, err = NewS3Client(ctx, opts.S3)
			if err != nil {
				return nil, err
			}
		}
		return &s3Sink{
			ctx:         ctx,
			client:      client,
			bucket:      bucket,
			key:         key,
			contentType: opts.ContentType,
		}, nil
	}

	err := os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return nil, err
	}
	return os.Create(target)
}

// ContentType is the mime type uploads of the format are tagged with.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown"
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html"
	case FormatJSON:
		return "application/json"
	}
	return "text/plain"
}
