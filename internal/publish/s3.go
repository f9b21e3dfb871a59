package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/export"
)

// ObjectPutter is the part of *s3.Client the publisher uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher puts records at <prefix>/trade_<order_id>.json in one bucket.
// Works against AWS and S3-compatible stores such as MinIO.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Client builds an S3 client from config. Static credentials are used when
// an access key is set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg common.S3Config) (*s3.Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish: s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("publish: s3 region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := withScheme(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

func withScheme(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}

func NewS3Publisher(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *S3Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Key returns the object key for an order id.
func (p *S3Publisher) Key(orderID string) string {
	if p.prefix == "" {
		return ObjectName(orderID)
	}
	return path.Join(p.prefix, ObjectName(orderID))
}

func (p *S3Publisher) Publish(ctx context.Context, rec export.TradeRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	key := p.Key(rec.OrderID)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(b))),
	})
	if err != nil {
		return fmt.Errorf("publish: put s3://%s/%s: %w", p.bucket, key, err)
	}
	p.logger.Debug("publish.s3.ok", "order_id", rec.OrderID, "bucket", p.bucket, "key", key)
	return nil
}
