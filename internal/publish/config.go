package publish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marwinsteiner/trade-accounting/internal/common"
)

// FromConfig builds the publishers enabled by cfg: the output directory when
// set, S3 when a bucket is set, Kafka when brokers are set. The returned
// close func releases the Kafka writer.
func FromConfig(ctx context.Context, cfg *common.Config, logger *slog.Logger) (Multi, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		pubs    Multi
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if cfg.Output.Dir != "" {
		p, err := NewDirPublisher(cfg.Output.Dir, logger)
		if err != nil {
			return nil, closeAll, err
		}
		pubs = append(pubs, p)
	}
	if cfg.S3.Bucket != "" {
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, closeAll, err
		}
		pubs = append(pubs, NewS3Publisher(client, cfg.S3.Bucket, cfg.S3.Prefix, logger))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		w, err := NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, closeAll, err
		}
		kp := NewKafkaPublisher(w, logger)
		pubs = append(pubs, kp)
		closers = append(closers, kp.Close)
	}

	logger.Info("publishers ready",
		"dir", cfg.Output.Dir,
		"s3_bucket", cfg.S3.Bucket,
		"kafka_brokers", len(cfg.Kafka.Brokers),
	)
	return pubs, closeAll, nil
}
