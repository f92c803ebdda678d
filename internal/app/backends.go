package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/phrazzld/imglabel/internal/notify"
	"github.com/phrazzld/imglabel/internal/platform/gemini"
	"github.com/phrazzld/imglabel/internal/platform/memory"
	"github.com/phrazzld/imglabel/internal/platform/postgres"
	rekengine "github.com/phrazzld/imglabel/internal/platform/rekognition"
	"github.com/phrazzld/imglabel/internal/platform/s3store"
	"github.com/phrazzld/imglabel/internal/platform/sqs"
	"github.com/phrazzld/imglabel/internal/queue"
	"github.com/phrazzld/imglabel/internal/vision"
)

// awsClients are built once from the default credential chain.
type awsClients struct {
	cfg aws.Config
}

func (b *builder) awsConfig(ctx context.Context) (aws.Config, error) {
	if b.aws != nil {
		return b.aws.cfg, nil
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if b.cfg.ObjectStore.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(b.cfg.ObjectStore.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	b.aws = &awsClients{cfg: cfg}
	return cfg, nil
}

func (b *builder) buildQueue(ctx context.Context) error {
	qc := b.cfg.Queue
	switch qc.Backend {
	case "memory":
		q := queue.NewMemoryQueue(queue.MemoryQueueConfig{
			MaxReceiveCount: qc.MaxReceiveCount,
			Now:             b.opts.Now,
		})
		b.app.Queue, b.app.DeadLetters, b.app.Stats = q, q, q
	case "postgres":
		q := postgres.NewLeaseQueue(b.app.DB, postgres.LeaseQueueConfig{
			MaxReceiveCount: qc.MaxReceiveCount,
			PollInterval:    qc.PollInterval,
		}, b.logger)
		b.app.Queue, b.app.DeadLetters, b.app.Stats = q, q, q
	case "sqs":
		awsCfg, err := b.awsConfig(ctx)
		if err != nil {
			return err
		}
		q, err := sqs.New(awssqs.NewFromConfig(awsCfg), sqs.Config{
			QueueURL:           qc.SQS.QueueURL,
			DeadLetterQueueURL: qc.SQS.DeadLetterQueueURL,
			MaxReceiveCount:    qc.MaxReceiveCount,
			Now:                b.opts.Now,
		}, b.logger)
		if err != nil {
			return err
		}
		b.app.Queue, b.app.DeadLetters, b.app.Stats = q, q, q
	default:
		return fmt.Errorf("unknown queue backend %q", qc.Backend)
	}
	return nil
}

func (b *builder) buildStores(ctx context.Context) error {
	switch b.cfg.Storage.Backend {
	case "memory":
		b.app.Labels = memory.NewLabelStore()
		b.app.Thumbnails = memory.NewThumbnailStore()
	case "postgres":
		b.app.Labels = postgres.NewPostgresLabelStore(b.app.DB, b.logger)
		b.app.Thumbnails = postgres.NewPostgresThumbnailStore(b.app.DB, b.logger)
	default:
		return fmt.Errorf("unknown storage backend %q", b.cfg.Storage.Backend)
	}

	oc := b.cfg.ObjectStore
	switch oc.Backend {
	case "memory":
		b.rawImages = memory.NewObjectStore(oc.ImageBucket)
		b.app.ThumbnailObjects = memory.NewObjectStore(oc.ThumbnailBucket)
	case "s3":
		awsCfg, err := b.awsConfig(ctx)
		if err != nil {
			return err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if oc.Endpoint != "" {
				o.BaseEndpoint = aws.String(oc.Endpoint)
			}
			o.UsePathStyle = oc.UsePathStyle
		})
		b.rawImages = s3store.New(client, oc.ImageBucket, b.logger)
		b.app.ThumbnailObjects = s3store.New(client, oc.ThumbnailBucket, b.logger)
	default:
		return fmt.Errorf("unknown object store backend %q", oc.Backend)
	}

	b.app.Images = b.rawImages
	if b.cfg.Notifications.Emit {
		b.app.Images = notify.NewNotifyingObjectStore(b.rawImages, b.app.Queue,
			notify.SuffixFilter(b.cfg.Notifications.Suffixes), b.logger, notify.WithClock(b.opts.Now))
	}
	return nil
}

func (b *builder) buildEngine(ctx context.Context) (vision.Engine, error) {
	vc := b.cfg.Vision
	opts := vision.Options{MaxLabels: vc.MaxLabels, MinConfidence: vc.MinConfidence}
	switch vc.Provider {
	case "gemini":
		engine, err := gemini.NewEngine(ctx, b.logger, gemini.Config{
			APIKey:    vc.Gemini.APIKey,
			ModelName: vc.Gemini.ModelName,
			Options:   opts,
		})
		if err != nil {
			return nil, err
		}
		return engine, nil
	case "rekognition":
		awsCfg, err := b.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		return rekengine.NewEngine(rekognition.NewFromConfig(awsCfg), opts, b.logger), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", vc.Provider)
	}
}
