package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/config"
	"github.com/3leaps/gotune/pkg/convert"
	"github.com/3leaps/gotune/pkg/dataset"
	"github.com/3leaps/gotune/pkg/jobs"
	"github.com/3leaps/gotune/pkg/provider"
	"github.com/3leaps/gotune/pkg/provider/file"
	"github.com/3leaps/gotune/pkg/provider/s3"
	"github.com/3leaps/gotune/pkg/registry"
	"github.com/3leaps/gotune/pkg/remote"
	"github.com/3leaps/gotune/pkg/sft"
	"github.com/3leaps/gotune/pkg/validate"
)

// newRemoteClient is replaced in tests.
var newRemoteClient = func(cfg *config.Config, logger *zap.Logger) remote.Client {
	return remote.NewFirectlClient(remote.Config{
		Binary:    cfg.Remote.Binary,
		AccountID: cfg.Remote.AccountID,
		RateLimit: cfg.Remote.RateLimit,
	}, nil, logger)
}

func layoutFor(cfg *config.Config) dataset.Layout {
	return dataset.Layout{Root: cfg.DataDir}
}

func newBuilder(cfg *config.Config, shardSize int, logger *zap.Logger) *dataset.Builder {
	conv := convert.NewRegistry(convert.Options{MaxChunkLength: cfg.Dataset.MaxChunkLength})
	v := validate.New(validate.Config{
		MinExamples:      cfg.Dataset.MinExamples,
		MaxContentLength: cfg.Dataset.MaxContentLength,
	})
	return dataset.NewBuilder(dataset.Config{
		ProcessedDir: layoutFor(cfg).ProcessedDir(),
		ShardSize:    shardSize,
	}, conv, v, logger)
}

func jobStore(cfg *config.Config) *jobs.Store {
	return jobs.NewStore(filepath.Join(cfg.DataDir, "jobs"))
}

func newPipeline(cfg *config.Config, logger *zap.Logger, observe func(context.Context, sft.Outcome)) *sft.Pipeline {
	client := newRemoteClient(cfg, logger)
	orch := sft.New(sft.Config{
		PollInterval: cfg.Poll.Interval,
		MaxRetries:   cfg.Poll.MaxRetries,
		RetryBase:    cfg.Poll.RetryBase,
		RetryMax:     cfg.Poll.RetryMax,
		Provider:     remote.ProviderFireworks,
		Observe:      observe,
	}, client, registry.NewStore(cfg.RegistryPath), logger)

	return &sft.Pipeline{
		Builder:      newBuilder(cfg, cfg.Dataset.ShardSize, logger),
		Client:       client,
		Orchestrator: orch,
		RawDir:       layoutFor(cfg).RawDir(),
		Logger:       logger,
	}
}

// providerOpener resolves staging URIs to storage providers.
func providerOpener(cfg *config.Config) dataset.OpenProvider {
	return func(ctx context.Context, uri *provider.ObjectURI) (provider.Provider, error) {
		switch uri.Provider {
		case provider.ProviderS3:
			return s3.New(ctx, s3.Config{
				Bucket:         uri.Bucket,
				Region:         cfg.S3.Region,
				Endpoint:       cfg.S3.Endpoint,
				Profile:        cfg.S3.Profile,
				ForcePathStyle: cfg.S3.ForcePathStyle,
				DisableIMDS:    cfg.S3.DisableIMDS,
			})
		case provider.ProviderFile:
			return file.New(file.Config{BaseDir: uri.Bucket})
		}
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupportedProvider, uri.Provider)
	}
}
