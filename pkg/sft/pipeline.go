package sft

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/3leaps/gotune/pkg/dataset"
	"github.com/3leaps/gotune/pkg/params"
	"github.com/3leaps/gotune/pkg/remote"
)

// Pipeline is the end-to-end train flow: build, upload, run.
type Pipeline struct {
	Builder      *dataset.Builder
	Client       remote.Client
	Orchestrator *Orchestrator

	// RawDir holds one subdirectory of raw files per dataset.
	RawDir string

	Logger *zap.Logger
}

// Train builds <RawDir>/<datasetName>, uploads it as tp.DatasetID (the
// dataset name when empty) and runs the job. Parameters and the model name
// are checked before anything is built.
func (p *Pipeline) Train(ctx context.Context, name, datasetName string, tp params.TrainingParams, lp params.LoRAParams) (*Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := dataset.ValidateName(datasetName); err != nil {
		return nil, err
	}
	if tp.DatasetID == "" {
		tp.DatasetID = datasetName
	}
	if err := tp.WithDefaults().Validate(); err != nil {
		return nil, err
	}
	if err := lp.WithDefaults().Validate(); err != nil {
		return nil, err
	}
	if err := p.Orchestrator.CheckName(name); err != nil {
		return nil, err
	}

	res, err := p.Builder.Build(ctx, filepath.Join(p.RawDir, datasetName))
	if err != nil {
		return nil, fmt.Errorf("build dataset %s: %w", datasetName, err)
	}
	if len(res.Paths) != 1 {
		return nil, fmt.Errorf("dataset %s packed into %d shards; upload needs a single file", datasetName, len(res.Paths))
	}

	logger.Info("Uploading dataset", zap.String("dataset_id", tp.DatasetID), zap.String("path", res.Paths[0]))
	if err := p.Client.CreateDataset(ctx, res.Paths[0], tp.DatasetID); err != nil {
		return nil, fmt.Errorf("upload dataset %s: %w", tp.DatasetID, err)
	}

	return p.Orchestrator.Run(ctx, name, tp, lp)
}
