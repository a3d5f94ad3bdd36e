package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/observability"
	"github.com/3leaps/gotune/pkg/manifest"
	"github.com/3leaps/gotune/pkg/output"
	"github.com/3leaps/gotune/pkg/params"
	"github.com/3leaps/gotune/pkg/remote"
	"github.com/3leaps/gotune/pkg/sft"
)

var (
	trainName             string
	trainDatasetName      string
	trainDatasetID        string
	trainBaseModel        string
	trainOutputModel      string
	trainLearningRate     float64
	trainEpochs           int
	trainBatchSize        string
	trainEarlyStop        bool
	trainMaxContextLength int
	trainTurbo            bool
	trainRank             int
	trainAlpha            int
	trainDropout          float64
	trainTargetModules    []string
	trainJob              string
	trainJSON             bool
	trainEvents           string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Build a dataset, upload it and run a LoRA SFT job",
	Long: `Build the named dataset, upload the packed file to the training provider,
launch a supervised fine-tuning job and poll it until it finishes. A completed
job is recorded in the model registry under --name.

Each job is tracked under <data_dir>/jobs/<job_id>/job.json. With --events
every state change is also written as one JSON line.

Parameters come from flags, a manifest (--job), or both; flags set on the
command line override manifest values.

The command exits non-zero when the job fails or is cancelled. Interrupting
the command stops polling but leaves the remote job running.

Examples:
  gotune train --name support-v1 --dataset_name support \
      --base_model accounts/fireworks/models/llama-v3p1-8b-instruct \
      --output_model support-v1 --epochs 2 --batch_size max

  gotune train --job train.yaml --epochs 3

  gotune train --job train.yaml --events events.jsonl`,
	Args: cobra.ArbitraryArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	f := trainCmd.Flags()
	f.StringVar(&trainName, "name", "", "Registry name for the trained model")
	f.StringVar(&trainDatasetName, "dataset_name", "", "Staged dataset to build and upload")
	f.StringVar(&trainDatasetID, "dataset_id", "", "Remote dataset id (default: dataset name)")
	f.StringVar(&trainBaseModel, "base_model", "", "Base model identifier")
	f.StringVar(&trainOutputModel, "output_model", "", "Output model identifier")
	f.Float64Var(&trainLearningRate, "learning_rate", params.DefaultLearningRate, "Learning rate")
	f.IntVar(&trainEpochs, "epochs", params.DefaultEpochs, "Training epochs")
	f.StringVar(&trainBatchSize, "batch_size", "max", "Batch size (positive integer or \"max\")")
	f.BoolVar(&trainEarlyStop, "early_stop", false, "Enable early stopping")
	f.IntVar(&trainMaxContextLength, "max_context_length", 0, "Max context length (0 uses the provider default)")
	f.BoolVar(&trainTurbo, "turbo", false, "Enable turbo mode")
	f.IntVar(&trainRank, "r", params.DefaultRank, "LoRA rank (4-64)")
	f.IntVar(&trainAlpha, "alpha", params.DefaultAlpha, "LoRA alpha")
	f.Float64Var(&trainDropout, "dropout", 0, "LoRA dropout in [0, 1)")
	f.StringSliceVar(&trainTargetModules, "target_modules", nil, "LoRA target modules (repeatable or comma separated)")
	f.StringVar(&trainJob, "job", "", "Training manifest (YAML or JSON)")
	f.BoolVar(&trainJSON, "json", false, "Print the outcome as JSON")
	f.StringVar(&trainEvents, "events", "", "Write JSONL job events to a file (\"-\" for stderr)")
}

// trainRequest is the merged manifest and flag input.
type trainRequest struct {
	Name        string
	DatasetName string
	Training    params.TrainingParams
	LoRA        params.LoRAParams
}

// resolveTrainRequest loads the manifest, if any, and applies explicitly
// set flags over it. Without a manifest the flag defaults apply.
func resolveTrainRequest(cmd *cobra.Command, args []string) (*trainRequest, error) {
	req := &trainRequest{LoRA: params.DefaultLoRAParams()}
	fromManifest := false
	if trainJob != "" {
		m, err := manifest.Load(trainJob)
		if err != nil {
			return nil, err
		}
		req.Name = m.Name
		req.DatasetName = m.DatasetName
		req.Training = m.Training
		req.LoRA = m.LoRA
		fromManifest = true
	}

	flags := cmd.Flags()
	set := func(name string) bool { return !fromManifest || flags.Changed(name) }

	if flags.Changed("name") {
		req.Name = trainName
	}
	if flags.Changed("dataset_name") {
		req.DatasetName = trainDatasetName
		if fromManifest && !flags.Changed("dataset_id") {
			req.Training.DatasetID = ""
		}
	}
	if flags.Changed("dataset_id") {
		req.Training.DatasetID = trainDatasetID
	}
	if flags.Changed("base_model") {
		req.Training.BaseModel = trainBaseModel
	}
	if flags.Changed("output_model") {
		req.Training.OutputModel = trainOutputModel
	}
	if set("learning_rate") {
		req.Training.LearningRate = trainLearningRate
	}
	if set("epochs") {
		req.Training.Epochs = trainEpochs
	}
	if set("batch_size") {
		bs, err := params.ParseBatchSize(trainBatchSize)
		if err != nil {
			return nil, err
		}
		req.Training.BatchSize = bs
	}
	if set("early_stop") {
		req.Training.EarlyStop = trainEarlyStop
	}
	if set("max_context_length") {
		req.Training.MaxContextLength = trainMaxContextLength
	}
	if set("turbo") {
		req.Training.Turbo = trainTurbo
	}
	if set("r") {
		req.LoRA.R = trainRank
	}
	if set("alpha") {
		req.LoRA.Alpha = trainAlpha
	}
	if set("dropout") {
		req.LoRA.Dropout = trainDropout
	}
	// Positionals continue a space separated --target_modules list.
	if len(args) > 0 && !flags.Changed("target_modules") {
		return nil, fmt.Errorf("%w: unexpected argument %q", params.ErrInvalidParams, args[0])
	}
	if flags.Changed("target_modules") {
		modules := append([]string{}, trainTargetModules...)
		req.LoRA.TargetModules = append(modules, args...)
	}

	var missing []string
	for flag, v := range map[string]string{
		"--name":         req.Name,
		"--dataset_name": req.DatasetName,
		"--base_model":   req.Training.BaseModel,
		"--output_model": req.Training.OutputModel,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, flag)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing required %s", params.ErrInvalidParams, strings.Join(missing, ", "))
	}
	return req, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}

	req, err := resolveTrainRequest(cmd, args)
	if err != nil {
		observability.CLILogger.Error("Invalid training request", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid training request", err)
	}

	events, closeEvents, err := openEvents(cmd, trainEvents)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to open events output", err)
	}
	defer closeEvents()

	tracker := newTrainTracker(jobStore(cfg), events, req, observability.CLILogger)
	pipeline := newPipeline(cfg, observability.CLILogger, tracker.observe)
	outcome, err := pipeline.Train(ctx, req.Name, req.DatasetName, req.Training, req.LoRA)
	if err != nil {
		if errors.Is(err, context.Canceled) && outcome != nil && outcome.JobID != "" {
			tracker.detach(outcome)
			tracker.finish(ctx, outcome, err, output.ErrCodeInterrupted)
			observability.CLILogger.Warn("Polling interrupted; the remote job keeps running",
				zap.String("job_id", outcome.JobID),
				zap.String("resume", "gotune status "+outcome.JobID))
			return exitError(foundry.ExitSignalInt, "Training interrupted", err)
		}
		tracker.finish(ctx, outcome, err, eventErrorCode(err))
		observability.CLILogger.Error("Training failed", zap.String("name", req.Name), zap.Error(err))
		return fail("Training failed", err)
	}
	tracker.finish(ctx, outcome, nil, "")

	if err := printOutcome(cmd, outcome); err != nil {
		return err
	}
	if !outcome.Succeeded() {
		return exitError(foundry.ExitExternalServiceUnavailable, "Training job did not complete",
			fmt.Errorf("job %s ended %s", outcome.JobID, outcome.State))
	}
	return nil
}

// openEvents returns a nil writer when path is empty.
func openEvents(cmd *cobra.Command, path string) (output.Writer, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return output.NewJSONLWriter(cmd.ErrOrStderr(), runID, remote.ProviderFireworks), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return output.NewJSONLWriter(f, runID, remote.ProviderFireworks), func() { _ = f.Close() }, nil
}

func eventErrorCode(err error) string {
	switch classify(err) {
	case foundry.ExitInvalidArgument, foundry.ExitFileNotFound:
		return output.ErrCodeInvalidInput
	case foundry.ExitExternalServiceUnavailable:
		return output.ErrCodeRemote
	}
	return output.ErrCodeInternal
}

func printOutcome(cmd *cobra.Command, o *sft.Outcome) error {
	out := cmd.OutOrStdout()
	if trainJSON {
		return writeJSON(out, o)
	}
	_, _ = fmt.Fprintf(out, "Job %s %s after %d poll(s)\n", o.JobID, o.State, o.Polls)
	if o.Entry != nil {
		_, _ = fmt.Fprintf(out, "Registered %s -> %s\n", o.Entry.Name, o.Entry.ModelID)
	}
	return nil
}
