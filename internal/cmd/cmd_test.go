package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/config"
	"github.com/3leaps/gotune/pkg/jobs"
	"github.com/3leaps/gotune/pkg/output"
	"github.com/3leaps/gotune/pkg/params"
	"github.com/3leaps/gotune/pkg/registry"
	"github.com/3leaps/gotune/pkg/remote"
)

// fakeRemote scripts job states; the last state repeats.
type fakeRemote struct {
	mu       sync.Mutex
	states   []remote.JobState
	polls    int
	uploads  []string
	launched []params.TrainingParams
	lora     []params.LoRAParams
}

func (f *fakeRemote) CreateDataset(_ context.Context, path, datasetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, datasetID)
	return nil
}

func (f *fakeRemote) LaunchSFT(_ context.Context, tp params.TrainingParams, lp params.LoRAParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, tp)
	f.lora = append(f.lora, lp)
	return "job-42", nil
}

func (f *fakeRemote) GetJobStatus(_ context.Context, jobID string) (*remote.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.states[min(f.polls, len(f.states)-1)]
	f.polls++
	return &remote.JobStatus{JobID: jobID, State: st, Raw: string(st)}, nil
}

// setup isolates configuration under a temp data dir and swaps in fake.
func setup(t *testing.T, fake *fakeRemote) string {
	t.Helper()
	home := t.TempDir()
	data := filepath.Join(t.TempDir(), "data")
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("GOTUNE_CONFIG", "")
	t.Setenv("GOTUNE_DATA_DIR", data)
	t.Setenv("GOTUNE_POLL_INTERVAL", "1ms")
	t.Setenv("GOTUNE_POLL_RETRY_BASE", "1ms")
	t.Setenv("GOTUNE_POLL_RETRY_MAX", "2ms")

	orig := newRemoteClient
	newRemoteClient = func(*config.Config, *zap.Logger) remote.Client { return fake }
	t.Cleanup(func() {
		newRemoteClient = orig
		appConfig = nil
	})
	return data
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeCSV(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	body := "user,assistant\n"
	for i := 0; i < rows; i++ {
		body += "question,answer\n"
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestStageBuildInspect(t *testing.T) {
	data := setup(t, &fakeRemote{})
	src := writeCSV(t, t.TempDir(), "tickets.csv", 3)

	out, err := run(t, "stage", "support", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Staged 1 file(s)")
	assert.FileExists(t, filepath.Join(data, "raw", "support", "tickets.csv"))

	out, err = run(t, "build", "support", "--json")
	require.NoError(t, err)
	var res struct {
		Paths    []string `json:"paths"`
		Examples int      `json:"examples"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Examples)
	assert.Equal(t, []string{filepath.Join(data, "processed", "support.jsonl")}, res.Paths)

	out, err = run(t, "inspect", "support", "--json")
	require.NoError(t, err)
	var sum DatasetSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 3, sum.Records)
	assert.Equal(t, 6, sum.Messages)
	assert.Equal(t, 3, sum.Roles["user"])
	assert.Equal(t, 3, sum.Roles["assistant"])
	assert.Equal(t, 3, sum.Sources["tickets.csv"])
}

func TestBuild_ShardSize(t *testing.T) {
	data := setup(t, &fakeRemote{})
	raw := filepath.Join(data, "raw", "faq")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	writeCSV(t, raw, "faq.csv", 5)

	out, err := run(t, "build", "faq", "--shard-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "5 examples")
	for _, name := range []string{"faq_0.jsonl", "faq_1.jsonl", "faq_2.jsonl"} {
		assert.FileExists(t, filepath.Join(data, "processed", name))
	}

	_, err = run(t, "inspect", "faq")
	require.NoError(t, err)
}

func TestBuild_Errors(t *testing.T) {
	data := setup(t, &fakeRemote{})

	_, err := run(t, "build", "missing")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, ExitCode(err))

	raw := filepath.Join(data, "raw", "tiny")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	writeCSV(t, raw, "tiny.csv", 2)
	_, err = run(t, "build", "tiny")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	assert.NoFileExists(t, filepath.Join(data, "processed", "tiny.jsonl"))

	_, err = run(t, "build", "../escape")
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
}

func TestStage_NothingMatched(t *testing.T) {
	setup(t, &fakeRemote{})
	_, err := run(t, "stage", "support", filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Equal(t, foundry.ExitFileNotFound, ExitCode(err))
}

func stageRaw(t *testing.T, data, name string, rows int) {
	t.Helper()
	raw := filepath.Join(data, "raw", name)
	require.NoError(t, os.MkdirAll(raw, 0o755))
	writeCSV(t, raw, name+".csv", rows)
}

func TestTrain_CompletedRegistersModel(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateRunning, remote.JobStateCompleted}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)

	out, err := run(t, "train",
		"--name", "support-v1",
		"--dataset_name", "support",
		"--base_model", "accounts/fireworks/models/llama-v3p1-8b-instruct",
		"--output_model", "support-lora",
		"--epochs", "2",
		"--batch_size", "16",
		"--target_modules", "q_proj,v_proj")
	require.NoError(t, err)
	assert.Contains(t, out, "Job job-42 completed after 2 poll(s)")
	assert.Contains(t, out, "Registered support-v1 -> support-lora")

	require.Len(t, fake.launched, 1)
	tp := fake.launched[0]
	assert.Equal(t, "support", tp.DatasetID)
	assert.Equal(t, 2, tp.Epochs)
	assert.Equal(t, 16, tp.BatchSize.Value())
	assert.Equal(t, []string{"q_proj", "v_proj"}, fake.lora[0].TargetModules)
	assert.Equal(t, []string{"support"}, fake.uploads)

	entries, err := registry.NewStore(filepath.Join(data, "registry.json")).List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "support-lora", entries[0].ModelID)
	assert.Equal(t, remote.ProviderFireworks, entries[0].Provider)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Base Model")
	assert.Contains(t, out, "support-v1")

	_, err = run(t, "train",
		"--name", "support-v1", "--dataset_name", "support",
		"--base_model", "b", "--output_model", "o")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	assert.ErrorIs(t, err, registry.ErrDuplicateName)
}

func TestTrain_TargetModulesSpaceSeparated(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)

	_, err := run(t, "train",
		"--name", "n", "--dataset_name", "support",
		"--target_modules", "q_proj", "v_proj",
		"--base_model", "b", "--output_model", "o")
	require.NoError(t, err)
	require.Len(t, fake.lora, 1)
	assert.Equal(t, []string{"q_proj", "v_proj"}, fake.lora[0].TargetModules)
}

func TestTrain_StrayArgumentRejected(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)

	_, err := run(t, "train", "extra",
		"--name", "n", "--dataset_name", "support",
		"--base_model", "b", "--output_model", "o")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	assert.Contains(t, err.Error(), `unexpected argument "extra"`)
	assert.Empty(t, fake.launched)
}

func TestTrain_ConfiguredShardSizeRejectsSplitDataset(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}}
	data := setup(t, fake)
	t.Setenv("GOTUNE_DATASET_SHARD_SIZE", "2")
	stageRaw(t, data, "support", 3)

	_, err := run(t, "train", "--name", "n", "--dataset_name", "support",
		"--base_model", "b", "--output_model", "o")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packed into 2 shards")
	assert.Empty(t, fake.uploads)
	assert.Empty(t, fake.launched)
}

func TestTrain_FailedJobExitsNonZero(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateFailed}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)

	out, err := run(t, "train", "--name", "n", "--dataset_name", "support",
		"--base_model", "b", "--output_model", "o", "--json")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCode(err))
	assert.Contains(t, out, `"state": "failed"`)
	assert.NoFileExists(t, filepath.Join(data, "registry.json"))
}

func TestTrain_MissingRequiredFlags(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}}
	setup(t, fake)

	_, err := run(t, "train", "--name", "n")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	assert.Contains(t, err.Error(), "--base_model, --dataset_name, --output_model")
	assert.Empty(t, fake.launched)

	_, err = run(t, "train", "--name", "n", "--dataset_name", "d",
		"--base_model", "b", "--output_model", "o", "--r", "128")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
	assert.Empty(t, fake.launched)
}

func TestTrain_ManifestWithFlagOverrides(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)

	manifestPath := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`version: "1.0"
name: from-manifest
dataset_name: support
training:
  base_model: base-m
  output_model: out-m
  epochs: 2
  learning_rate: 0.0002
lora:
  r: 16
  alpha: 32
`), 0o644))

	_, err := run(t, "train", "--job", manifestPath, "--epochs", "5", "--name", "overridden")
	require.NoError(t, err)

	require.Len(t, fake.launched, 1)
	tp := fake.launched[0]
	assert.Equal(t, 5, tp.Epochs)
	assert.InDelta(t, 0.0002, tp.LearningRate, 1e-12)
	assert.Equal(t, "base-m", tp.BaseModel)
	assert.Equal(t, 16, fake.lora[0].R)
	assert.Equal(t, 32, fake.lora[0].Alpha)

	entries, err := registry.NewStore(filepath.Join(data, "registry.json")).List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "overridden", entries[0].Name)
}

func TestTrain_InvalidManifest(t *testing.T) {
	setup(t, &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}})
	manifestPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte("version: \"1.0\"\nname: x\n"), 0o644))

	_, err := run(t, "train", "--job", manifestPath)
	require.Error(t, err)
	assert.Equal(t, foundry.ExitInvalidArgument, ExitCode(err))
}

func TestList_Empty(t *testing.T) {
	setup(t, &fakeRemote{})

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No models registered.")

	out, err = run(t, "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestStatus(t *testing.T) {
	setup(t, &fakeRemote{states: []remote.JobState{remote.JobStateRunning}})

	out, err := run(t, "status", "job-42")
	require.NoError(t, err)
	assert.Contains(t, out, "job-42")
	assert.Contains(t, out, "running")

	out, err = run(t, "status", "job-42", "--json")
	require.NoError(t, err)
	var st remote.JobStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, remote.JobStateRunning, st.State)
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")
	defer SetVersionInfo("dev", "unknown", "unknown")

	out, err := run(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["commit"])
}

func TestDoctor(t *testing.T) {
	setup(t, &fakeRemote{})
	orig := lookPath
	defer func() { lookPath = orig }()

	lookPath = func(file string) (string, error) { return "/usr/local/bin/" + file, nil }
	_, err := run(t, "doctor")
	require.NoError(t, err)

	lookPath = func(file string) (string, error) { return "", os.ErrNotExist }
	_, err = run(t, "doctor")
	require.Error(t, err)
	assert.Equal(t, foundry.ExitExternalServiceUnavailable, ExitCode(err))
}

func TestTrain_TracksJobAndWritesEvents(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateRunning, remote.JobStateCompleted}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)
	eventsPath := filepath.Join(t.TempDir(), "events.jsonl")

	_, err := run(t, "train", "--name", "tracked", "--dataset_name", "support",
		"--base_model", "b", "--output_model", "o", "--events", eventsPath)
	require.NoError(t, err)

	rec, err := jobs.NewStore(filepath.Join(data, "jobs")).Get("job-42")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, rec.State)
	assert.Equal(t, "tracked", rec.Name)
	assert.Equal(t, "support", rec.DatasetName)
	assert.Equal(t, 2, rec.Polls)
	assert.NotNil(t, rec.EndedAt)
	assert.Equal(t, os.Getpid(), rec.PID)

	raw, err := os.ReadFile(eventsPath)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	var types, states []string
	for _, line := range lines {
		var r output.Record
		require.NoError(t, json.Unmarshal(line, &r))
		types = append(types, r.Type)
		if r.Type == output.TypeJob {
			var j output.JobRecord
			require.NoError(t, json.Unmarshal(r.Data, &j))
			states = append(states, j.State)
		}
	}
	assert.Equal(t, []string{"submitted", "polling", "completed"}, states)
	assert.Equal(t, output.TypeSummary, types[len(types)-1])

	out, err := run(t, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "job-42")
	assert.Contains(t, out, "completed")

	out, err = run(t, "jobs", "--json")
	require.NoError(t, err)
	var listed []jobs.Record
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "tracked", listed[0].Name)
}

func TestTrain_FailedJobSummary(t *testing.T) {
	fake := &fakeRemote{states: []remote.JobState{remote.JobStateFailed}}
	data := setup(t, fake)
	stageRaw(t, data, "support", 3)
	eventsPath := filepath.Join(t.TempDir(), "events.jsonl")

	_, err := run(t, "train", "--name", "n", "--dataset_name", "support",
		"--base_model", "b", "--output_model", "o", "--events", eventsPath)
	require.Error(t, err)

	raw, err := os.ReadFile(eventsPath)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	var last output.Record
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &last))
	require.Equal(t, output.TypeSummary, last.Type)
	var sum output.SummaryRecord
	require.NoError(t, json.Unmarshal(last.Data, &sum))
	assert.Equal(t, "failed", sum.State)
	assert.Equal(t, "job-42", sum.JobID)
}

func TestJobs_Empty(t *testing.T) {
	setup(t, &fakeRemote{})

	out, err := run(t, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs tracked.")

	out, err = run(t, "jobs", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestStatus_SyncsLocalRecord(t *testing.T) {
	data := setup(t, &fakeRemote{states: []remote.JobState{remote.JobStateCompleted}})
	store := jobs.NewStore(filepath.Join(data, "jobs"))
	require.NoError(t, store.Write(&jobs.Record{JobID: "job-42", Name: "local", State: jobs.StateDetached}))

	out, err := run(t, "status", "job-42")
	require.NoError(t, err)
	assert.Contains(t, out, "local")

	rec, err := store.Get("job-42")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, rec.State)
	assert.NotNil(t, rec.EndedAt)
}
