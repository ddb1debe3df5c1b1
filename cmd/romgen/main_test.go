package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"romgen/internal/config"
	"romgen/internal/derive"
	"romgen/internal/derive/derivetest"
	"romgen/internal/emit"
	"romgen/internal/pipeline"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// resetFlags returns every flag in the command tree to its default so
// successive Execute calls do not see each other's values.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useFakeDeriver(t *testing.T) *derivetest.Fake {
	t.Helper()
	fake := &derivetest.Fake{}
	orig := newDeriver
	newDeriver = func(*config.Config) (derive.Deriver, error) { return fake, nil }
	t.Cleanup(func() { newDeriver = orig })
	return fake
}

type testEnv struct {
	dir    string
	config string
	outDir string
}

func newTestEnv(t *testing.T, edit func(*config.Config)) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:    dir,
		config: filepath.Join(dir, "romgen.yaml"),
		outDir: filepath.Join(dir, "Matlabfiles"),
	}
	c := config.DefaultConfig()
	c.Run.OutputDirectory = env.outDir
	c.Run.Overwrite = "never"
	c.Deriver.CachePath = filepath.Join(dir, "cache.db")
	c.Logging.Level = "error"
	if edit != nil {
		edit(c)
	}
	require.NoError(t, c.Save(env.config))
	return env
}

func TestGenerate_CreatesArtifact(t *testing.T) {
	fake := useFakeDeriver(t)
	env := newTestEnv(t, nil)

	out, err := execute(t, "generate", "--config", env.config)
	require.NoError(t, err)

	path := filepath.Join(env.outDir, "hk3_rhs.m")
	assert.Contains(t, out, "Created "+path)
	assert.Contains(t, out, "Time = ")
	assert.FileExists(t, path)
	assert.Equal(t, 2, fake.CallCount())
}

func TestGenerate_DeclinedIsCleanExit(t *testing.T) {
	useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config)
	require.NoError(t, err)

	out, err := execute(t, "generate", "--config", env.config, "--overwrite", "never")
	require.NoError(t, err)
	assert.Equal(t, 0, pipeline.ExitCode(err))
	assert.Contains(t, out, "System already constructed")
	assert.Contains(t, out, "not overwritten")
}

func TestGenerate_CachedSecondRun(t *testing.T) {
	fake := useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config)
	require.NoError(t, err)
	require.Equal(t, 2, fake.CallCount())

	out, err := execute(t, "generate", "--config", env.config, "--overwrite", "always")
	require.NoError(t, err)
	assert.Contains(t, out, "Replaced")
	assert.Equal(t, 2, fake.CallCount(), "second run should be served from the cache")
}

func TestGenerate_FractionalModelIsConfigError(t *testing.T) {
	fake := useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config, "--model", "1.5")
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
	assert.Zero(t, fake.CallCount())
}

func TestGenerate_NegativeModelIsConfigError(t *testing.T) {
	fake := useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config, "--model=-1")
	require.Error(t, err)

	var cfgErr *pipeline.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 2, pipeline.ExitCode(err))
	assert.Zero(t, fake.CallCount())
	assert.NoDirExists(t, env.outDir)
}

func TestGenerate_ExplicitModesFromFlags(t *testing.T) {
	useFakeDeriver(t)
	env := newTestEnv(t, nil)

	out, err := execute(t, "generate", "--config", env.config,
		"--psi", "1,1", "--psi", "1,2", "--theta", "0,2", "--theta", "1,1")
	require.NoError(t, err)
	assert.Contains(t, out, "hk4_rhs.m")

	data, err := os.ReadFile(filepath.Join(env.outDir, "hk4_rhs.m"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "function f = hk4_rhs(x,a,s,k,R)")
}

func TestGenerate_BadModeFlag(t *testing.T) {
	useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config, "--psi", "one,1")
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
}

func TestGenerate_NoDeriverConfigured(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoDeriverCommand)
	assert.Equal(t, 2, pipeline.ExitCode(err))
}

func TestBatch_HierarchyFile(t *testing.T) {
	fake := useFakeDeriver(t)
	dir := t.TempDir()
	table := filepath.Join(dir, "hierarchy.yaml")
	require.NoError(t, os.WriteFile(table, []byte(`models:
  2:
    p_modes: [[1, 1], [1, 3]]
    t_modes: [[0, 2], [1, 1], [0, 4], [1, 3]]
`), 0644))
	env := newTestEnv(t, func(c *config.Config) {
		c.Hierarchy.File = table
	})

	out, err := execute(t, "batch", "--config", env.config, "--from", "1", "--to", "2", "--jobs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "model 1: created")
	assert.Contains(t, out, "model 2: created")
	assert.FileExists(t, filepath.Join(env.outDir, "hk3_rhs.m"))
	assert.FileExists(t, filepath.Join(env.outDir, "hk6_rhs.m"))
	assert.Equal(t, 4, fake.CallCount())

	// Unknown models fail without stopping the rest.
	out, err = execute(t, "batch", "--config", env.config, "--from", "1", "--to", "3")
	require.Error(t, err)
	assert.Equal(t, 1, pipeline.ExitCode(err))
	assert.Contains(t, out, "model 1: declined")
	assert.Contains(t, out, "model 3: FAILED")
}

func TestBatch_InvalidRange(t *testing.T) {
	useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "batch", "--config", env.config, "--from", "3", "--to", "1")
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
}

func TestHistory_ListsRuns(t *testing.T) {
	useFakeDeriver(t)
	env := newTestEnv(t, nil)

	out, err := execute(t, "history", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	_, err = execute(t, "generate", "--config", env.config)
	require.NoError(t, err)
	_, err = execute(t, "generate", "--config", env.config, "--model=7")
	require.Error(t, err)

	out, err = execute(t, "history", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "hk3_rhs.m")
}

func TestHistory_DisabledWithoutCache(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Deriver.CachePath = ""
	})

	out, err := execute(t, "history", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "disabled")
}

func TestCache_StatsAndPurge(t *testing.T) {
	useFakeDeriver(t)
	env := newTestEnv(t, nil)

	_, err := execute(t, "generate", "--config", env.config)
	require.NoError(t, err)

	out, err := execute(t, "cache", "stats", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 2")

	out, err = execute(t, "cache", "purge", "--config", env.config, "--older-than", "24h")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0")

	out, err = execute(t, "cache", "purge", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgen.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Run.OutputDirectory, loaded.Run.OutputDirectory)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := execute(t, "config", "show", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "mode_selection: hierarchy")
	assert.Contains(t, out, env.outDir)
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "romgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  hierarchy_index: 1.5\n"), 0644))

	_, err := execute(t, "config", "show", "--config", path)
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
}

func TestModes(t *testing.T) {
	env := newTestEnv(t, nil)

	out, err := execute(t, "modes", "--config", env.config, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "hk3_rhs")
	assert.Contains(t, out, "| x(1) | p1,1 | `psi_1_1` |")
	assert.Contains(t, out, "| x(3) | t1,1 | `theta_1_1` |")

	out, err = execute(t, "modes", "--config", env.config, "--plain", "--theta", "1,1", "--theta", "0,2", "--psi", "1,1")
	require.NoError(t, err)
	assert.Contains(t, out, "| x(2) | t0,2 | `theta_0_2` |", "explicit modes are sorted")

	out, err = execute(t, "modes", "--config", env.config, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "3 modes")

	_, err = execute(t, "modes", "--config", env.config, "--model=0")
	assert.Equal(t, 2, pipeline.ExitCode(err))
}

func TestGenerate_DeriverChangeBypassesCache(t *testing.T) {
	fake := useFakeDeriver(t)
	env := newTestEnv(t, func(c *config.Config) {
		c.Deriver.Command = []string{"derive-v1"}
	})

	_, err := execute(t, "generate", "--config", env.config)
	require.NoError(t, err)
	require.Equal(t, 2, fake.CallCount())

	c, err := config.Load(env.config)
	require.NoError(t, err)
	c.Deriver.Command = []string{"derive-v2"}
	require.NoError(t, c.Save(env.config))

	_, err = execute(t, "generate", "--config", env.config, "--overwrite", "always")
	require.NoError(t, err)
	assert.Equal(t, 4, fake.CallCount(), "a new deriver command must not reuse cached expressions")

	out, err := execute(t, "cache", "stats", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 4")
}

func TestGenerate_RejectedOptionsCreateNoStore(t *testing.T) {
	fake := useFakeDeriver(t)
	env := newTestEnv(t, nil)
	cacheDir := filepath.Join(env.dir, "fresh")
	c, err := config.Load(env.config)
	require.NoError(t, err)
	c.Deriver.CachePath = filepath.Join(cacheDir, "cache.db")
	require.NoError(t, c.Save(env.config))

	_, err = execute(t, "generate", "--config", env.config, "--model=-1")
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
	assert.Zero(t, fake.CallCount())
	assert.NoDirExists(t, cacheDir)
	assert.NoDirExists(t, env.outDir)
}

func TestBatch_RejectedOptionsCreateNoStore(t *testing.T) {
	useFakeDeriver(t)
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "fresh", "cache.db")
	env := newTestEnv(t, func(c *config.Config) {
		c.Deriver.CachePath = cachePath
		c.Run.OutputDirectory = ""
	})

	_, err := execute(t, "batch", "--config", env.config, "--from", "1", "--to", "1")
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
	assert.NoFileExists(t, cachePath)
}

func TestWatchRun_ReopensStorePerRun(t *testing.T) {
	logger = zap.NewNop()
	fake := useFakeDeriver(t)
	dir := t.TempDir()

	c := config.DefaultConfig()
	c.Run.OutputDirectory = filepath.Join(dir, "Matlabfiles")
	c.Deriver.CachePath = filepath.Join(dir, "first.db")

	res, err := watchRun(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, emit.Created, res.Outcome)
	assert.FileExists(t, c.Deriver.CachePath)

	// A changed cache path is honoured by the next run.
	c.Deriver.CachePath = filepath.Join(dir, "second.db")
	res, err = watchRun(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, emit.Replaced, res.Outcome)
	assert.FileExists(t, c.Deriver.CachePath)
	assert.Equal(t, 4, fake.CallCount())

	c.Run.HierarchyIndex = -1
	c.Deriver.CachePath = filepath.Join(dir, "third.db")
	_, err = watchRun(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, 2, pipeline.ExitCode(err))
	assert.NoFileExists(t, c.Deriver.CachePath)
}
