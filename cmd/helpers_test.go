package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated working area with a config file pointing every
// path into a temp dir.
type testEnv struct {
	dir        string
	configPath string
}

func (e testEnv) path(name string) string { return filepath.Join(e.dir, name) }

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{dir: dir, configPath: filepath.Join(dir, "config.yaml")}
	content := fmt.Sprintf(`
logger:
  level: fatal
  log_file: %[1]s/fareprobe.log
models:
  date_path: %[1]s/models/date.json
  price_path: %[1]s/models/price.json
outcome:
  steps_csv: %[1]s/data/steps.csv
  prices_csv: %[1]s/data/prices.csv
training:
  price_samples: 200
  date_trees: 5
  price_trees: 5
artifacts:
  dir: %[1]s/artifacts
%[2]s`, dir, extra)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	return env
}

// run executes the root command with the test config and returns its stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
