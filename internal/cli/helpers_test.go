package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/descriptor"
)

// testEnv is an isolated tutils home with its own config file.
type testEnv struct {
	home    string
	cfgPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("TUTILS_HOME", home)
	env := &testEnv{home: home, cfgPath: filepath.Join(home, "config.yaml")}

	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Repositories = nil
	if err := config.Save(env.cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	return env
}

// addRepo writes a local repository named name with one shell script per
// entry of scripts (script name to body) and adds it to the config.
func (e *testEnv) addRepo(t *testing.T, name string, scripts map[string]string, order ...string) string {
	t.Helper()
	dir := filepath.Join(e.home, "repos", name)
	repo := &descriptor.Repository{Name: name, Scripts: order}
	if err := descriptor.WriteRepository(filepath.Join(dir, descriptor.IndexFileName), repo); err != nil {
		t.Fatal(err)
	}
	for _, id := range order {
		s := &descriptor.Script{
			Name:        id,
			Version:     "1.0.0",
			Description: id + " script",
			EntryPoint:  "main.sh",
			SourceFiles: []string{"main.sh"},
		}
		if err := descriptor.WriteScript(filepath.Join(dir, id, descriptor.IndexFileName), s); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, id, "main.sh"), []byte(scripts[id]+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := config.Load(e.cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err = cfg.WithRepository(config.RepoEntry{Path: dir, Type: config.TypeLocal})
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Save(e.cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	return dir
}

// run executes the root command with args and returns stdout, stderr and
// the command error.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	current = nil

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag of cmd and its children to its default,
// since command flags are package-level variables.
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

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on Windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}
