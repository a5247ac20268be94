package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/runner"
	"go.uber.org/zap"
)

// Exit codes for runs that did not end on their own.
const (
	exitTimedOut  = 124
	exitLimit     = 125
	exitCancelled = 130
)

var (
	runTimeout     time.Duration
	runMaxLines    int
	runEnv         []string
	runInterpreter string
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run <name> [args...]",
	Short: "Run a script",
	Long: `Run a script, given as <repository>.<script> or a bare script name.

Arguments after the name are passed to the script unchanged, so flags for
run itself must come before the name. The script's
entry point is started with the interpreter matching its extension (.py,
.sh, .js/.mjs, .ps1) in the current directory, with OS_TYPE and WORK_DIR set
in its environment. Output is streamed as it is produced.

--timeout and --max-lines stop the script when exceeded: it is asked to
terminate and killed if it has not exited two seconds later. Defaults come
from the run section of the config file.

The command exits with the script's exit code.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Stop the script after this long (e.g. 30s, 5m)")
	runCmd.Flags().IntVar(&runMaxLines, "max-lines", 0, "Stop the script after this many lines on stdout or stderr")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "Extra environment variable KEY=VALUE (repeatable)")
	runCmd.Flags().StringVar(&runInterpreter, "interpreter", "", "Interpreter to use instead of the extension default")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run result as JSON instead of streaming output")
	runCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(runCmd)
}

// runOutput is the JSON form of a run result.
type runOutput struct {
	RunID         string   `json:"run_id"`
	Script        string   `json:"script"`
	ExitCode      *int     `json:"exit_code"`
	Stdout        []string `json:"stdout"`
	Stderr        []string `json:"stderr"`
	TimedOut      bool     `json:"timed_out"`
	KilledByLimit bool     `json:"killed_by_limit"`
	Cancelled     bool     `json:"cancelled"`
	DurationMS    int64    `json:"duration_ms"`
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := parseEnvArgs(runEnv)
	if err != nil {
		return err
	}

	s, err := resolveScript(current.catalog, args[0])
	if err != nil {
		return err
	}

	runCfg := current.cfg.Run
	req := runner.Request{
		EntryPoint: s.EntryPointPath(),
		Args:       args[1:],
		Timeout:    runCfg.Timeout,
		MaxLines:   runCfg.MaxLines,
		Env:        env,
	}
	if cmd.Flags().Changed("timeout") {
		req.Timeout = runTimeout
	}
	if cmd.Flags().Changed("max-lines") {
		req.MaxLines = runMaxLines
	}

	r := runner.New(current.log)
	r.Interpreter = runCfg.Interpreter
	if runInterpreter != "" {
		r.Interpreter = runInterpreter
	}
	r.Stdout = cmd.OutOrStdout()
	r.Stderr = cmd.ErrOrStderr()
	if runJSON {
		r.Stdout = io.Discard
		r.Stderr = io.Discard
	}

	current.log.Debug("running script", zap.String("script", s.QualifiedName()), zap.Strings("args", req.Args))
	res, err := r.Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("running %s: %w", s.QualifiedName(), err)
	}

	if runJSON {
		if err := printJSON(cmd.OutOrStdout(), runOutput{
			RunID:         res.RunID,
			Script:        s.QualifiedName(),
			ExitCode:      res.ExitCode,
			Stdout:        nonNil(res.StdoutLines),
			Stderr:        nonNil(res.StderrLines),
			TimedOut:      res.TimedOut,
			KilledByLimit: res.KilledByLimit,
			Cancelled:     res.Cancelled,
			DurationMS:    res.Duration.Milliseconds(),
		}); err != nil {
			return err
		}
	}

	return runExitError(s.QualifiedName(), req, res)
}

// runExitError converts a run result into the command's exit status.
func runExitError(name string, req runner.Request, res *runner.Result) error {
	switch {
	case res.TimedOut:
		return &exitError{code: exitTimedOut, msg: fmt.Sprintf("%s timed out after %s", name, req.Timeout)}
	case res.KilledByLimit:
		return &exitError{code: exitLimit, msg: fmt.Sprintf("%s stopped after %d lines of output", name, req.MaxLines)}
	case res.Cancelled:
		return &exitError{code: exitCancelled, msg: fmt.Sprintf("%s cancelled", name)}
	case res.ExitCode == nil:
		return &exitError{code: 1, msg: fmt.Sprintf("%s could not be reaped", name)}
	case *res.ExitCode < 0:
		// Killed by a signal; follow the shell convention.
		return &exitError{code: 128 - *res.ExitCode, silent: true}
	case *res.ExitCode > 0:
		return &exitError{code: *res.ExitCode, silent: true}
	}
	return nil
}

// parseEnvArgs parses --env KEY=VALUE flags into a map.
func parseEnvArgs(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env format %q: expected KEY=VALUE", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid env format %q: key cannot be empty", pair)
		}
		result[key] = value
	}
	return result, nil
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
