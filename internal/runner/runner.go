package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod is how long a terminated child gets to exit before it
// is killed.
const DefaultGracePeriod = 2 * time.Second

// DefaultStderrPrefix marks echoed stderr lines.
const DefaultStderrPrefix = "[stderr] "

// maxLineSize bounds a single recorded output line.
const maxLineSize = 1024 * 1024

// Runner spawns script entry points. The zero value is usable: output is
// echoed to os.Stdout/os.Stderr and the child runs in the current directory.
type Runner struct {
	// Interpreter overrides the extension-based interpreter lookup.
	Interpreter string
	// WorkDir is the child's working directory and the WORK_DIR value.
	WorkDir string
	// Stdout and Stderr receive every line as it is read, from separate
	// goroutines.
	Stdout io.Writer
	Stderr io.Writer
	// StderrPrefix is prepended to echoed stderr lines.
	StderrPrefix string
	// GracePeriod is the wait between terminate and kill, and the bound on
	// draining the output streams after the child exits.
	GracePeriod time.Duration

	log *logger.Logger
}

// New creates a Runner that records the current working directory.
func New(log *logger.Logger) *Runner {
	wd, _ := os.Getwd()
	return &Runner{
		WorkDir:      wd,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		StderrPrefix: DefaultStderrPrefix,
		GracePeriod:  DefaultGracePeriod,
		log:          logger.OrNop(log),
	}
}

// Request describes one run.
type Request struct {
	EntryPoint string
	Args       []string
	// Timeout bounds the run's wall-clock time; zero means no limit.
	Timeout time.Duration
	// MaxLines bounds the lines read from each stream; zero means no limit.
	MaxLines int
	// Env is applied on top of the inherited environment.
	Env map[string]string
}

// Result describes how a run ended. ExitCode is nil only when the child
// could not be reaped; a child ended by a signal reports the negated signal
// number.
type Result struct {
	RunID         string
	PID           int
	ExitCode      *int
	StdoutLines   []string
	StderrLines   []string
	TimedOut      bool
	KilledByLimit bool
	Cancelled     bool
	Duration      time.Duration
}

// Run spawns the entry point and blocks until it has finished or been
// stopped. Only spawn failures are returned as errors; everything that
// happens after the child started is reported in the Result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if _, err := os.Stat(req.EntryPoint); err != nil {
		return nil, errs.New(errs.ErrNotFound, req.EntryPoint, nil)
	}

	res := &Result{RunID: uuid.NewString()}
	log := logger.OrNop(r.log).WithFields(
		zap.String("run_id", res.RunID),
		zap.String("entry_point", req.EntryPoint),
	)

	name, args := Command(r.Interpreter, req.EntryPoint, req.Args)
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("resolving interpreter %q: %w", name, err)
	}

	workDir := r.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = workDir
	cmd.Env = buildEnv(os.Environ(), workDir, req.Env)
	setProcGroup(cmd)

	// Own the read ends so Wait never closes them under the readers.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	log.Debug("starting script", zap.String("program", name), zap.Strings("args", args))
	startErr := cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, fmt.Errorf("starting %s: %w", req.EntryPoint, startErr)
	}
	res.PID = cmd.Process.Pid

	limitHit := make(chan struct{})
	var limitOnce sync.Once
	requestStop := func() {
		limitOnce.Do(func() { close(limitHit) })
	}

	var g errgroup.Group
	g.Go(func() error {
		res.StdoutLines = readLines(stdoutR, r.stdout(), "", req.MaxLines, requestStop)
		return nil
	})
	g.Go(func() error {
		res.StderrLines = readLines(stderrR, r.stderr(), r.StderrPrefix, req.MaxLines, requestStop)
		return nil
	})

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	reaped := false
	select {
	case <-waitDone:
		reaped = true
	case <-timeout:
		res.TimedOut = true
		log.Warn("script timed out", zap.Duration("timeout", req.Timeout))
	case <-limitHit:
		log.Warn("script output reached the line limit", zap.Int("max_lines", req.MaxLines))
	case <-ctx.Done():
		res.Cancelled = true
		log.Warn("script cancelled", zap.Error(ctx.Err()))
	}
	if !reaped {
		reaped = r.stop(res.PID, waitDone, log)
	}

	r.joinReaders(&g, res.PID, log, stdoutR, stderrR)

	select {
	case <-limitHit:
		res.KilledByLimit = true
	default:
	}

	if reaped {
		res.ExitCode = exitCode(cmd.ProcessState)
	}
	res.Duration = time.Since(start)

	fields := []zap.Field{
		zap.Duration("duration", res.Duration),
		zap.Bool("timed_out", res.TimedOut),
		zap.Bool("killed_by_limit", res.KilledByLimit),
	}
	if res.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *res.ExitCode))
	}
	log.Debug("script finished", fields...)
	return res, nil
}

// stop escalates terminate, grace period, kill. It reports whether the child
// was reaped.
func (r *Runner) stop(pid int, waitDone <-chan error, log *logger.Logger) bool {
	grace := r.grace()

	if err := terminateProcessGroup(pid); err != nil {
		log.Debug("terminate failed", zap.Int("pid", pid), zap.Error(err))
	}
	select {
	case <-waitDone:
		return true
	case <-time.After(grace):
	}

	log.Warn("script ignored terminate, killing", zap.Int("pid", pid), zap.Duration("grace", grace))
	if err := killProcessGroup(pid); err != nil {
		log.Debug("kill failed", zap.Int("pid", pid), zap.Error(err))
	}
	select {
	case <-waitDone:
		return true
	case <-time.After(grace):
		log.Error("script could not be reaped", zap.Int("pid", pid))
		return false
	}
}

// joinReaders waits for both readers. Processes still holding the pipes after
// the grace period are killed and the pipes are closed so the readers return.
func (r *Runner) joinReaders(g *errgroup.Group, pid int, log *logger.Logger, pipes ...*os.File) {
	joined := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(r.grace()):
		log.Warn("output streams still open after exit, closing")
		_ = killProcessGroup(pid)
		for _, p := range pipes {
			_ = p.Close()
		}
		<-joined
	}
	for _, p := range pipes {
		_ = p.Close()
	}
}

// readLines reads src line by line, echoing each line to w. Lines longer than
// maxLineSize are truncated and the rest of the line is discarded, so the
// child never blocks on a full pipe. When limit is positive and reached it
// calls onLimit and stops reading.
func readLines(src io.Reader, w io.Writer, prefix string, limit int, onLimit func()) []string {
	var lines []string
	br := bufio.NewReaderSize(src, 64*1024)
	var buf []byte
	for {
		frag, more, err := br.ReadLine()
		if err == nil {
			if room := maxLineSize - len(buf); room > 0 {
				buf = append(buf, frag[:min(len(frag), room)]...)
			}
			if more {
				continue
			}
		} else if len(buf) == 0 {
			return lines
		}

		line := string(buf)
		buf = buf[:0]
		lines = append(lines, line)
		fmt.Fprintln(w, prefix+line)
		if limit > 0 && len(lines) >= limit {
			onLimit()
			return lines
		}
		if err != nil {
			return lines
		}
	}
}

func (r *Runner) grace() time.Duration {
	if r.GracePeriod > 0 {
		return r.GracePeriod
	}
	return DefaultGracePeriod
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}
