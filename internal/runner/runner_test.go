package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tutils-dev/tutils/internal/errs"
)

// newTestRunner returns a runner that captures output, working in a temp dir.
func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on Windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var stdout, stderr bytes.Buffer
	r := New(nil)
	r.WorkDir = t.TempDir()
	r.Stdout = &stdout
	r.Stderr = &stderr
	r.GracePeriod = 500 * time.Millisecond
	return r, &stdout, &stderr
}

// writeScript writes a shell entry point and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.sh")
	if err := os.WriteFile(path, []byte(body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Completed(t *testing.T) {
	r, stdout, stderr := newTestRunner(t)
	script := writeScript(t, `echo "args: $@"
echo oops 1>&2
echo done`)

	res, err := r.Run(context.Background(), Request{EntryPoint: script, Args: []string{"a", "b c"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0", res.ExitCode)
	}
	if want := []string{"args: a b c", "done"}; strings.Join(res.StdoutLines, "|") != strings.Join(want, "|") {
		t.Errorf("StdoutLines = %q, want %q", res.StdoutLines, want)
	}
	if len(res.StderrLines) != 1 || res.StderrLines[0] != "oops" {
		t.Errorf("StderrLines = %q, want [oops]", res.StderrLines)
	}
	if stdout.String() != "args: a b c\ndone\n" {
		t.Errorf("echoed stdout = %q", stdout.String())
	}
	if stderr.String() != DefaultStderrPrefix+"oops\n" {
		t.Errorf("echoed stderr = %q", stderr.String())
	}
	if res.TimedOut || res.KilledByLimit || res.Cancelled {
		t.Errorf("unexpected flags: %+v", res)
	}
	if res.RunID == "" {
		t.Error("RunID should be set")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r, _, _ := newTestRunner(t)
	script := writeScript(t, "echo failing\nexit 3")

	res, err := r.Run(context.Background(), Request{EntryPoint: script})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Errorf("ExitCode = %v, want 3", res.ExitCode)
	}
}

func TestRun_Environment(t *testing.T) {
	r, _, _ := newTestRunner(t)
	script := writeScript(t, `echo "$OS_TYPE"
echo "$WORK_DIR"
pwd
echo "$GREETING"`)

	res, err := r.Run(context.Background(), Request{
		EntryPoint: script,
		Env:        map[string]string{"GREETING": "hello"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.StdoutLines) != 4 {
		t.Fatalf("StdoutLines = %q, want 4 lines", res.StdoutLines)
	}
	if res.StdoutLines[0] != OSType() {
		t.Errorf("OS_TYPE = %q, want %q", res.StdoutLines[0], OSType())
	}
	if res.StdoutLines[1] != r.WorkDir {
		t.Errorf("WORK_DIR = %q, want %q", res.StdoutLines[1], r.WorkDir)
	}
	wantWd, _ := filepath.EvalSymlinks(r.WorkDir)
	gotWd, _ := filepath.EvalSymlinks(res.StdoutLines[2])
	if gotWd != wantWd {
		t.Errorf("child cwd = %q, want %q", gotWd, wantWd)
	}
	if res.StdoutLines[3] != "hello" {
		t.Errorf("GREETING = %q, want hello", res.StdoutLines[3])
	}
}

func TestRun_Timeout(t *testing.T) {
	r, _, _ := newTestRunner(t)
	script := writeScript(t, "sleep 10")

	start := time.Now()
	res, err := r.Run(context.Background(), Request{EntryPoint: script, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, want well under the sleep duration", elapsed)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if res.KilledByLimit {
		t.Error("KilledByLimit = true, want false")
	}
	if res.ExitCode == nil {
		t.Fatal("ExitCode = nil, want a value")
	}
	assertGone(t, res.PID)
}

func TestRun_TimeoutEscalatesToKill(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.GracePeriod = 200 * time.Millisecond
	script := writeScript(t, "trap '' TERM\nsleep 10")

	res, err := r.Run(context.Background(), Request{EntryPoint: script, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if res.ExitCode == nil || *res.ExitCode != -9 {
		t.Errorf("ExitCode = %v, want -9", res.ExitCode)
	}
	assertGone(t, res.PID)
}

func TestRun_LineLimit(t *testing.T) {
	r, stdout, _ := newTestRunner(t)
	script := writeScript(t, `i=0
while [ $i -lt 100 ]; do
  echo "line $i"
  i=$((i+1))
done
sleep 10`)

	res, err := r.Run(context.Background(), Request{EntryPoint: script, MaxLines: 3})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.KilledByLimit {
		t.Error("KilledByLimit = false, want true")
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
	if len(res.StdoutLines) > 3 {
		t.Errorf("got %d stdout lines, want at most 3", len(res.StdoutLines))
	}
	if n := strings.Count(stdout.String(), "\n"); n > 3 {
		t.Errorf("echoed %d lines, want at most 3", n)
	}
	assertGone(t, res.PID)
}

func TestRun_StderrLineLimit(t *testing.T) {
	r, _, stderr := newTestRunner(t)
	script := writeScript(t, `i=0
while [ $i -lt 100 ]; do
  echo "err $i" 1>&2
  i=$((i+1))
done
sleep 10`)

	res, err := r.Run(context.Background(), Request{EntryPoint: script, MaxLines: 3})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.KilledByLimit {
		t.Error("KilledByLimit = false, want true")
	}
	if len(res.StderrLines) != 3 {
		t.Errorf("got %d stderr lines, want 3", len(res.StderrLines))
	}
	if len(res.StdoutLines) != 0 {
		t.Errorf("StdoutLines = %q, want none", res.StdoutLines)
	}
	if n := strings.Count(stderr.String(), DefaultStderrPrefix); n != 3 {
		t.Errorf("echoed %d stderr lines, want 3", n)
	}
	assertGone(t, res.PID)
}

func TestRun_OverlongLine(t *testing.T) {
	r, _, _ := newTestRunner(t)
	if _, err := exec.LookPath("seq"); err != nil {
		t.Skip("seq not available")
	}
	// A 2 MiB line without a newline, then enough lines to fill the pipe.
	script := writeScript(t, `head -c 2097152 /dev/zero | tr '\0' a
seq 1 20000`)

	res, err := r.Run(context.Background(), Request{EntryPoint: script, Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.TimedOut {
		t.Fatal("TimedOut = true, child blocked on an unread pipe")
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0", res.ExitCode)
	}
	if len(res.StdoutLines) != 20000 {
		t.Fatalf("got %d stdout lines, want 20000", len(res.StdoutLines))
	}
	if got := len(res.StdoutLines[0]); got != maxLineSize {
		t.Errorf("first line length = %d, want truncation to %d", got, maxLineSize)
	}
	if last := res.StdoutLines[len(res.StdoutLines)-1]; last != "20000" {
		t.Errorf("last line = %q, want 20000", last)
	}
}

func TestRun_BackgroundChildHoldsPipes(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.GracePeriod = 300 * time.Millisecond
	script := writeScript(t, `sleep 30 &
echo $!
exit 0`)

	start := time.Now()
	res, err := r.Run(context.Background(), Request{EntryPoint: script})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run took %v, want it bounded by the grace period", elapsed)
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", res.ExitCode)
	}
	if res.TimedOut || res.KilledByLimit || res.Cancelled {
		t.Errorf("unexpected flags: %+v", res)
	}
	if len(res.StdoutLines) != 1 {
		t.Fatalf("StdoutLines = %q, want the background pid", res.StdoutLines)
	}
	bg, err := strconv.Atoi(res.StdoutLines[0])
	if err != nil {
		t.Fatalf("parsing background pid %q: %v", res.StdoutLines[0], err)
	}
	waitGone(t, bg, 2*time.Second)
}

func TestReadLines(t *testing.T) {
	long := strings.Repeat("x", maxLineSize+10)
	tests := []struct {
		name  string
		input string
		limit int
		want  []string
		hit   bool
	}{
		{name: "plain", input: "a\nb\n", want: []string{"a", "b"}},
		{name: "no trailing newline", input: "a\nb", want: []string{"a", "b"}},
		{name: "crlf and empty", input: "a\r\n\nb\n", want: []string{"a", "", "b"}},
		{name: "limit", input: "a\nb\nc\n", limit: 2, want: []string{"a", "b"}, hit: true},
		{name: "overlong", input: long + "\nend\n", want: []string{long[:maxLineSize], "end"}},
		{name: "overlong at eof", input: long, want: []string{long[:maxLineSize]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			hit := false
			got := readLines(strings.NewReader(tt.input), &out, "> ", tt.limit, func() { hit = true })
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("readLines() returned %d lines, want %d", len(got), len(tt.want))
			}
			if hit != tt.hit {
				t.Errorf("onLimit called = %v, want %v", hit, tt.hit)
			}
			if n := strings.Count(out.String(), "> "); n < len(tt.want) {
				t.Errorf("echoed %d lines, want %d", n, len(tt.want))
			}
		})
	}
}

func TestRun_ContextCancel(t *testing.T) {
	r, _, _ := newTestRunner(t)
	script := writeScript(t, "sleep 10")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx, Request{EntryPoint: script})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if res.TimedOut || res.KilledByLimit {
		t.Errorf("unexpected flags: %+v", res)
	}
	assertGone(t, res.PID)
}

func TestRun_SpawnFailures(t *testing.T) {
	r, _, _ := newTestRunner(t)

	_, err := r.Run(context.Background(), Request{EntryPoint: filepath.Join(t.TempDir(), "missing.sh")})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing entry point: error = %v, want ErrNotFound", err)
	}

	r.Interpreter = "tutils-no-such-interpreter"
	if _, err := r.Run(context.Background(), Request{EntryPoint: writeScript(t, "true")}); err == nil {
		t.Error("expected error for a missing interpreter")
	}
}

func TestRun_StderrPrefix(t *testing.T) {
	r, _, stderr := newTestRunner(t)
	r.StderrPrefix = "ERR| "
	script := writeScript(t, "echo a 1>&2\necho b 1>&2")

	if _, err := r.Run(context.Background(), Request{EntryPoint: script}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stderr.String() != "ERR| a\nERR| b\n" {
		t.Errorf("echoed stderr = %q", stderr.String())
	}
}

func TestExitCode_Nil(t *testing.T) {
	if exitCode(nil) != nil {
		t.Error("exitCode(nil) should be nil")
	}
}

func TestOSType(t *testing.T) {
	want := map[string]string{"linux": "Linux", "darwin": "Darwin", "windows": "Windows"}[goruntime.GOOS]
	if want != "" && OSType() != want {
		t.Errorf("OSType() = %q, want %q", OSType(), want)
	}
}

// assertGone checks the child is no longer running.
func assertGone(t *testing.T, pid int) {
	t.Helper()
	if pid == 0 {
		t.Fatal("PID not recorded")
	}
	if processAlive(pid) {
		t.Errorf("process %s still running", strconv.Itoa(pid))
	}
}

// waitGone polls until pid has exited; orphans are reaped by init, not by Run.
func waitGone(t *testing.T, pid int, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Errorf("process %d still running after %v", pid, within)
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
