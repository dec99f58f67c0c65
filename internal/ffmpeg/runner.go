// Package ffmpeg wraps the ffmpeg and ffprobe binaries behind a small
// runner that enforces the process-wide thread cap and supports the
// two-tier full/simplified encode fallback.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"
)

// CommandRunner interface for command execution (enables mocking in tests)
type CommandRunner interface {
	Run(ctx context.Context, env []string, cmd string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner using os/exec
type DefaultCommandRunner struct{}

// Run executes a command using os/exec. The extra env entries are appended
// to the current process environment.
func (r *DefaultCommandRunner) Run(ctx context.Context, env []string, cmd string, args ...string) ([]byte, error) {
	command := exec.CommandContext(ctx, cmd, args...)
	if len(env) > 0 {
		command.Env = append(os.Environ(), env...)
	}
	return command.CombinedOutput()
}

// Runner executes ffmpeg and ffprobe invocations.
type Runner struct {
	logger      hclog.Logger
	execer      CommandRunner
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// NewRunner creates a runner bound to discovered binary paths. threads caps
// both ffmpeg's own worker pool and OpenMP codecs via OMP_NUM_THREADS.
func NewRunner(logger hclog.Logger, ffmpegPath, ffprobePath string, threads int) *Runner {
	return NewRunnerWithExecutor(logger, &DefaultCommandRunner{}, ffmpegPath, ffprobePath, threads)
}

// NewRunnerWithExecutor creates a runner with a custom command executor (for testing)
func NewRunnerWithExecutor(logger hclog.Logger, execer CommandRunner, ffmpegPath, ffprobePath string, threads int) *Runner {
	if threads < 1 {
		threads = 1
	}
	return &Runner{
		logger:      logger.Named("ffmpeg"),
		execer:      execer,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}
}

// Discover locates a working binary among the configured path and the usual
// install locations. Bare names are resolved through PATH.
func Discover(configured string, fallbacks ...string) (string, error) {
	candidates := append([]string{configured}, fallbacks...)
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.ContainsRune(c, os.PathSeparator) {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c, nil
			}
			continue
		}
		if resolved, err := exec.LookPath(c); err == nil {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("no usable binary among %v", candidates)
}

func (r *Runner) env() []string {
	return []string{"OMP_NUM_THREADS=" + strconv.Itoa(r.threads)}
}

// Run executes ffmpeg with the thread cap prepended to args.
func (r *Runner) Run(ctx context.Context, args []string) error {
	full := append([]string{"-threads", strconv.Itoa(r.threads)}, args...)
	r.logger.Debug("running ffmpeg", "args", strings.Join(full, " "))

	out, err := r.execer.Run(ctx, r.env(), r.ffmpegPath, full...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, Truncate(string(out), 500))
	}
	return nil
}

// RunWithFallback tries the full-compression argument vector first and, if
// it fails for any reason other than cancellation, retries once with the
// simplified vector. Both failures are reported together.
func (r *Runner) RunWithFallback(ctx context.Context, primary, simplified []string) error {
	primaryErr := r.Run(ctx, primary)
	if primaryErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return primaryErr
	}

	r.logger.Warn("full-compression encode failed, retrying simplified", "error", primaryErr)
	if err := r.Run(ctx, simplified); err != nil {
		return fmt.Errorf("simplified encode failed after primary: %w (primary: %v)", err, primaryErr)
	}
	return nil
}

// ProbeDuration returns the container duration of a media file in seconds.
// Unreadable files report zero duration rather than an error so callers can
// treat them as missing.
func (r *Runner) ProbeDuration(ctx context.Context, path string) float64 {
	out, err := r.execer.Run(ctx, nil, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		r.logger.Warn("could not probe duration", "path", path, "error", err)
		return 0
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return dur
}

// Truncate clips diagnostic output to at most n trailing bytes, starting
// on a rune boundary. ffmpeg puts the useful error at the end of stderr.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
