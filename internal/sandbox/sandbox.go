// Package sandbox wraps an external isolate-like CLI: a program that can
// create/clean numbered "boxes" (a private working directory plus a
// cgroup) and run a single command inside one under CPU/wall/memory/
// process/file-size limits, reporting how the run ended in a line-oriented
// meta file.
//
// The argv shape and meta parsing follow a dual-layer isolate sandbox
// manager (parseMetaFile's key:value loop, --box-id/--init/--run/--cleanup
// usage); the flag set itself is the bit-exact external contract this
// package must not deviate from.
package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"judge-core/internal/logging"
)

// Status codes reported by the isolate-like tool in its meta file.
const (
	StatusOK      = ""
	StatusTimeout = "TO"
	StatusSignal  = "SG"
	StatusRuntime = "RE"
	StatusInternal = "XX"
)

// SandboxInitError wraps a failure to initialize a box.
type SandboxInitError struct {
	BoxID int
	Err   error
}

func (e *SandboxInitError) Error() string {
	return fmt.Sprintf("sandbox init failed for box %d: %v", e.BoxID, e.Err)
}

func (e *SandboxInitError) Unwrap() error { return e.Err }

// Runner drives the external isolate-like binary.
type Runner struct {
	binPath string
}

// NewRunner builds a Runner targeting the given isolate-like binary path.
func NewRunner(binPath string) *Runner {
	return &Runner{binPath: binPath}
}

// InitBox creates box_id's working directory and returns its path.
func (r *Runner) InitBox(ctx context.Context, boxID int) (string, error) {
	cmd := exec.CommandContext(ctx, r.binPath, "--box-id", strconv.Itoa(boxID), "--init")
	out, err := cmd.Output()
	if err != nil {
		return "", &SandboxInitError{BoxID: boxID, Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// CleanupBox tears down box_id. Best-effort: errors are logged, not
// returned, matching the runner's idempotent-cleanup contract.
func (r *Runner) CleanupBox(ctx context.Context, boxID int) {
	cmd := exec.CommandContext(ctx, r.binPath, "--box-id", strconv.Itoa(boxID), "--cleanup")
	if err := cmd.Run(); err != nil {
		logging.L().Warn("sandbox cleanup failed", zap.Int("box_id", boxID), zap.Error(err))
	}
}

// RunOptions configures one sandboxed execution.
type RunOptions struct {
	TimeLimit     float64 // CPU seconds
	WallTimeLimit float64 // seconds
	MemoryLimit   int     // KB
	MaxProcesses  int
	MaxFileSize   int // KB
	StdinFile     string
	StdoutFile    string
	StderrFile    string
	Env           map[string]string
}

// IsolateMeta is the parsed content of one run's meta file.
type IsolateMeta struct {
	Time     float64 // CPU seconds
	TimeWall float64 // seconds
	MaxRSS   int     // KB
	CgMem    int     // KB
	Status   string  // "", TO, SG, RE, XX
	ExitCode int
	ExitSig  int
	Message  string
}

// IsolateResult is what the judging pipeline sees after a run: the meta
// report plus the process exit code/signal the runner itself observed.
type IsolateResult struct {
	ExitCode int
	Signal   int
	Time     float64
	WallTime float64
	Memory   int // KB, preferring cgroup accounting over max-RSS
	Status   string
	Message  string
}

// Run executes argv inside box_id under the given limits, always returning
// a populated IsolateResult — sandboxed-program failure, including OOM,
// timeout, crash and sandbox-internal error, is reported in the result,
// never as a Go error. Conditions outside the sandbox's own reporting
// (the scratch meta file cannot be created, or it cannot be read after the
// run) also come back as an "XX" result; the returned error is always nil.
func (r *Runner) Run(ctx context.Context, boxID int, argv []string, opts RunOptions) (IsolateResult, error) {
	metaPath, err := os.CreateTemp("", "judge-meta-*.txt")
	if err != nil {
		return IsolateResult{Status: StatusInternal, Message: err.Error()}, nil
	}
	metaFile := metaPath.Name()
	metaPath.Close()
	defer os.Remove(metaFile)

	args := []string{
		"--box-id", strconv.Itoa(boxID),
		"--time", formatSeconds(opts.TimeLimit),
		"--wall-time", formatSeconds(opts.WallTimeLimit),
		"--mem", strconv.Itoa(opts.MemoryLimit),
		"--cg",
		"--cg-mem", strconv.Itoa(opts.MemoryLimit),
		"--processes", strconv.Itoa(opts.MaxProcesses),
		"--fsize", strconv.Itoa(opts.MaxFileSize),
	}
	if opts.StdinFile != "" {
		args = append(args, "--stdin", opts.StdinFile)
	}
	if opts.StdoutFile != "" {
		args = append(args, "--stdout", opts.StdoutFile)
	}
	if opts.StderrFile != "" {
		args = append(args, "--stderr", opts.StderrFile)
	}
	for k, v := range opts.Env {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, "--meta", metaFile, "--run", "--")
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, r.binPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	meta, parseErr := parseMetaFile(metaFile)
	if parseErr != nil {
		return IsolateResult{
			ExitCode: -1,
			Status:   StatusInternal,
			Message:  strings.TrimSpace(stderr.String()),
		}, nil
	}

	result := IsolateResult{
		ExitCode: meta.ExitCode,
		Signal:   meta.ExitSig,
		Time:     meta.Time,
		WallTime: meta.TimeWall,
		Status:   meta.Status,
		Message:  meta.Message,
	}
	// Prefer cgroup memory accounting over max-RSS, per contract.
	if meta.CgMem > 0 {
		result.Memory = meta.CgMem
	} else {
		result.Memory = meta.MaxRSS
	}

	// A nonzero exit from the isolate binary itself with no meta status
	// set indicates the tool failed before it could classify the run.
	if runErr != nil && result.Status == StatusOK && result.ExitCode == 0 {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
	}

	return result, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// parseMetaFile reads the isolate-like tool's line-oriented key:value
// report. Mirrors the parsing loop in the dual-layer sandbox manager's
// parseMetaFile, generalized to the full field set in the runner contract.
func parseMetaFile(path string) (IsolateMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return IsolateMeta{}, err
	}
	defer f.Close()

	var meta IsolateMeta
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "time":
			meta.Time, _ = strconv.ParseFloat(value, 64)
		case "time-wall":
			meta.TimeWall, _ = strconv.ParseFloat(value, 64)
		case "max-rss":
			meta.MaxRSS, _ = strconv.Atoi(value)
		case "cg-mem":
			meta.CgMem, _ = strconv.Atoi(value)
		case "status":
			meta.Status = value
		case "exitcode":
			meta.ExitCode, _ = strconv.Atoi(value)
		case "exitsig":
			meta.ExitSig, _ = strconv.Atoi(value)
		case "message":
			meta.Message = value
		}
	}
	if err := scanner.Err(); err != nil {
		return meta, err
	}
	return meta, nil
}
