// pipeline.go implements the nine-step judging state machine: resolve the
// language, initialize a box, materialize the source/stdin/output files,
// compile (if needed), execute, classify the result, collect truncated
// output, persist, and unconditionally clean up.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"judge-core/internal/judgemetrics"
	"judge-core/internal/language"
	"judge-core/internal/logging"
	"judge-core/internal/queue"
	"judge-core/internal/sandbox"
	"judge-core/internal/submission"
)

const binaryArtifactName = "program"

// Config carries the pipeline's tunable limits, sourced from
// judgeconfig so the worker package itself stays free of environment
// parsing.
type Config struct {
	OutputCapBytes       int
	CompileMaxProcesses  int
	ExecuteMaxProcesses  int
	ExecuteMaxFileSizeKB int
	CompileTimeLimit     float64       // seconds; falls back to the language's own if zero
	QueueTimeout         time.Duration // admission wait limit; <= 0 disables the sweep
}

// DefaultConfig mirrors the "e.g." values named alongside the pipeline
// steps in the component design.
func DefaultConfig() Config {
	return Config{
		OutputCapBytes:       64 * 1024,
		CompileMaxProcesses:  32,
		ExecuteMaxProcesses:  64,
		ExecuteMaxFileSizeKB: 10 * 1024,
	}
}

// Pipeline runs one job to completion against one box.
type Pipeline struct {
	runner *sandbox.Runner
	repo   submission.Repository
	cfg    Config
}

// NewPipeline builds a Pipeline over runner and repo.
func NewPipeline(runner *sandbox.Runner, repo submission.Repository, cfg Config) *Pipeline {
	return &Pipeline{runner: runner, repo: repo, cfg: cfg}
}

// Run executes job against boxID, end to end. Any panic inside steps 3-8
// is recovered and persisted as INTERNAL_ERROR. Run reports nothing to
// its caller: failures to load the row or to persist the terminal state
// are logged instead.
func (p *Pipeline) Run(ctx context.Context, job queue.Job, boxID int) {
	log := logging.WithSubmission(job.SubmissionID).With(zap.Int("box_id", boxID))

	row, err := p.repo.Get(ctx, job.SubmissionID)
	if err != nil {
		log.Error("pipeline could not load submission row", zap.Error(err))
		return
	}

	defer p.runner.CleanupBox(ctx, boxID) // step 9, unconditional

	result, persistErr := p.runPipeline(ctx, log, job, boxID, row)
	if persistErr != nil {
		log.Error("pipeline failed to persist terminal state", zap.Error(persistErr))
	}
	judgemetrics.VerdictsTotal.WithLabelValues(job.Request.Language, string(result)).Inc()
}

func (p *Pipeline) runPipeline(ctx context.Context, log *zap.Logger, job queue.Job, boxID int, row *submission.Submission) (submission.Status, error) {
	// Step 1: resolve.
	descriptor, err := language.Get(job.Request.Language)
	if err != nil {
		return p.terminalError(ctx, row, "unsupported language")
	}

	// Step 2: initialize.
	boxPath, err := p.runner.InitBox(ctx, boxID)
	if err != nil {
		log.Warn("sandbox init failed", zap.Error(err))
		judgemetrics.SandboxInitFailures.WithLabelValues(strconv.Itoa(boxID)).Inc()
		return p.terminalError(ctx, row, "sandbox init failed")
	}

	return p.runInBox(ctx, log, job, descriptor, boxPath, row)
}

func (p *Pipeline) runInBox(ctx context.Context, log *zap.Logger, job queue.Job, descriptor language.Descriptor, boxPath string, row *submission.Submission) (status submission.Status, persistErr error) {
	defer func() {
		if r := recover(); r != nil {
			status = submission.StatusInternalError
			row.Status = status
			row.Message = fmt.Sprintf("panic: %v", r)
			persistErr = p.repo.Update(ctx, row)
		}
	}()

	// Step 3: materialize source, stdin, and output placeholders.
	sourcePath := filepath.Join(boxPath, descriptor.SourceFilename)
	if err := os.WriteFile(sourcePath, []byte(job.Request.SourceCode), 0644); err != nil {
		return p.terminalError(ctx, row, "failed to write source file")
	}
	stdinPath := filepath.Join(boxPath, "stdin.txt")
	if err := os.WriteFile(stdinPath, []byte(job.Request.Stdin), 0644); err != nil {
		return p.terminalError(ctx, row, "failed to write stdin file")
	}
	stdoutPath := filepath.Join(boxPath, "stdout.txt")
	stderrPath := filepath.Join(boxPath, "stderr.txt")
	for _, path := range []string{stdoutPath, stderrPath} {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return p.terminalError(ctx, row, "failed to pre-create output file")
		}
	}

	binaryPath := filepath.Join(boxPath, binaryArtifactName)

	// Step 4: compile phase.
	if descriptor.CompileCmd != nil {
		row.Status = submission.StatusCompiling
		if err := p.repo.Update(ctx, row); err != nil {
			log.Warn("failed to persist COMPILING", zap.Error(err))
		}

		compileStderrPath := filepath.Join(boxPath, "compile_stderr.txt")
		os.WriteFile(compileStderrPath, nil, 0644)

		compileLimit := descriptor.CompileTimeLimit
		if p.cfg.CompileTimeLimit > 0 {
			compileLimit = p.cfg.CompileTimeLimit
		}
		argv := substitutePlaceholders(descriptor.CompileCmd, sourcePath, binaryPath)
		compileStart := time.Now()
		compileResult, err := p.runner.Run(ctx, boxID, argv, sandbox.RunOptions{
			TimeLimit:     compileLimit,
			WallTimeLimit: compileLimit * 2,
			MemoryLimit:   descriptor.MaxMemLimit * 1024,
			MaxProcesses:  p.cfg.CompileMaxProcesses,
			MaxFileSize:   p.cfg.ExecuteMaxFileSizeKB,
			StdoutFile:    os.DevNull,
			StderrFile:    compileStderrPath,
		})
		judgemetrics.CompilePhaseSeconds.WithLabelValues(descriptor.Key).Observe(time.Since(compileStart).Seconds())
		if err != nil {
			return p.terminalError(ctx, row, "compile run failed")
		}
		if compileResult.Status != sandbox.StatusOK || compileResult.ExitCode != 0 {
			row.Status = submission.StatusCompilationError
			row.Stderr = readTruncated(compileStderrPath, p.cfg.OutputCapBytes)
			row.Message = "compilation failed"
			return row.Status, p.repo.Update(ctx, row)
		}
	}

	// Step 5: execute phase.
	row.Status = submission.StatusRunning
	if err := p.repo.Update(ctx, row); err != nil {
		log.Warn("failed to persist RUNNING", zap.Error(err))
	}

	limits := resolveLimits(job.Request, descriptor)
	row.TimeLimit = limits.TimeLimit
	row.MemoryLimit = limits.MemLimit

	wallLimit := limits.TimeLimit * 2
	if wallLimit < 5 {
		wallLimit = 5
	}

	argv := substitutePlaceholders(descriptor.RunCmd, sourcePath, binaryPath)
	executeStart := time.Now()
	execResult, err := p.runner.Run(ctx, boxID, argv, sandbox.RunOptions{
		TimeLimit:     limits.TimeLimit,
		WallTimeLimit: wallLimit,
		MemoryLimit:   limits.MemLimit * 1024,
		MaxProcesses:  p.cfg.ExecuteMaxProcesses,
		MaxFileSize:   p.cfg.ExecuteMaxFileSizeKB,
		StdinFile:     stdinPath,
		StdoutFile:    stdoutPath,
		StderrFile:    stderrPath,
	})
	judgemetrics.ExecutePhaseSeconds.WithLabelValues(descriptor.Key).Observe(time.Since(executeStart).Seconds())
	if err != nil {
		return p.terminalError(ctx, row, "execute run failed")
	}

	// Step 6: classify.
	verdict := Classify(execResult, limits)

	// Step 7: collect output.
	row.Stdout = readTruncated(stdoutPath, p.cfg.OutputCapBytes)
	row.Stderr = readTruncated(stderrPath, p.cfg.OutputCapBytes)

	// Step 8: persist result.
	row.Status = verdict
	exitCode := execResult.ExitCode
	row.ExitCode = &exitCode
	if execResult.Signal != 0 {
		signal := execResult.Signal
		row.Signal = &signal
	}
	row.TimeUsed = execResult.Time
	row.WallTimeUsed = execResult.WallTime
	row.MemoryUsed = execResult.Memory
	if execResult.Message != "" {
		row.Message = execResult.Message
	}

	return verdict, p.repo.Update(ctx, row)
}

func (p *Pipeline) terminalError(ctx context.Context, row *submission.Submission, message string) (submission.Status, error) {
	row.Status = submission.StatusInternalError
	row.Message = message
	return row.Status, p.repo.Update(ctx, row)
}

func resolveLimits(req queue.Request, descriptor language.Descriptor) language.Limits {
	limits := language.Limits{
		TimeLimit: descriptor.DefaultTimeLimit,
		MemLimit:  descriptor.DefaultMemLimit,
	}
	if req.TimeLimit != nil {
		limits.TimeLimit = clamp(*req.TimeLimit, 0, descriptor.MaxTimeLimit)
	}
	if req.MemoryLimit != nil {
		limits.MemLimit = int(clamp(float64(*req.MemoryLimit), 0, float64(descriptor.MaxMemLimit)))
	}
	return limits
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func substitutePlaceholders(template []string, sourcePath, binaryPath string) []string {
	argv := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, "{source}", sourcePath)
		arg = strings.ReplaceAll(arg, "{binary}", binaryPath)
		argv[i] = arg
	}
	return argv
}

// readTruncated reads path capped to capBytes, preserving UTF-8 boundaries
// where possible and appending a truncation marker when cut, per the
// output-capture contract.
func readTruncated(path string, capBytes int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) <= capBytes {
		return string(data)
	}
	cut := capBytes
	for cut > 0 && !isUTF8Boundary(data, cut) {
		cut--
	}
	return string(data[:cut]) + fmt.Sprintf("\n...[truncated, %d bytes total]", len(data))
}

func isUTF8Boundary(data []byte, i int) bool {
	return i == 0 || i >= len(data) || data[i]&0xC0 != 0x80
}
