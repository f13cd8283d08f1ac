// ABOUTME: Agent CLI process runner — one non-interactive invocation per turn
// ABOUTME: Builds argv per the resume/plan/stream contract and classifies exits

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/2389/coven-pilot/internal/stream"
)

// invocation describes one agent process launch.
type invocation struct {
	prompt      string
	resumeToken string
	workingDir  string
	first       bool // first turn creates the agent-side session, later turns resume it
	plan        bool
	streaming   bool
}

// runner launches the agent CLI. It holds no per-session state.
type runner struct {
	command string
	logger  *slog.Logger
}

// args builds the CLI argument list for an invocation.
//
// First turn: -p <prompt> --session-id <token>; follow-ups: --resume <token>.
// This is how multi-turn context survives across independent process
// launches. Streaming requires --verbose alongside stream-json output.
func (r *runner) args(inv invocation) []string {
	args := []string{"-p", inv.prompt}
	if inv.first {
		args = append(args, "--session-id", inv.resumeToken)
	} else {
		args = append(args, "--resume", inv.resumeToken)
	}
	if inv.streaming {
		args = append(args, "--output-format", "stream-json", "--verbose")
	} else {
		args = append(args, "--output-format", "text")
	}
	if inv.plan {
		args = append(args, "--permission-mode", "plan")
	}
	return args
}

// run executes a plain-text invocation and returns the agent's stdout.
func (r *runner) run(ctx context.Context, inv invocation) (string, error) {
	cmd := exec.CommandContext(ctx, r.command, r.args(inv)...)
	cmd.Dir = inv.workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("launching agent process",
		"command", r.command,
		"working_dir", inv.workingDir,
		"first_turn", inv.first,
		"plan", inv.plan)

	if err := cmd.Run(); err != nil {
		return "", r.classifyExit(err, stderr.String())
	}
	return stdout.String(), nil
}

// runStream executes a stream-json invocation, delivering each stdout line
// to onLine as it arrives. Returns after the process exits.
func (r *runner) runStream(ctx context.Context, inv invocation, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, r.command, r.args(inv)...)
	cmd.Dir = inv.workingDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	r.logger.Debug("launching agent process (streaming)",
		"command", r.command,
		"working_dir", inv.workingDir,
		"first_turn", inv.first,
		"plan", inv.plan)

	if err := cmd.Start(); err != nil {
		return r.classifyExit(err, "")
	}

	dec := stream.NewDecoder(stdout)
	var readErr error
	for {
		line, err := dec.Next()
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
		onLine(line)
	}
	if readErr != nil {
		// Drain the rest of stdout so Wait cannot deadlock against a
		// writer blocked on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		return r.classifyExit(err, stderr.String())
	}
	if readErr != nil {
		return fmt.Errorf("reading agent output: %w", readErr)
	}
	return nil
}

// classifyExit maps a process failure onto the error taxonomy: a missing
// binary is ErrAgentUnavailable, everything else is an AgentError carrying
// the diagnostic text.
func (r *runner) classifyExit(err error, stderrText string) error {
	stderrText = strings.TrimSpace(stderrText)

	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrAgentUnavailable, r.command)
	}
	if strings.Contains(strings.ToLower(stderrText), "not found") {
		return fmt.Errorf("%w: %s", ErrAgentUnavailable, stderrText)
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if stderrText == "" {
		stderrText = err.Error()
	}
	return &AgentError{ExitCode: exitCode, Stderr: stderrText}
}
