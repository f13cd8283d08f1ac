// ABOUTME: Built-in slash commands executed locally, without the agent
// ABOUTME: status, files, compact, cost — structured results, failures are not errors

package session

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult is the structured outcome of a built-in command. Failures
// (unknown command, git missing) are reported inside the result rather than
// as Go errors, because they are user-facing outcomes of a valid operation.
type CommandResult struct {
	Success bool           `json:"success"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
}

// ExecuteCommand runs a built-in command against a session. These never
// touch the agent: they answer from local state and the working directory.
func (m *Manager) ExecuteCommand(ctx context.Context, sessionID, command string) (*CommandResult, error) {
	sess, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	m.logger.Debug("executing command", "session_id", sessionID, "command", command)

	switch command {
	case "status":
		return m.commandStatus(sess), nil
	case "files":
		return m.commandFiles(ctx, sess), nil
	case "compact":
		return m.commandCompact(ctx, sess), nil
	case "cost":
		return m.commandCost(sess), nil
	default:
		return &CommandResult{
			Success: false,
			Content: fmt.Sprintf("Unknown command: /%s", command),
		}, nil
	}
}

func (m *Manager) commandStatus(sess *Session) *CommandResult {
	state := "active"
	if !sess.Active() {
		state = "inactive"
	}
	return &CommandResult{
		Success: true,
		Content: fmt.Sprintf("Session %s is %s (%d messages, working dir: %s)",
			sess.ID, state, sess.MessageCount(), sess.WorkingDir),
		Data: map[string]any{
			"session_id":    sess.ID,
			"state":         state,
			"message_count": sess.MessageCount(),
			"working_dir":   sess.WorkingDir,
			"created_at":    sess.CreatedAt,
		},
	}
}

// commandCompact asks the agent to summarize the conversation so far. The
// summarization message goes through the normal turn mechanism, so it counts
// as a turn and resumes the agent-side conversation like any other send.
func (m *Manager) commandCompact(ctx context.Context, sess *Session) *CommandResult {
	summary, err := m.Send(ctx, sess.ID,
		"/compact - Please summarize our conversation so far in a concise way, highlighting key decisions and changes made.",
		ModeNormal)
	if err != nil {
		return &CommandResult{
			Success: false,
			Content: fmt.Sprintf("Failed to compact: %v", err),
		}
	}
	return &CommandResult{
		Success: true,
		Content: "Conversation compacted.",
		Data:    map[string]any{"summary": summary},
	}
}

// commandCost reports a usage estimate. Per-turn token accounting would need
// the agent's own cost output; the message count is what the session knows.
func (m *Manager) commandCost(sess *Session) *CommandResult {
	return &CommandResult{
		Success: true,
		Content: fmt.Sprintf(
			"Session usage estimate:\n  Messages exchanged: %d\n  Note: detailed token/cost tracking is not implemented.",
			sess.MessageCount()),
		Data: map[string]any{"message_count": sess.MessageCount()},
	}
}

// commandFiles lists changed files in the session's working directory using
// git porcelain status. A missing git binary or a non-repo directory is a
// failed result, not an error.
func (m *Manager) commandFiles(ctx context.Context, sess *Session) *CommandResult {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = sess.WorkingDir

	out, err := cmd.Output()
	if err != nil {
		return &CommandResult{
			Success: false,
			Content: "Unable to list changed files (not a git repository, or git is unavailable).",
		}
	}

	files := parsePorcelain(string(out))
	if len(files) == 0 {
		return &CommandResult{
			Success: true,
			Content: "No changed files.",
			Data:    map[string]any{"files": []map[string]string{}},
		}
	}

	var b strings.Builder
	data := make([]map[string]string, 0, len(files))
	for _, f := range files {
		fmt.Fprintf(&b, "%s  %s\n", f.change, f.path)
		data = append(data, map[string]string{"path": f.path, "change": f.change})
	}
	return &CommandResult{
		Success: true,
		Content: strings.TrimRight(b.String(), "\n"),
		Data:    map[string]any{"files": data},
	}
}

type changedFile struct {
	path   string
	change string
}

// parsePorcelain classifies `git status --porcelain` lines. The two status
// columns collapse into one human label; renames keep only the new path.
func parsePorcelain(out string) []changedFile {
	var files []changedFile
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		if i := strings.LastIndex(path, " -> "); i >= 0 {
			path = path[i+4:]
		}

		change := "modified"
		switch {
		case code == "??":
			change = "untracked"
		case strings.ContainsAny(code, "A"):
			change = "added"
		case strings.ContainsAny(code, "D"):
			change = "deleted"
		case strings.ContainsAny(code, "R"):
			change = "renamed"
		}
		files = append(files, changedFile{path: path, change: change})
	}
	return files
}
