// ABOUTME: Tests for built-in slash commands
// ABOUTME: Covers status/compact/cost/unknown results, porcelain parsing, and the files command

package session

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCommand_Status(t *testing.T) {
	env := newTestEnv(t, "printf ok", time.Minute)
	sess := env.manager.Create("alice", env.workDir)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/status")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.Content, sess.ID)
	assert.Contains(t, res.Content, "active")
	assert.Equal(t, "active", res.Data["state"])
	assert.Equal(t, 0, res.Data["message_count"])
	assert.Equal(t, env.workDir, res.Data["working_dir"])
}

func TestExecuteCommand_StatusAfterTerminate(t *testing.T) {
	env := newTestEnv(t, "printf ok", time.Minute)
	sess := env.manager.Create("alice", env.workDir)
	env.manager.Terminate(sess.ID)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "status")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "inactive", res.Data["state"])
}

func TestExecuteCommand_CompactRunsATurn(t *testing.T) {
	env := newTestEnv(t, "printf 'we renamed the parser and fixed the decoder'", time.Minute)
	sess := env.manager.Create("alice", env.workDir)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/compact")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Conversation compacted.", res.Content)
	assert.Equal(t, "we renamed the parser and fixed the decoder", res.Data["summary"])
	assert.Equal(t, 1, sess.MessageCount(), "the summarization message is a real turn")

	lines := env.argvLines(t)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "/compact - Please summarize our conversation")
}

func TestExecuteCommand_CompactFailure(t *testing.T) {
	env := newTestEnv(t, "exit 3", time.Minute)
	sess := env.manager.Create("alice", env.workDir)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/compact")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "Failed to compact")
	assert.Equal(t, 0, sess.MessageCount())
}

func TestExecuteCommand_Cost(t *testing.T) {
	env := newTestEnv(t, "printf ok", time.Minute)
	sess := env.manager.Create("alice", env.workDir)

	_, err := env.manager.Send(t.Context(), sess.ID, "hi", ModeNormal)
	require.NoError(t, err)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/cost")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.Content, "Messages exchanged: 1")
	assert.Equal(t, 1, res.Data["message_count"])
}

func TestExecuteCommand_Unknown(t *testing.T) {
	env := newTestEnv(t, "printf ok", time.Minute)
	sess := env.manager.Create("alice", env.workDir)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/frobnicate")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown command: /frobnicate", res.Content)
}

func TestExecuteCommand_UnknownSession(t *testing.T) {
	env := newTestEnv(t, "printf ok", time.Minute)

	_, err := env.manager.ExecuteCommand(t.Context(), "nope", "/status")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExecuteCommand_FilesOutsideGitRepo(t *testing.T) {
	env := newTestEnv(t, "printf ok", time.Minute)
	sess := env.manager.Create("alice", env.workDir)

	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/files")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "not a git repository")
}

func TestExecuteCommand_FilesInGitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	env := newTestEnv(t, "printf ok", time.Minute)

	runGit := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = env.workDir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	runGit("init")
	runGit("config", "user.email", "test@example.com")
	runGit("config", "user.name", "test")

	require.NoError(t, os.WriteFile(filepath.Join(env.workDir, "tracked.txt"), []byte("v1\n"), 0644))
	runGit("add", "tracked.txt")
	runGit("commit", "-m", "initial")

	require.NoError(t, os.WriteFile(filepath.Join(env.workDir, "tracked.txt"), []byte("v2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(env.workDir, "new.txt"), []byte("hi\n"), 0644))

	sess := env.manager.Create("alice", env.workDir)
	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/files")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.Content, "tracked.txt")
	assert.Contains(t, res.Content, "new.txt")

	files, ok := res.Data["files"].([]map[string]string)
	require.True(t, ok)
	changes := make(map[string]string, len(files))
	for _, f := range files {
		changes[f["path"]] = f["change"]
	}
	assert.Equal(t, "modified", changes["tracked.txt"])
	assert.Equal(t, "untracked", changes["new.txt"])
}

func TestExecuteCommand_FilesCleanRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	env := newTestEnv(t, "printf ok", time.Minute)
	cmd := exec.Command("git", "init")
	cmd.Dir = env.workDir
	require.NoError(t, cmd.Run())

	sess := env.manager.Create("alice", env.workDir)
	res, err := env.manager.ExecuteCommand(t.Context(), sess.ID, "/files")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "No changed files.", res.Content)
}

func TestParsePorcelain(t *testing.T) {
	tests := []struct {
		name string
		line string
		path string
		kind string
	}{
		{"untracked", "?? notes.md", "notes.md", "untracked"},
		{"modified worktree", " M main.go", "main.go", "modified"},
		{"modified index", "M  main.go", "main.go", "modified"},
		{"added", "A  new.go", "new.go", "added"},
		{"deleted", "D  old.go", "old.go", "deleted"},
		{"renamed keeps new path", "R  old.go -> new.go", "new.go", "renamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := parsePorcelain(tt.line + "\n")
			require.Len(t, files, 1)
			assert.Equal(t, tt.path, files[0].path)
			assert.Equal(t, tt.kind, files[0].change)
		})
	}
}

func TestParsePorcelain_SkipsShortLines(t *testing.T) {
	assert.Empty(t, parsePorcelain(""))
	assert.Empty(t, parsePorcelain("\n\n"))
	assert.Empty(t, parsePorcelain("M\n"))
}

func TestParsePorcelain_MultipleLines(t *testing.T) {
	out := "?? a.txt\n M b.txt\nA  c.txt\n"
	files := parsePorcelain(out)
	require.Len(t, files, 3)
	assert.Equal(t, "a.txt", files[0].path)
	assert.Equal(t, "b.txt", files[1].path)
	assert.Equal(t, "c.txt", files[2].path)
}
