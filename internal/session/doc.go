// ABOUTME: Package documentation for session orchestration
// ABOUTME: Explains the turn model, resume tokens, and the error taxonomy

// Package session orchestrates multi-turn chat sessions against an agent
// CLI that runs one non-interactive process per turn.
//
// Conversational continuity lives on the agent side: the first turn of a
// session passes --session-id with a fresh token, and every later turn
// passes --resume with the same token. The Manager's only job between
// turns is to keep that token, the working directory, and a success
// counter.
//
// Turns on one session are strictly serialized; turns on different
// sessions run concurrently. A terminated session rejects new sends with
// ErrSessionInactive but is never removed from the table, so its metadata
// stays queryable.
//
// Failures split three ways: ErrAgentUnavailable when the CLI binary is
// missing, *AgentError when a process exits non-zero, and the sentinel
// session errors for bad session references. Built-in command failures
// are not errors at all — see CommandResult.
package session
