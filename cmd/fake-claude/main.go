// ABOUTME: Minimal fake agent CLI for E2E testing — honors the per-turn invocation contract.
// ABOUTME: Usage: fake-claude -p PROMPT [--session-id ID | --resume ID] [--output-format text|stream-json]

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
)

type turn struct {
	prompt       string
	sessionID    string
	resumeID     string
	outputFormat string
	verbose      bool
	planMode     bool
}

func main() {
	t, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if err := run(t); err != nil {
		log.Fatal(err)
	}
}

// parseArgs implements the agent CLI's flag surface by hand: the real CLI
// uses long flags with separate values, which the flag package's single-dash
// conventions don't match exactly.
func parseArgs(args []string) (*turn, error) {
	t := &turn{outputFormat: "text"}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-p":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-p requires a value")
			}
			t.prompt = args[i]
		case "--session-id":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--session-id requires a value")
			}
			t.sessionID = args[i]
		case "--resume":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--resume requires a value")
			}
			t.resumeID = args[i]
		case "--output-format":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--output-format requires a value")
			}
			t.outputFormat = args[i]
		case "--verbose":
			t.verbose = true
		case "--permission-mode":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("--permission-mode requires a value")
			}
			t.planMode = args[i] == "plan"
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if t.prompt == "" {
		return nil, fmt.Errorf("-p is required")
	}
	if t.sessionID == "" && t.resumeID == "" {
		return nil, fmt.Errorf("either --session-id or --resume is required")
	}
	return t, nil
}

func run(t *turn) error {
	response := buildResponse(t)

	if t.outputFormat != "stream-json" {
		fmt.Println(response)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)

	// Assistant text, split into two blocks to exercise delta assembly.
	half := len(response) / 2
	if err := enc.Encode(assistantText(response[:half], response[half:])); err != nil {
		return err
	}

	// One canned tool use when the prompt asks for it.
	if strings.Contains(t.prompt, "run a tool") {
		for _, rec := range toolUseSequence() {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	}

	return enc.Encode(map[string]any{
		"type":   "result",
		"result": response,
	})
}

func buildResponse(t *turn) string {
	who := "new session " + t.sessionID
	if t.resumeID != "" {
		who = "resumed session " + t.resumeID
	}
	if t.planMode {
		return fmt.Sprintf("## Plan\n1. Echo the request (%s)\n\nEcho: %s", who, t.prompt)
	}
	return fmt.Sprintf("Echo (%s): %s", who, t.prompt)
}

func assistantText(blocks ...string) map[string]any {
	content := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, map[string]any{"type": "text", "text": b})
	}
	return map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": content,
		},
	}
}

func toolUseSequence() []map[string]any {
	return []map[string]any{
		{
			"type":  "content_block_start",
			"index": 1,
			"content_block": map[string]any{
				"type": "tool_use",
				"id":   "toolu_fake_01",
				"name": "Bash",
			},
		},
		{
			"type":  "content_block_delta",
			"index": 1,
			"delta": map[string]any{
				"type":         "input_json_delta",
				"partial_json": `{"command":"echo hello"}`,
			},
		},
		{
			"type":  "content_block_stop",
			"index": 1,
		},
	}
}
