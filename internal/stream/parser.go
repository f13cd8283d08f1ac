// ABOUTME: Incremental parser for the agent CLI's stream-json output
// ABOUTME: Pure state machine over (response buffer, open tool-use stack, tool-use list)

package stream

import (
	"encoding/json"
	"strings"
)

// EventType indicates the kind of parser event.
type EventType int

const (
	EventText EventType = iota
	EventToolUseStart
	EventToolUseEnd
	EventError
)

// Event is a single domain event decoded from the agent's output stream.
type Event struct {
	Type     EventType
	Text     string // For EventText and EventError
	ToolID   string // For tool events
	ToolName string // For tool events
}

// ToolUse tracks one tool invocation seen in the stream.
type ToolUse struct {
	ID        string
	Name      string
	Status    string // "running" until its block stops, then "completed"
	InputJSON string // Concatenated input_json_delta fragments, arrival order
}

// record is the subset of the stream-json line format the parser consumes.
type record struct {
	Type    string `json:"type"`
	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`
	ContentBlock contentBlock `json:"content_block"`
	Delta        struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	Result string `json:"result"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Parser decodes the agent's newline-delimited stream-json records into
// events while assembling the full response text. It performs no I/O and is
// driven one line at a time, so a recorded line sequence reproduces the
// exact event sequence.
type Parser struct {
	response strings.Builder
	open     []*ToolUse // stack of tool uses whose blocks have not stopped
	toolUses []*ToolUse
}

// NewParser returns a parser with empty state.
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine consumes one line of agent output and returns the events it
// produced, in order. A line that is not valid JSON is treated as plain
// diagnostic text: it is appended to the response buffer and produces no
// events. Malformed input is never fatal.
func (p *Parser) ParseLine(line string) []Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var rec record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		p.response.WriteString(trimmed)
		return nil
	}

	switch rec.Type {
	case "assistant":
		var events []Event
		for _, block := range rec.Message.Content {
			if block.Type != "text" || block.Text == "" {
				continue
			}
			p.response.WriteString(block.Text)
			events = append(events, Event{Type: EventText, Text: block.Text})
		}
		return events

	case "content_block_start":
		if rec.ContentBlock.Type != "tool_use" {
			return nil
		}
		tu := &ToolUse{
			ID:     rec.ContentBlock.ID,
			Name:   rec.ContentBlock.Name,
			Status: "running",
		}
		p.open = append(p.open, tu)
		p.toolUses = append(p.toolUses, tu)
		return []Event{{Type: EventToolUseStart, ToolID: tu.ID, ToolName: tu.Name}}

	case "content_block_delta":
		switch rec.Delta.Type {
		case "text_delta":
			if rec.Delta.Text == "" {
				return nil
			}
			p.response.WriteString(rec.Delta.Text)
			return []Event{{Type: EventText, Text: rec.Delta.Text}}
		case "input_json_delta":
			// Fragments accumulate onto the innermost open tool use in
			// arrival order.
			if len(p.open) > 0 {
				p.open[len(p.open)-1].InputJSON += rec.Delta.PartialJSON
			}
		}
		return nil

	case "content_block_stop":
		// Closes the most-recently-opened unclosed entry. Interleaved tool
		// blocks are not attributed; see package docs.
		if len(p.open) == 0 {
			return nil
		}
		tu := p.open[len(p.open)-1]
		p.open = p.open[:len(p.open)-1]
		tu.Status = "completed"
		return []Event{{Type: EventToolUseEnd, ToolID: tu.ID, ToolName: tu.Name}}

	case "result":
		// Agents that answer only via a terminal summary: the result payload
		// becomes the entire response if nothing streamed before it.
		if rec.Result != "" && p.response.Len() == 0 {
			p.response.WriteString(rec.Result)
		}
		return nil

	case "error":
		msg := rec.Error.Message
		if msg == "" {
			msg = "unknown error"
		}
		return []Event{{Type: EventError, Text: msg}}
	}

	return nil
}

// Response returns the assembled response text.
func (p *Parser) Response() string {
	return p.response.String()
}

// ToolUses returns every tool invocation observed, in start order.
func (p *Parser) ToolUses() []*ToolUse {
	return p.toolUses
}
