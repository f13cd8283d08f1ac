// ABOUTME: Tests for the stream-json parser
// ABOUTME: Drives the state machine with recorded line sequences and checks events and assembly

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(p *Parser, lines ...string) []Event {
	var all []Event
	for _, line := range lines {
		all = append(all, p.ParseLine(line)...)
	}
	return all
}

func TestParser_AssistantTextBlocks(t *testing.T) {
	p := NewParser()

	events := feed(p,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Hello, "},{"type":"text","text":"world"}]}}`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, EventText, events[0].Type)
	assert.Equal(t, "Hello, ", events[0].Text)
	assert.Equal(t, "world", events[1].Text)
	assert.Equal(t, "Hello, world", p.Response())
}

func TestParser_TextDeltas(t *testing.T) {
	p := NewParser()

	events := feed(p,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"one"}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":" two"}}`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, "one two", p.Response())
}

func TestParser_ToolUseLifecycle(t *testing.T) {
	p := NewParser()

	events := feed(p,
		`{"type":"content_block_start","content_block":{"type":"tool_use","id":"toolu_01","name":"Bash"}}`,
		`{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"command\":"}}`,
		`{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"\"ls\"}"}}`,
		`{"type":"content_block_stop"}`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, EventToolUseStart, events[0].Type)
	assert.Equal(t, "toolu_01", events[0].ToolID)
	assert.Equal(t, "Bash", events[0].ToolName)
	assert.Equal(t, EventToolUseEnd, events[1].Type)
	assert.Equal(t, "toolu_01", events[1].ToolID)

	uses := p.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "completed", uses[0].Status)
	assert.Equal(t, `{"command":"ls"}`, uses[0].InputJSON)
}

func TestParser_TextInterleavedWithToolUse(t *testing.T) {
	p := NewParser()

	events := feed(p,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Let me check. "}}`,
		`{"type":"content_block_start","content_block":{"type":"tool_use","id":"toolu_02","name":"Read"}}`,
		`{"type":"content_block_stop"}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Found it."}}`,
	)

	require.Len(t, events, 4)
	assert.Equal(t, EventText, events[0].Type)
	assert.Equal(t, EventToolUseStart, events[1].Type)
	assert.Equal(t, EventToolUseEnd, events[2].Type)
	assert.Equal(t, EventText, events[3].Type)
	assert.Equal(t, "Let me check. Found it.", p.Response())
}

func TestParser_NonToolBlockStartIgnored(t *testing.T) {
	p := NewParser()

	events := feed(p,
		`{"type":"content_block_start","content_block":{"type":"text"}}`,
	)
	assert.Empty(t, events)
	assert.Empty(t, p.ToolUses())
}

func TestParser_StopWithoutOpenBlockIgnored(t *testing.T) {
	p := NewParser()

	events := feed(p, `{"type":"content_block_stop"}`)
	assert.Empty(t, events)
}

func TestParser_ResultUsedWhenNothingStreamed(t *testing.T) {
	p := NewParser()

	events := feed(p, `{"type":"result","result":"the final answer"}`)
	assert.Empty(t, events)
	assert.Equal(t, "the final answer", p.Response())
}

func TestParser_ResultIgnoredWhenTextAlreadyStreamed(t *testing.T) {
	p := NewParser()

	feed(p,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"streamed text"}}`,
		`{"type":"result","result":"summary that must not replace the stream"}`,
	)
	assert.Equal(t, "streamed text", p.Response())
}

func TestParser_ErrorRecord(t *testing.T) {
	p := NewParser()

	events := feed(p, `{"type":"error","error":{"message":"rate limited"}}`)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, "rate limited", events[0].Text)
}

func TestParser_ErrorRecordWithoutMessage(t *testing.T) {
	p := NewParser()

	events := feed(p, `{"type":"error"}`)
	require.Len(t, events, 1)
	assert.Equal(t, "unknown error", events[0].Text)
}

func TestParser_MalformedLineDegradesToText(t *testing.T) {
	p := NewParser()

	events := feed(p, "  plain diagnostic output  ")
	assert.Empty(t, events)
	assert.Equal(t, "plain diagnostic output", p.Response())
}

func TestParser_BlankLinesIgnored(t *testing.T) {
	p := NewParser()

	events := feed(p, "", "   ", "\t")
	assert.Empty(t, events)
	assert.Equal(t, "", p.Response())
}

func TestParser_UnknownRecordTypeIgnored(t *testing.T) {
	p := NewParser()

	events := feed(p, `{"type":"system","subtype":"init"}`)
	assert.Empty(t, events)
	assert.Equal(t, "", p.Response())
}

func TestParser_MultipleToolUsesInStartOrder(t *testing.T) {
	p := NewParser()

	feed(p,
		`{"type":"content_block_start","content_block":{"type":"tool_use","id":"toolu_a","name":"Read"}}`,
		`{"type":"content_block_stop"}`,
		`{"type":"content_block_start","content_block":{"type":"tool_use","id":"toolu_b","name":"Write"}}`,
		`{"type":"content_block_stop"}`,
	)

	uses := p.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "toolu_a", uses[0].ID)
	assert.Equal(t, "toolu_b", uses[1].ID)
	assert.Equal(t, "completed", uses[0].Status)
	assert.Equal(t, "completed", uses[1].Status)
}

func TestParser_UnclosedToolUseStaysRunning(t *testing.T) {
	p := NewParser()

	feed(p, `{"type":"content_block_start","content_block":{"type":"tool_use","id":"toolu_c","name":"Bash"}}`)

	uses := p.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "running", uses[0].Status)
}
