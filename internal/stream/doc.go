// ABOUTME: Package documentation for the stream-json protocol parser
// ABOUTME: Explains record kinds, event mapping, and the nesting limitation

// Package stream decodes the agent CLI's incremental stream-json output
// into typed events.
//
// # Overview
//
// When the agent runs with `--output-format stream-json --verbose`, it
// emits one self-describing JSON object per line. The Decoder pulls raw
// lines from the process stdout; the Parser turns each line into zero or
// more events while assembling the final response text:
//
//	dec := stream.NewDecoder(stdout)
//	p := stream.NewParser()
//	for {
//		line, err := dec.Next()
//		if err != nil {
//			break
//		}
//		for _, ev := range p.ParseLine(line) {
//			// handle ev
//		}
//	}
//	text := p.Response()
//
// # Record kinds
//
//   - assistant: complete message with text content blocks
//   - content_block_start: a text or tool_use block begins
//   - content_block_delta: text_delta or input_json_delta fragment
//   - content_block_stop: the current block ends
//   - result: terminal summary (used as the whole response when no text
//     streamed before it)
//   - error: agent-reported error; parsing continues
//
// Lines that fail to decode as JSON are kept as plain diagnostic text in
// the response buffer rather than discarded.
//
// # Known limitation
//
// content_block_stop closes the most-recently-opened tool-use entry. If an
// agent interleaves two open tool blocks, the stop events are attributed in
// LIFO order, which may not match the agent's intent. The CLI does not emit
// nested tool blocks today, so this is accepted.
package stream
