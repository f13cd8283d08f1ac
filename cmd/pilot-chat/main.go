// ABOUTME: Interactive terminal chat client for a coven-pilot server
// ABOUTME: Streams turn events over the chat WebSocket and answers permission prompts

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/fatih/color"

	"github.com/2389/coven-pilot/internal/wire"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "coven-pilot server address")
	dir := flag.String("dir", "", "working directory for a new session (default: server's cwd)")
	sessionID := flag.String("session", "", "attach to an existing session instead of creating one")
	plan := flag.Bool("plan", false, "run turns in plan mode")
	flag.Parse()

	if err := run(*addr, *dir, *sessionID, *plan); err != nil {
		log.Fatal(err)
	}
}

// pendingPrompt tracks the permission request the user has been asked to
// answer. The next stdin line resolves it instead of being sent as a message.
type pendingPrompt struct {
	mu        sync.Mutex
	requestID string
}

func (p *pendingPrompt) set(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestID = id
}

func (p *pendingPrompt) take() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.requestID
	p.requestID = ""
	return id
}

func run(addr, dir, sessionID string, plan bool) error {
	ctx := context.Background()

	if sessionID == "" {
		var err error
		sessionID, err = createSession(ctx, addr, dir)
		if err != nil {
			return err
		}
	}

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws/chat/%s", addr, sessionID), nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(4 << 20) // final response events can be large

	var writeMu sync.Mutex
	send := func(event *wire.Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return wsjson.Write(ctx, conn, event)
	}

	pending := &pendingPrompt{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		readEvents(ctx, conn, pending)
	}()

	gray := color.New(color.FgHiBlack)
	gray.Printf("session %s — type a message, /quit to exit\n", sessionID)

	mode := "normal"
	if plan {
		mode = "plan"
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// An unanswered permission prompt claims the next line.
		if reqID := pending.take(); reqID != "" {
			if err := send(answerEvent(reqID, line)); err != nil {
				return err
			}
			continue
		}

		if line == "/quit" || line == "/exit" {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			if err := runCommand(ctx, addr, sessionID, line); err != nil {
				color.Red("command failed: %v", err)
			}
			continue
		}

		if err := send(&wire.Event{Type: wire.TypeMessage, Content: line, Mode: mode}); err != nil {
			return err
		}

		select {
		case <-done:
			return fmt.Errorf("connection closed")
		default:
		}
	}
}

// readEvents renders server events until the connection drops.
func readEvents(ctx context.Context, conn *websocket.Conn, pending *pendingPrompt) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)

	for {
		var ev wire.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return
		}

		switch ev.Type {
		case wire.TypeConnected:
			gray.Printf("connected (working dir: %s)\n", ev.WorkingDir)
		case wire.TypeTyping:
			// quiet; the stream itself shows progress
		case wire.TypeTextDelta:
			fmt.Print(ev.Content)
		case wire.TypeToolUse:
			if ev.Status == "running" {
				gray.Printf("\n[%s…]", ev.ToolName)
			} else {
				gray.Printf(" done\n")
			}
		case wire.TypeResponse:
			fmt.Println()
			if len(ev.ToolUses) > 0 {
				gray.Printf("(%d tool uses)\n", len(ev.ToolUses))
			}
		case wire.TypeError:
			color.Red("\nerror: %s", ev.Content)
		case wire.TypePermissionRequest:
			pending.set(ev.RequestID)
			fmt.Println()
			yellow.Printf("permission: %s", ev.Description)
			if ev.Command != "" {
				cyan.Printf("  $ %s", ev.Command)
			}
			if ev.Path != "" {
				cyan.Printf("  %s", ev.Path)
			}
			fmt.Println()
			yellow.Print("allow? [y]es once / [a]lways this session / [n]o: ")
		case wire.TypePong:
		}
	}
}

// answerEvent turns a one-letter reply into a permission_response event.
// Anything unrecognized denies.
func answerEvent(requestID, line string) *wire.Event {
	allowed := false
	scope := "once"
	switch strings.ToLower(line) {
	case "y", "yes":
		allowed = true
	case "a", "always":
		allowed = true
		scope = "session"
	}
	return &wire.Event{
		Type:      wire.TypePermissionResponse,
		RequestID: requestID,
		Allowed:   &allowed,
		Scope:     scope,
	}
}

// createSession provisions a session through the REST API.
func createSession(ctx context.Context, addr, dir string) (string, error) {
	body, _ := json.Marshal(map[string]string{"working_dir": dir})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/api/sessions", addr), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("creating session: status %d", resp.StatusCode)
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// runCommand executes a built-in slash command via the REST API and prints
// the result.
func runCommand(ctx context.Context, addr, sessionID, command string) error {
	body, _ := json.Marshal(map[string]string{"command": command})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/api/sessions/%s/command", addr, sessionID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	if result.Success {
		fmt.Println(result.Content)
	} else {
		color.Yellow("%s", result.Content)
	}
	return nil
}
