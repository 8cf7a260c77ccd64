package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpserver "galleries/internal/mcp"
)

// noopEmitter is a no-op EventEmitter used in MCP-only mode (no Wails frontend).
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// It shares the desktop app's database, so edits show up in a running app
// and destructive tools wait for approval there.
func ServeMCP() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := newCore(noopEmitter{})
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer c.close()

	if view, err := c.resumeLastSession(ctx); err != nil {
		log.Printf("[MCP] could not reopen last session: %v", err)
	} else if view != nil {
		log.Printf("[MCP] reopened session %s", view.Session.ID)
	}

	mcpSrv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:   noopEmitter{},
		Sessions:  c.sessions,
		Feedback:  c.feedback,
		History:   c.history,
		Approvals: c.approvals, // Enable SQLite-based approval IPC
	})

	log.Println("[MCP] Starting standalone stdio server...")
	if err := mcpSrv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
