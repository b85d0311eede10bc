// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/subserve/internal/logger"
	"github.com/bastiangx/subserve/internal/utils"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	wordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	typeStyle  = lipgloss.NewStyle().Faint(true)
	labelStyle = lipgloss.NewStyle().Italic(true)
)

// InputHandler reads queries from stdin and prints the suggestions for the
// current buffer. A query is a prefix optionally followed by a cursor and
// scope names:
//
//	qsrt
//	qsrt @12:4 source.js comment.line.double-slash.js
//
// Lines starting with ':' are commands: :buffers, :buffer <path>, :stats.
type InputHandler struct {
	provider     *suggest.Provider
	workspace    *Workspace
	out          *log.Logger
	current      suggest.BufferID
	suggestLimit int
	requestCount int
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(provider *suggest.Provider, ws *Workspace, limit int) *InputHandler {
	h := &InputHandler{
		provider:     provider,
		workspace:    ws,
		out:          logger.NewWithConfig(os.Stdout, "", log.InfoLevel, false, false, log.TextFormatter),
		suggestLimit: limit,
	}
	if files := ws.Files(); len(files) > 0 {
		h.current = suggest.BufferID(files[0])
	}
	return h
}

// SetOutput redirects the printed results.
func (h *InputHandler) SetOutput(w io.Writer) {
	h.out = logger.NewWithConfig(w, "", log.InfoLevel, false, false, log.TextFormatter)
}

// Start begins the interface loop on stdin.
func (h *InputHandler) Start() error {
	h.out.Print("SubServe CLI [BETA]")
	h.out.Printf("%d buffers loaded, current: %s", len(h.workspace.Files()), h.displayName(h.current))
	h.out.Print("type a prefix and press Enter to see the suggestions (Ctrl+C to exit):")
	return h.Run(os.Stdin)
}

// Run processes lines from r until it ends.
func (h *InputHandler) Run(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			h.handleInput(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (h *InputHandler) handleInput(line string) {
	if strings.HasPrefix(line, ":") {
		h.handleCommand(strings.Fields(line[1:]))
		return
	}
	h.requestCount++

	q, err := parseQuery(line)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	q.Buffer = h.current
	q.Limit = h.suggestLimit

	start := time.Now()
	suggestions := h.provider.GetSuggestions(context.Background(), q)
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for prefix '%s'", elapsed, q.Prefix)

	if len(suggestions) == 0 {
		log.Warnf("No suggestions found for prefix: '%s'", q.Prefix)
		return
	}

	h.out.Printf("Found %d suggestions for prefix '%s':", len(suggestions), q.Prefix)
	for i, s := range suggestions {
		line := fmt.Sprintf("%2d. %s", i+1, wordStyle.Render(s.Text))
		if s.Type != "" {
			line += " " + typeStyle.Render("("+s.Type+")")
		}
		if s.RightLabel != "" {
			line += " " + labelStyle.Render(s.RightLabel)
		}
		if s.Description != "" {
			line += " " + typeStyle.Render("- "+s.Description)
		}
		h.out.Print(line)
	}
}

func (h *InputHandler) handleCommand(args []string) {
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "buffers":
		for _, f := range h.workspace.Files() {
			marker := " "
			if suggest.BufferID(f) == h.current {
				marker = "*"
			}
			h.out.Printf("%s %s", marker, h.displayName(suggest.BufferID(f)))
		}
	case "buffer":
		if len(args) < 2 {
			log.Errorf("usage: :buffer <path>")
			return
		}
		abs, err := filepath.Abs(args[1])
		if err != nil || !h.workspace.Has(abs) {
			log.Errorf("Not a loaded buffer: %s", args[1])
			return
		}
		h.current = suggest.BufferID(abs)
		h.out.Printf("current: %s", h.displayName(h.current))
	case "stats":
		stats := h.provider.Stats()
		h.out.Printf("buffers: %d, words: %s, indexed rows: %s, queries: %d",
			stats["buffers"],
			utils.FormatWithCommas(stats["words"]),
			utils.FormatWithCommas(stats["indexedRows"]),
			h.requestCount)
	default:
		log.Errorf("Unknown command: %s", args[0])
	}
}

func (h *InputHandler) displayName(id suggest.BufferID) string {
	if id == "" {
		return "none"
	}
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, string(id)); err == nil {
			return rel
		}
	}
	return string(id)
}

// parseQuery reads `prefix [@row:col] [scope ...]`.
func parseQuery(line string) (suggest.Query, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return suggest.Query{}, errors.New("empty query")
	}
	q := suggest.Query{Prefix: fields[0]}
	rest := fields[1:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "@") {
		pos, err := parsePosition(rest[0][1:])
		if err != nil {
			return suggest.Query{}, err
		}
		q.Cursors = []suggest.Position{pos}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		q.Scope = suggest.ScopeDescriptor(rest)
	}
	return q, nil
}

func parsePosition(s string) (suggest.Position, error) {
	rowStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return suggest.Position{}, fmt.Errorf("cursor %q is not row:col", s)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil || row < 0 {
		return suggest.Position{}, fmt.Errorf("bad cursor row %q", rowStr)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 0 {
		return suggest.Position{}, fmt.Errorf("bad cursor column %q", colStr)
	}
	return suggest.Position{Row: row, Column: col}, nil
}
