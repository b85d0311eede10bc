package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bastiangx/subserve/internal/utils"
	"github.com/bastiangx/subserve/pkg/config"
	"github.com/bastiangx/subserve/pkg/scope"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// viewTracker is implemented by suggesters that track editor views.
type viewTracker interface {
	AttachView(id suggest.BufferID, view string) bool
	DetachView(id suggest.BufferID, view string) bool
}

// extraSetter is implemented by suggesters whose scope rules can be swapped.
type extraSetter interface {
	SetExtraSource(extras suggest.ExtraSource)
}

// Server handles the IPC for buffer suggestions
type Server struct {
	suggester  suggest.Suggester
	config     *config.Config
	configPath string
	docs       map[suggest.BufferID]*Document

	decoder *msgpack.Decoder
	writer  *bufio.Writer
	encoder *msgpack.Encoder

	requestCount int
}

// NewServer creates a server using stdin/stdout for IPC
func NewServer(suggester suggest.Suggester, cfg *config.Config, configPath string) *Server {
	return NewServerWithIO(suggester, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server reading requests from r and writing
// responses to w.
func NewServerWithIO(suggester suggest.Suggester, cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	bw := bufio.NewWriter(w)
	return &Server{
		suggester:  suggester,
		config:     cfg,
		configPath: configPath,
		docs:       make(map[suggest.BufferID]*Document),
		decoder:    msgpack.NewDecoder(bufio.NewReader(r)),
		writer:     bw,
		encoder:    msgpack.NewEncoder(bw),
	}
}

// Start signals readiness and serves requests until the input ends.
func (s *Server) Start() error {
	log.Debug("Starting Server.")
	s.sendResponse(StatusResponse{Status: StatusReady})

	for {
		raw, err := s.decoder.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debugf("Input closed after %d requests", s.requestCount)
				return nil
			}
			return fmt.Errorf("reading request: %w", err)
		}
		s.requestCount++

		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			log.Errorf("Unmarshaling request: %v", err)
			s.sendError("", "Invalid msgpack request", 400)
			continue
		}
		s.handleRequest(req)
	}
}

func (s *Server) handleRequest(req Request) {
	log.Debugf("request %s op=%s buffer=%s", req.ID, req.Op, req.Buffer)
	switch req.Op {
	case OpOpen:
		s.handleOpen(req)
	case OpEdit:
		s.handleEdit(req)
	case OpSettle:
		s.handleSettle(req)
	case OpRename:
		s.reply(req.ID, s.suggester.Rename(suggest.BufferID(req.Buffer), req.Path))
	case OpClose:
		s.handleClose(req)
	case OpComplete:
		s.handleComplete(req)
	case OpConfig:
		s.handleConfig(req)
	case OpReload:
		s.handleReload(req)
	case OpHealth:
		s.sendResponse(StatusResponse{ID: req.ID, Status: StatusOK, Stats: s.suggester.Stats()})
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown op: %s", req.Op), 400)
	}
}

func (s *Server) handleOpen(req Request) {
	if req.Buffer == "" {
		s.sendError(req.ID, "Missing 'buffer' parameter", 400)
		return
	}
	id := suggest.BufferID(req.Buffer)
	doc, ok := s.docs[id]
	if ok && req.View != "" {
		// another view of an open buffer keeps the server's copy
		if vt, isTracker := s.suggester.(viewTracker); isTracker && vt.AttachView(id, req.View) {
			if req.Path != "" {
				s.suggester.Rename(id, req.Path)
			}
			s.reply(req.ID, true)
			return
		}
	}
	if !ok {
		doc = NewDocument(req.Text)
		s.docs[id] = doc
	}
	s.suggester.Watch(id, suggest.WatchOptions{
		Path:    req.Path,
		Session: req.Session,
		View:    req.View,
		Source:  doc,
	})
	s.reply(req.ID, true)
}

func (s *Server) handleEdit(req Request) {
	doc, ok := s.docs[suggest.BufferID(req.Buffer)]
	if !ok {
		s.reply(req.ID, false)
		return
	}
	if err := doc.Replace(req.Start, req.End, req.Lines); err != nil {
		s.sendError(req.ID, err.Error(), 400)
		return
	}
	s.reply(req.ID, true)
}

func (s *Server) handleSettle(req Request) {
	id := suggest.BufferID(req.Buffer)
	doc, ok := s.docs[id]
	if !ok {
		s.reply(req.ID, false)
		return
	}
	s.reply(req.ID, s.suggester.Settle(id, doc.TakeChange(req.Cursor)))
}

func (s *Server) handleClose(req Request) {
	id := suggest.BufferID(req.Buffer)
	closed := false
	if d, ok := s.suggester.(viewTracker); ok && req.View != "" {
		closed = d.DetachView(id, req.View)
	} else {
		closed = s.suggester.Unwatch(id)
	}
	if closed {
		delete(s.docs, id)
	}
	s.reply(req.ID, closed)
}

// handleComplete validates the request, queries the suggester and sends the
// ranked suggestions.
func (s *Server) handleComplete(req Request) {
	if maxPrefix := s.config.Server.MaxPrefix; maxPrefix > 0 && utils.RuneLen(req.Prefix) > maxPrefix {
		s.sendError(req.ID, fmt.Sprintf("Prefix exceeds maximum length of %d characters", maxPrefix), 400)
		log.Debug("Prefix is too long in request")
		return
	}

	limit := req.Limit
	if maxLimit := s.config.Server.MaxLimit; maxLimit > 0 && (limit < 1 || limit > maxLimit) {
		limit = maxLimit
	}

	q := suggest.Query{
		Buffer:  suggest.BufferID(req.Buffer),
		Cursors: cursorPositions(req.Cursors),
		Scope:   suggest.ScopeDescriptor(req.Scope),
		Prefix:  req.Prefix,
		Limit:   limit,
	}

	start := time.Now()
	suggestions := s.suggester.GetSuggestions(context.Background(), q)
	elapsed := time.Since(start)

	s.sendResponse(CompletionResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		TimeTaken:   elapsed.Milliseconds(),
	})
}

// handleConfig applies option changes and persists them to the config file
// the server was started with.
func (s *Server) handleConfig(req Request) {
	if req.MinWordLength != nil && *req.MinWordLength < 0 {
		s.sendError(req.ID, "min_word_length must not be negative", 400)
		return
	}
	if err := s.config.Update(s.configPath, req.MinWordLength, req.AllBuffers, req.Unicode); err != nil {
		log.Errorf("Saving config to %s: %v", s.configPath, err)
		s.sendError(req.ID, "Failed to save config", 500)
		return
	}
	s.suggester.SetOptions(s.config.Options())
	s.reply(req.ID, true)
}

// handleReload re-reads the config file and applies its options and scope
// rules to the running suggester.
func (s *Server) handleReload(req Request) {
	if s.configPath == "" || !utils.FileExists(s.configPath) {
		s.sendError(req.ID, "No config file to reload", 400)
		return
	}
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		log.Errorf("Reloading config from %s: %v", s.configPath, err)
		s.sendError(req.ID, "Failed to reload config", 500)
		return
	}
	s.config = cfg
	s.suggester.SetOptions(cfg.Options())
	if es, ok := s.suggester.(extraSetter); ok {
		resolver := scope.FromConfig(cfg.Scopes)
		es.SetExtraSource(resolver)
		log.Debugf("Reloaded %d scope rules from %s", resolver.Len(), s.configPath)
	}
	s.reply(req.ID, true)
}

// cursorPositions converts [row, col] pairs, skipping malformed ones.
func cursorPositions(pairs [][]int) []suggest.Position {
	positions := make([]suggest.Position, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 || p[0] < 0 || p[1] < 0 {
			continue
		}
		positions = append(positions, suggest.Position{Row: p[0], Column: p[1]})
	}
	return positions
}

func (s *Server) reply(id string, applied bool) {
	status := StatusOK
	if !applied {
		status = StatusIgnored
	}
	s.sendResponse(StatusResponse{ID: id, Status: status})
}

// sendResponse encodes one msgpack message and flushes it.
func (s *Server) sendResponse(response any) {
	if err := s.encoder.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		log.Errorf("Writing response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.sendResponse(CompletionError{ID: id, Error: message, Code: code})
}
