/*
Package server implements msgpack IPC for buffer word suggestions.

The server keeps a copy of every buffer the client opens, mirrors its edits,
and answers completion requests from the live word index of those buffers.

# IPC

The server operates on a request response model: clients write msgpack maps
to stdin and read one msgpack map per request from stdout. Each message
carries an ID and an op; the other fields depend on the op.

A buffer is opened with its full text, then kept in sync with row edits:

	{"id": "1", "op": "open", "buffer": "b1", "path": "main.go", "text": "package main\n..."}
	{"id": "2", "op": "edit", "buffer": "b1", "start": 3, "end": 4, "lines": ["func quicksort() {"]}
	{"id": "3", "op": "settle", "buffer": "b1", "cursor": 3}

Edits are applied immediately but only reach the word index on settle, so
clients send settle once typing pauses. Completion requests carry the
cursor context:

	{"id": "4", "op": "complete", "buffer": "b1", "cursors": [[3, 8]], "scope": ["source.go"], "p": "qsrt", "l": 10}

The server responds with suggestions in rank order:

	{"id": "4", "s": [{"t": "quicksort", "y": ""}], "c": 1, "ms": 0}

Opening a buffer that is already open under another view attaches the view
and keeps the server's copy of the text. Other ops are rename, close,
config, reload (re-read the config file, scope rules included) and health. Failed requests are answered
with an error frame:

	{"id": "5", "e": "unknown op: frobnicate", "c": 400}
*/
package server

import "github.com/bastiangx/subserve/pkg/suggest"

// Ops understood by the server.
const (
	OpOpen     = "open"
	OpEdit     = "edit"
	OpSettle   = "settle"
	OpRename   = "rename"
	OpClose    = "close"
	OpComplete = "complete"
	OpConfig   = "config"
	OpReload   = "reload"
	OpHealth   = "health"
)

// Request is the union of every op's fields.
type Request struct {
	ID     string `msgpack:"id"`
	Op     string `msgpack:"op"`
	Buffer string `msgpack:"buffer,omitempty"`

	// open, rename
	Path    string `msgpack:"path,omitempty"`
	Session string `msgpack:"session,omitempty"`
	View    string `msgpack:"view,omitempty"`
	Text    string `msgpack:"text,omitempty"`

	// edit, settle
	Start  int      `msgpack:"start,omitempty"`
	End    int      `msgpack:"end,omitempty"`
	Lines  []string `msgpack:"lines,omitempty"`
	Cursor int      `msgpack:"cursor,omitempty"`

	// complete
	Cursors [][]int  `msgpack:"cursors,omitempty"`
	Scope   []string `msgpack:"scope,omitempty"`
	Prefix  string   `msgpack:"p,omitempty"`
	Limit   int      `msgpack:"l,omitempty"`

	// config
	MinWordLength *int  `msgpack:"min_word_length,omitempty"`
	AllBuffers    *bool `msgpack:"all_buffers,omitempty"`
	Unicode       *bool `msgpack:"unicode,omitempty"`
}

// CompletionResponse - completion response
type CompletionResponse struct {
	ID          string               `msgpack:"id"`
	Suggestions []suggest.Suggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
	TimeTaken   int64                `msgpack:"ms"`
}

// StatusResponse answers every op other than complete.
type StatusResponse struct {
	ID     string         `msgpack:"id"`
	Status string         `msgpack:"status"`
	Stats  map[string]int `msgpack:"stats,omitempty"`
}

// CompletionError holds basic error information for failed requests
type CompletionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}

// Status values.
const (
	StatusReady   = "ready"
	StatusOK      = "ok"
	StatusIgnored = "ignored"
)
