package suggest

import "context"

// Suggester is the surface the IPC server and the CLI drive.
type Suggester interface {
	// Watch starts tracking a buffer, or re-associates an existing one
	Watch(id BufferID, opts WatchOptions) *WatchedBuffer

	// Unwatch forgets a closed buffer
	Unwatch(id BufferID) bool

	// Rename updates buffer metadata, the index survives
	Rename(id BufferID, path string) bool

	// Settle delivers a settled change notification
	Settle(id BufferID, change Change) bool

	// GetSuggestions answers a cursor context query
	GetSuggestions(ctx context.Context, q Query) []Suggestion

	Options() Options
	SetOptions(opts Options)

	// Stats returns counters about the watched buffers
	Stats() map[string]int
}

var _ Suggester = (*Provider)(nil)
