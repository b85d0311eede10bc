package server

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/subserve/pkg/config"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.ErrorLevel)
	goleak.VerifyTestMain(m)
}

// session runs requests through a fresh server and returns the decoded
// responses, the ready frame excluded.
func session(t *testing.T, provider *suggest.Provider, cfg *config.Config, requests ...any) []map[string]any {
	t.Helper()
	return sessionAt(t, provider, cfg, "", requests...)
}

// sessionAt is session for a server started with a config file path.
func sessionAt(t *testing.T, provider *suggest.Provider, cfg *config.Config, configPath string, requests ...any) []map[string]any {
	t.Helper()
	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, r := range requests {
		require.NoError(t, enc.Encode(r))
	}

	var out bytes.Buffer
	srv := NewServerWithIO(provider, cfg, configPath, &in, &out)
	require.NoError(t, srv.Start())

	dec := msgpack.NewDecoder(&out)
	var frames []map[string]any
	for out.Len() > 0 {
		var frame map[string]any
		require.NoError(t, dec.Decode(&frame))
		frames = append(frames, frame)
	}
	require.NotEmpty(t, frames)
	assert.Equal(t, StatusReady, frames[0]["status"])
	return frames[1:]
}

func testProvider() *suggest.Provider {
	opts := suggest.DefaultOptions()
	opts.MinimumWordLength = 0
	return suggest.NewProvider(opts, nil)
}

func suggestionTexts(t *testing.T, frame map[string]any) []string {
	t.Helper()
	list, ok := frame["s"].([]any)
	require.True(t, ok, "frame %v has no suggestions", frame)
	texts := make([]string, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		require.True(t, ok)
		texts = append(texts, m["t"].(string))
	}
	return texts
}

func TestOpenEditSettleComplete(t *testing.T) {
	provider := testProvider()
	frames := session(t, provider, nil,
		Request{ID: "1", Op: OpOpen, Buffer: "b1", Path: "sort.js", Text: "var quicksort = function () {\n}\n"},
		Request{ID: "2", Op: OpComplete, Buffer: "b1", Prefix: "anew"},
		Request{ID: "3", Op: OpEdit, Buffer: "b1", Start: 2, End: 2, Lines: []string{"function aNewFunction() {}"}},
		Request{ID: "4", Op: OpComplete, Buffer: "b1", Prefix: "anew"},
		Request{ID: "5", Op: OpSettle, Buffer: "b1", Cursor: 2},
		Request{ID: "6", Op: OpComplete, Buffer: "b1", Prefix: "anew", Cursors: [][]int{{0, 0}}},
		Request{ID: "7", Op: OpComplete, Buffer: "b1", Prefix: "qsrt"},
	)
	require.Len(t, frames, 7)

	assert.Equal(t, StatusOK, frames[0]["status"])
	assert.Empty(t, suggestionTexts(t, frames[1]))
	assert.Equal(t, StatusOK, frames[2]["status"])
	// edits reach the index only once settled
	assert.Empty(t, suggestionTexts(t, frames[3]))
	assert.Equal(t, StatusOK, frames[4]["status"])
	assert.Equal(t, []string{"aNewFunction"}, suggestionTexts(t, frames[5]))
	assert.Equal(t, []string{"quicksort"}, suggestionTexts(t, frames[6]))
	assert.EqualValues(t, 1, frames[6]["c"])
	assert.Equal(t, "7", frames[6]["id"])
}

func TestUnknownBufferAndOp(t *testing.T) {
	frames := session(t, testProvider(), nil,
		Request{ID: "1", Op: OpComplete, Buffer: "missing", Prefix: "abc"},
		Request{ID: "2", Op: OpEdit, Buffer: "missing", Lines: []string{"x"}},
		Request{ID: "3", Op: OpSettle, Buffer: "missing"},
		Request{ID: "4", Op: OpRename, Buffer: "missing", Path: "x"},
		Request{ID: "5", Op: "frobnicate"},
	)
	require.Len(t, frames, 5)

	assert.Empty(t, suggestionTexts(t, frames[0]))
	assert.Equal(t, StatusIgnored, frames[1]["status"])
	assert.Equal(t, StatusIgnored, frames[2]["status"])
	assert.Equal(t, StatusIgnored, frames[3]["status"])
	assert.EqualValues(t, 400, frames[4]["c"])
	assert.Equal(t, "Unknown op: frobnicate", frames[4]["e"])
}

func TestInvalidRequestKeepsServing(t *testing.T) {
	frames := session(t, testProvider(), nil,
		"not a map",
		Request{ID: "2", Op: OpHealth},
	)
	require.Len(t, frames, 2)
	assert.EqualValues(t, 400, frames[0]["c"])
	assert.Equal(t, StatusOK, frames[1]["status"])
	assert.Contains(t, frames[1], "stats")
}

func TestEditOutOfRange(t *testing.T) {
	frames := session(t, testProvider(), nil,
		Request{ID: "1", Op: OpOpen, Buffer: "b1", Text: "one"},
		Request{ID: "2", Op: OpEdit, Buffer: "b1", Start: 3, End: 5},
	)
	require.Len(t, frames, 2)
	assert.EqualValues(t, 400, frames[1]["c"])
}

func TestCloseWithViews(t *testing.T) {
	provider := testProvider()
	frames := session(t, provider, nil,
		Request{ID: "1", Op: OpOpen, Buffer: "b1", View: "left", Text: "alpha"},
		Request{ID: "2", Op: OpOpen, Buffer: "b1", View: "right"},
		Request{ID: "3", Op: OpClose, Buffer: "b1", View: "left"},
		Request{ID: "4", Op: OpComplete, Buffer: "b1", Prefix: "alp"},
		Request{ID: "5", Op: OpClose, Buffer: "b1", View: "right"},
		Request{ID: "6", Op: OpComplete, Buffer: "b1", Prefix: "alp"},
	)
	require.Len(t, frames, 6)

	assert.Equal(t, StatusIgnored, frames[2]["status"])
	assert.Equal(t, []string{"alpha"}, suggestionTexts(t, frames[3]))
	assert.Equal(t, StatusOK, frames[4]["status"])
	assert.Empty(t, suggestionTexts(t, frames[5]))
	_, ok := provider.Buffer("b1")
	assert.False(t, ok)
}

func TestLimitAndPrefixBounds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxLimit = 2
	cfg.Server.MaxPrefix = 4
	frames := session(t, testProvider(), cfg,
		Request{ID: "1", Op: OpOpen, Buffer: "b1", Text: "abc1 abc2 abc3 abc4"},
		Request{ID: "2", Op: OpComplete, Buffer: "b1", Prefix: "abc", Limit: 50},
		Request{ID: "3", Op: OpComplete, Buffer: "b1", Prefix: "abcde"},
	)
	require.Len(t, frames, 3)
	assert.Equal(t, []string{"abc1", "abc2"}, suggestionTexts(t, frames[1]))
	assert.EqualValues(t, 400, frames[2]["c"])
}

func TestConfigOp(t *testing.T) {
	provider := suggest.NewProvider(suggest.DefaultOptions(), nil)
	cfg := config.DefaultConfig()
	path := filepath.Join(t.TempDir(), "config.toml")

	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	minLen := 1
	require.NoError(t, enc.Encode(Request{ID: "1", Op: OpOpen, Buffer: "b1", Text: "ab"}))
	require.NoError(t, enc.Encode(Request{ID: "2", Op: OpConfig, MinWordLength: &minLen}))
	require.NoError(t, enc.Encode(Request{ID: "3", Op: OpComplete, Buffer: "b1", Prefix: "a"}))

	var out bytes.Buffer
	require.NoError(t, NewServerWithIO(provider, cfg, path, &in, &out).Start())

	assert.Equal(t, 1, provider.Options().MinimumWordLength)
	saved, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Suggest.MinimumWordLength)

	dec := msgpack.NewDecoder(&out)
	var frame map[string]any
	for i := 0; i < 4; i++ {
		require.NoError(t, dec.Decode(&frame))
	}
	assert.Equal(t, []string{"ab"}, suggestionTexts(t, frame))
}

func TestOpenAnotherViewKeepsText(t *testing.T) {
	provider := testProvider()
	frames := session(t, provider, nil,
		Request{ID: "1", Op: OpOpen, Buffer: "b1", View: "left", Path: "a.js", Text: "alpha"},
		Request{ID: "2", Op: OpEdit, Buffer: "b1", Start: 1, End: 1, Lines: []string{"alphabet"}},
		Request{ID: "3", Op: OpSettle, Buffer: "b1", Cursor: 1},
		Request{ID: "4", Op: OpOpen, Buffer: "b1", View: "right", Path: "b.js", Text: "stale"},
		Request{ID: "5", Op: OpComplete, Buffer: "b1", Prefix: "alp"},
		Request{ID: "6", Op: OpComplete, Buffer: "b1", Prefix: "stl"},
	)
	require.Len(t, frames, 6)

	assert.Equal(t, StatusOK, frames[3]["status"])
	assert.Equal(t, []string{"alpha", "alphabet"}, suggestionTexts(t, frames[4]))
	assert.Empty(t, suggestionTexts(t, frames[5]))

	wb, ok := provider.Buffer("b1")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"left", "right"}, wb.Views())
	assert.Equal(t, "b.js", wb.Path)
}

func TestReloadOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[suggest]
minimum_word_length = 2

[[scope]]
selector = ".source.js"
completions = ["abstract"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	provider := testProvider()
	frames := sessionAt(t, provider, config.DefaultConfig(), path,
		Request{ID: "1", Op: OpOpen, Buffer: "b1", Text: "var about"},
		Request{ID: "2", Op: OpComplete, Buffer: "b1", Prefix: "ab", Scope: []string{"source.js"}},
		Request{ID: "3", Op: OpReload},
		Request{ID: "4", Op: OpComplete, Buffer: "b1", Prefix: "ab", Scope: []string{"source.js"}},
		Request{ID: "5", Op: OpComplete, Buffer: "b1", Prefix: "a", Scope: []string{"source.js"}},
	)
	require.Len(t, frames, 5)

	assert.Equal(t, []string{"about"}, suggestionTexts(t, frames[1]))
	assert.Equal(t, StatusOK, frames[2]["status"])
	assert.Equal(t, []string{"abstract", "about"}, suggestionTexts(t, frames[3]))
	assert.Empty(t, suggestionTexts(t, frames[4]))
	assert.Equal(t, 2, provider.Options().MinimumWordLength)
}

func TestReloadWithoutConfigFile(t *testing.T) {
	frames := session(t, testProvider(), nil, Request{ID: "1", Op: OpReload})
	require.Len(t, frames, 1)
	assert.EqualValues(t, 400, frames[0]["c"])
	assert.Equal(t, "1", frames[0]["id"])
}
