//go:build test

package suggest

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"
	"testing"
	"time"
)

var leakPrefixes = []string{
	"q", "qs", "qsr", "qsrt",
	"p", "pi", "piv", "pivot",
	"it", "itm", "items",
	"fn", "fnc", "function",
	"rt", "rtn", "return",
}

func leakProvider(t *testing.T, buffers int) (*Provider, []*Lines) {
	t.Helper()
	p := NewProvider(DefaultOptions(), nil)
	all := make([]*Lines, buffers)
	for i := range all {
		lines := SplitLines(strings.Repeat(sampleJS, 20))
		all[i] = &lines
		p.Watch(BufferID(fmt.Sprintf("leak-%d.js", i)), WatchOptions{Session: "leak", Source: &lines})
	}
	return p, all
}

func TestMemoryLeakBasic(t *testing.T) {
	for _, iterCount := range []int{100, 500, 1000} {
		t.Run(fmt.Sprintf("iterations_%d", iterCount), func(t *testing.T) {
			runBasicMemoryTest(t, iterCount)
		})
	}
}

func TestMemoryLeakConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 400},
		{workers: 4, iterationsPerWorker: 100},
		{workers: 8, iterationsPerWorker: 50},
	}

	for _, config := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", config.workers, config.iterationsPerWorker), func(t *testing.T) {
			runConcurrentMemoryTest(t, config.workers, config.iterationsPerWorker)
		})
	}
}

func TestMemoryStabilityEditCycles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running memory stability test in short mode")
	}
	runEditCycleMemoryTest(t, 50, 200)
}

func runBasicMemoryTest(t *testing.T, iterations int) {
	p, _ := leakProvider(t, 1)
	defer p.Unwatch("leak-0.js")

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	for i := 0; i < iterations; i++ {
		for _, prefix := range leakPrefixes {
			_ = p.GetSuggestions(context.Background(), Query{Buffer: "leak-0.js", Prefix: prefix, Limit: 10})
		}
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)

	memDelta := int64(final.Alloc) - int64(baseline.Alloc)
	goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
	totalOps := iterations * len(leakPrefixes)
	memPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("iterations=%d ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
		iterations, totalOps, memDelta, memPerOp, goroutineDelta)

	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runConcurrentMemoryTest(t *testing.T, workers, iterationsPerWorker int) {
	memFile, err := os.Create("concurrent_memory.prof")
	if err != nil {
		t.Fatalf("profile file creation failed: %v", err)
	}
	defer func() {
		memFile.Close()
		os.Remove("concurrent_memory.prof")
	}()

	p, _ := leakProvider(t, workers)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(id BufferID) {
			defer wg.Done()
			for iter := 0; iter < iterationsPerWorker; iter++ {
				for _, prefix := range leakPrefixes {
					_ = p.GetSuggestions(context.Background(), Query{Buffer: id, Prefix: prefix, Limit: 10})
				}
				p.Reindex(id, iter)
			}
		}(BufferID(fmt.Sprintf("leak-%d.js", worker)))
	}
	wg.Wait()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)

	totalOps := workers * iterationsPerWorker * len(leakPrefixes)
	memDelta := int64(final.Alloc) - int64(baseline.Alloc)
	goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
	memPerOp := float64(memDelta) / float64(totalOps)

	t.Logf("workers=%d iter_per_worker=%d total_ops=%d mem_delta=%d bytes mem_per_op=%.2f goroutine_delta=%d",
		workers, iterationsPerWorker, totalOps, memDelta, memPerOp, goroutineDelta)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}
	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 3 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}

	for _, id := range p.Buffers() {
		p.Unwatch(id)
	}
}

// runEditCycleMemoryTest types and deletes a line over and over; the index
// must not grow with the number of edits.
func runEditCycleMemoryTest(t *testing.T, cycles, opsPerCycle int) {
	p, all := leakProvider(t, 1)
	lines := all[0]
	defer p.Unwatch("leak-0.js")

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)
	baselineGoroutines := runtime.NumGoroutine()

	maxMemDelta := int64(0)
	totalOps := 0
	for cycle := 0; cycle < cycles; cycle++ {
		for op := 0; op < opsPerCycle; op++ {
			row := op % lines.LineCount()
			word := fmt.Sprintf("transient%d", op)
			saved := (*lines)[row]
			(*lines)[row] = saved + " " + word
			p.Settle("leak-0.js", Change{StartRow: row, EndRow: row + 1, TotalRows: lines.LineCount(), CursorRow: row})
			_ = p.GetSuggestions(context.Background(), Query{Buffer: "leak-0.js", Prefix: "trns", Limit: 10})
			(*lines)[row] = saved
			p.Settle("leak-0.js", Change{StartRow: row, EndRow: row + 1, TotalRows: lines.LineCount(), CursorRow: row})
			totalOps++
		}

		if cycle%10 == 0 {
			var m runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&m)
			memDelta := int64(m.Alloc) - int64(baseline.Alloc)
			if memDelta > maxMemDelta {
				maxMemDelta = memDelta
			}
			t.Logf("cycle=%d ops=%d mem_delta=%d bytes words=%d",
				cycle, totalOps, memDelta, p.Stats()["words"])
		}
		time.Sleep(time.Millisecond)
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	finalMemDelta := int64(final.Alloc) - int64(baseline.Alloc)
	finalGoroutineDelta := runtime.NumGoroutine() - baselineGoroutines

	t.Logf("final_summary: cycles=%d total_ops=%d mem_delta=%d bytes goroutine_delta=%d max_mem_delta=%d",
		cycles, totalOps, finalMemDelta, finalGoroutineDelta, maxMemDelta)

	if got := p.GetSuggestions(context.Background(), Query{Buffer: "leak-0.js", Prefix: "trns"}); len(got) != 0 {
		t.Errorf("transient words still indexed: %d", len(got))
	}
	if finalGoroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", finalGoroutineDelta)
	}
	if maxMemDelta > 10*1024*1024 {
		t.Errorf("excessive peak memory usage: %d bytes", maxMemDelta)
	}
}
