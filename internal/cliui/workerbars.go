package cliui

import (
	"os"
	"strconv"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// WorkerBars renders one progress bar per Fidelity Verifier worker, so a
// concurrent canary-scan or adjudication batch shows per-worker throughput
// instead of one aggregate counter. cmd/orchestrator/ui has no multi-bar
// equivalent; this is the pack's only vbauerster/mpb/v8 consumer.
type WorkerBars struct {
	progress *mpb.Progress
	bars     []*mpb.Bar
}

// NewWorkerBars creates a WorkerBars with one bar per worker, each counting
// up to total (the number of documents assigned to that worker).
func NewWorkerBars(workers int, total int64) *WorkerBars {
	p := mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(40))
	wb := &WorkerBars{progress: p, bars: make([]*mpb.Bar, workers)}
	for i := 0; i < workers; i++ {
		name := workerName(i)
		wb.bars[i] = p.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
		)
	}
	return wb
}

// Increment advances worker i's bar by one, taking elapsed since the
// worker's last completed unit (used for ETA decor accuracy).
func (wb *WorkerBars) Increment(worker int, elapsed time.Duration) {
	if worker < 0 || worker >= len(wb.bars) {
		return
	}
	wb.bars[worker].IncrBy(1, elapsed)
}

// Wait blocks until every bar has reached its total, matching mpb's
// expected shutdown sequence.
func (wb *WorkerBars) Wait() {
	wb.progress.Wait()
}

func workerName(i int) string {
	return "worker-" + strconv.Itoa(i)
}
