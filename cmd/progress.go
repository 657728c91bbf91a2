// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/gatb-go/gatbcore/dispatch"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// mpbProgress drives one mpb.Bar at a time behind pbs, the same
// single-container-multiple-bars pattern lexicmap/cmd/lib-index-build.go's
// buildAnIndex uses: Init retires the previous bar (if any) and starts a
// fresh one sized to the new phase, so dsk.Run/graph.Simplify's several
// named phases each get their own bar without the caller managing
// container lifetime.
type mpbProgress struct {
	pbs *mpb.Progress

	mu    sync.Mutex
	bar   *mpb.Bar
	rate  ewma.MovingAverage
	last  time.Time
	lastN int64
}

// newMpbProgress returns a Progress that renders to stderr, or nil if the
// caller asked for quiet output — the same opt.Verbose gate
// lib-index-build.go uses to decide whether pbs/bar are even allocated.
func newMpbProgress(verbose bool) dispatch.Progress {
	if !verbose {
		return nil
	}
	return &mpbProgress{
		pbs: mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr)),
	}
}

func (p *mpbProgress) Init(total int64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.SetTotal(p.bar.Current(), true)
	}

	p.rate = ewma.NewMovingAverage()
	p.last = time.Now()
	p.lastN = 0

	label := message
	p.bar = p.pbs.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(label+": ", decor.WC{W: len(label) + 2, C: decor.DindentRight}),
			decor.Name("", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.EwmaETA(decor.ET_STYLE_GO, 10),
			decor.OnComplete(decor.Name(""), " done"),
		),
	)
}

// Inc advances the current bar by n, additionally feeding the elapsed
// inter-call duration into both the bar's own EWMA smoothing
// (bar.EwmaIncrBy, as buildAnIndex does) and an independent ewma.MovingAverage
// this type keeps for itself, so the VividCortex/ewma dependency is
// exercised directly and not merely through mpb's internals.
func (p *mpbProgress) Inc(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	now := time.Now()
	elapsed := now.Sub(p.last)
	p.last = now
	p.lastN += n

	if p.rate != nil && elapsed > 0 {
		p.rate.Add(float64(n) / elapsed.Seconds())
	}
	p.bar.EwmaIncrBy(int(n), elapsed)
}

// SetMessage is a no-op: mpb fixes a bar's label at AddBar time, so a
// mid-bar rename such as graph.Simplify's per-round message
// (gatbcore/graph/simplify.go) is dropped, not shown or logged.
func (p *mpbProgress) SetMessage(message string) {}

func (p *mpbProgress) Finish() {
	p.mu.Lock()
	bar := p.bar
	p.mu.Unlock()
	if bar != nil {
		bar.SetTotal(-1, true)
	}
}

// waitProgress blocks until every bar p has started has rendered its
// final frame, the same pbs.Wait() buildAnIndex calls once its duration
// channel drains. p may be nil (quiet mode) or any other dispatch.Progress.
func waitProgress(p dispatch.Progress) {
	if mp, ok := p.(*mpbProgress); ok {
		mp.pbs.Wait()
	}
}
