// SPDX-License-Identifier: Apache-2.0

// Package bench implements the vecbench bench command.
package bench

import (
	"context"
	"strconv"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	alloc "github.com/wundergraph/go-alloc"
	"github.com/wundergraph/go-alloc/internal/config"
	"github.com/wundergraph/go-alloc/internal/log"
	"github.com/wundergraph/go-alloc/vector"
)

const (
	cmdName = "bench"
	cmdDesc = "Fill vectors backed by every allocator and report timings"
)

// Result is the outcome of filling one vector.
type Result struct {
	Backend  string
	Elements int
	Capacity int
	Elapsed  time.Duration
	// PeakBytes is the high-water mark reported by the backend, or -1 when it
	// keeps no accounts.
	PeakBytes int
}

// backend builds a fresh allocator for one run. release undoes whatever the
// allocator reserved up front.
type backend struct {
	name string
	open func(conf *config.Config) (a alloc.Allocator[int64], peak func() int, release func(), err error)
}

var backends = []backend{
	{"heap", openHeap},
	{"simple", openSimple},
	{"size-class-arena", openSizeClass},
	{"buffer", openBuffer},
}

func openHeap(*config.Config) (alloc.Allocator[int64], func() int, func(), error) {
	h := alloc.NewHeapAllocator[int64]()
	return h, h.Peak, func() {}, nil
}

func openSimple(*config.Config) (alloc.Allocator[int64], func() int, func(), error) {
	return alloc.SimpleAllocator[int64]{}, func() int { return -1 }, func() {}, nil
}

func openSizeClass(conf *config.Config) (alloc.Allocator[int64], func() int, func(), error) {
	arena := alloc.NewSizeClassArena(alloc.WithSlotsPerClass(conf.ArenaSlots))
	a, err := alloc.NewArenaAllocator[int64](arena)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, arena.Peak, arena.Release, nil
}

// buffers keeps benchmark buffers alive between runs with the same element count.
var buffers = alloc.NewBufferPool()

// bufferSize returns the bytes of every block a doubling vector of int64
// requests on its way to n elements.
func bufferSize(n int) int {
	size := 0
	for c := 16; ; c *= 2 {
		size += c * 8
		if c >= n {
			return size
		}
	}
}

// openBuffer takes a buffer from the pool large enough for conf.Elements.
func openBuffer(conf *config.Config) (alloc.Allocator[int64], func() int, func(), error) {
	arena := buffers.Acquire(uint64(conf.Elements), bufferSize(conf.Elements))
	a, err := alloc.NewArenaAllocator[int64](arena)
	if err != nil {
		buffers.Release(arena)
		return nil, nil, nil, err
	}
	return a, arena.Peak, func() { buffers.Release(arena) }, nil
}

// fill pushes n values into a fresh vector drawing from a.
func fill(a alloc.Allocator[int64], n int) (*vector.Vector[int64], error) {
	v := vector.New(vector.WithAllocator(a))
	for i := 0; i < n; i++ {
		if err := v.PushBack(int64(i)); err != nil {
			v.Free()
			return nil, errors.Wrapf(err, "push %d", i)
		}
	}
	return v, nil
}

// RunBackends fills one vector per backend.
func RunBackends(conf *config.Config) ([]Result, error) {
	results := make([]Result, 0, len(backends))
	for _, b := range backends {
		a, peak, release, err := b.open(conf)
		if err != nil {
			return nil, errors.Wrap(err, b.name)
		}
		start := time.Now()
		v, err := fill(a, conf.Elements)
		elapsed := time.Since(start)
		if err != nil {
			release()
			return nil, errors.Wrap(err, b.name)
		}
		results = append(results, Result{
			Backend:   b.name,
			Elements:  v.Len(),
			Capacity:  v.Cap(),
			Elapsed:   elapsed,
			PeakBytes: peak(),
		})
		v.Free()
		release()
	}
	return results, nil
}

// RunShared fills conf.Workers vectors concurrently, all drawing from one
// size-class arena. The first failure cancels the remaining workers.
func RunShared(ctx context.Context, conf *config.Config) ([]Result, alloc.SizeClassArenaStats, error) {
	arena := alloc.NewSizeClassArena(alloc.WithSlotsPerClass(conf.ArenaSlots))
	defer arena.Release()
	a, err := alloc.NewArenaAllocator[int64](arena)
	if err != nil {
		return nil, alloc.SizeClassArenaStats{}, err
	}
	results, err := runWorkers(ctx, conf, a, "shared-size-class-arena")
	if err != nil {
		return nil, alloc.SizeClassArenaStats{}, err
	}
	return results, arena.Stats(), nil
}

// RunSharedBuffer is RunShared over one external buffer large enough for every
// worker, made safe for concurrent use by a locking wrapper.
func RunSharedBuffer(ctx context.Context, conf *config.Config) ([]Result, error) {
	arena := alloc.NewConcurrentArena(alloc.NewBufferArena(make([]byte, conf.Workers*bufferSize(conf.Elements))))
	defer arena.Release()
	a, err := alloc.NewArenaAllocator[int64](arena)
	if err != nil {
		return nil, err
	}
	return runWorkers(ctx, conf, a, "shared-buffer")
}

func runWorkers(ctx context.Context, conf *config.Config, a alloc.Allocator[int64], name string) ([]Result, error) {
	results := make([]Result, conf.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := range conf.Workers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			v, err := fill(a, conf.Elements)
			if err != nil {
				return errors.Wrapf(err, "worker %d", w)
			}
			results[w] = Result{
				Backend:   name,
				Elements:  v.Len(),
				Capacity:  v.Cap(),
				Elapsed:   time.Since(start),
				PeakBytes: -1,
			}
			v.Free()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type runner struct {
	conf *config.Config
}

// Run executes both benchmarks and logs their results.
func (r *runner) Run(_ *kingpin.ParseContext) error {
	if err := r.conf.Validate(); err != nil {
		return err
	}
	logger := log.Get().WithField("prefix", cmdName)

	results, err := RunBackends(r.conf)
	if err != nil {
		return err
	}
	for _, res := range results {
		report(logger, res)
	}
	fastest := lo.MinBy(results, func(a, b Result) bool { return a.Elapsed < b.Elapsed })
	logger.WithField("backend", fastest.Backend).Info("fastest backend")

	shared, stats, err := RunShared(context.Background(), r.conf)
	if err != nil {
		return err
	}
	for _, res := range shared {
		report(logger, res)
	}
	used := lo.SumBy(stats.Classes, func(c alloc.SizeClassStats) int { return c.Used * c.SlotSize })
	full := lo.FilterMap(stats.Classes, func(c alloc.SizeClassStats, _ int) (int, bool) {
		return c.SlotSize, c.Used == c.Slots
	})
	logger.WithFields(logrus.Fields{
		"workers":      r.conf.Workers,
		"total":        lo.SumBy(shared, func(r Result) time.Duration { return r.Elapsed }),
		"arena_bytes":  used,
		"fallbacks":    stats.Fallbacks,
		"full_classes": full,
	}).Info("shared arena")

	sharedBuffer, err := RunSharedBuffer(context.Background(), r.conf)
	if err != nil {
		return err
	}
	for _, res := range sharedBuffer {
		report(logger, res)
	}
	return nil
}

func report(l *logrus.Entry, res Result) {
	fields := logrus.Fields{
		"backend":  res.Backend,
		"elements": res.Elements,
		"capacity": res.Capacity,
		"elapsed":  res.Elapsed,
	}
	if res.PeakBytes >= 0 {
		fields["peak_bytes"] = res.PeakBytes
	}
	l.WithFields(fields).Info("filled")
}

// AddTo registers the bench command with app. Flags default to conf and
// write back into it.
func AddTo(app *kingpin.Application, conf *config.Config) {
	r := &runner{conf: conf}
	cmd := app.Command(cmdName, cmdDesc)
	cmd.Flag("elements", "Values pushed into each vector").Short('n').
		Default(strconv.Itoa(conf.Elements)).IntVar(&conf.Elements)
	cmd.Flag("workers", "Concurrent vectors sharing one arena").Short('w').
		Default(strconv.Itoa(conf.Workers)).IntVar(&conf.Workers)
	cmd.Flag("slots", "Slots per size class in benchmark arenas").
		Default(strconv.Itoa(conf.ArenaSlots)).IntVar(&conf.ArenaSlots)
	cmd.Action(r.Run)
}
