// SPDX-License-Identifier: Apache-2.0

// Package demo implements the vecbench demo command, which replays the
// reference vector and arena scenarios and checks their outcome.
package demo

import (
	"fmt"
	"slices"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	alloc "github.com/wundergraph/go-alloc"
	"github.com/wundergraph/go-alloc/internal/log"
	"github.com/wundergraph/go-alloc/vector"
)

const (
	cmdName = "demo"
	cmdDesc = "Run the vector and arena scenarios and verify their results"
)

var errMismatch = errors.New("unexpected result")

// scenario is one named check. run logs what it observes and returns an
// error when the observation differs from the expected one.
type scenario struct {
	name string
	run  func(l *logrus.Entry) error
}

var scenarios = []scenario{
	{"insert-erase", insertErase},
	{"size-class-arena", sizeClassArena},
	{"buffer-exhaustion", bufferExhaustion},
	{"strong-push-back", strongPushBack},
	{"move", move},
	{"typed-arena", typedArena},
}

type runner struct {
	only *[]string
}

// Run executes the selected scenarios and returns every failure.
func (r *runner) Run(_ *kingpin.ParseContext) error {
	return Run(*r.only)
}

// Run executes the scenarios named in only, or all of them when only is empty.
// It keeps going after a failure and returns the failures combined.
func Run(only []string) error {
	logger := log.Get()
	var result *multierror.Error
	for _, s := range scenarios {
		if len(only) > 0 && !slices.Contains(only, s.name) {
			continue
		}
		l := logger.WithField("prefix", s.name)
		if err := s.run(l); err != nil {
			l.WithError(err).Error("scenario failed")
			result = multierror.Append(result, errors.Wrap(err, s.name))
			continue
		}
		l.Info("scenario passed")
	}
	return result.ErrorOrNil()
}

// AddTo registers the demo command with app.
func AddTo(app *kingpin.Application) {
	r := &runner{}
	cmd := app.Command(cmdName, cmdDesc)
	r.only = cmd.Arg("scenario", "Scenarios to run; all when omitted").Enums(Names()...)
	cmd.Action(r.Run)
}

// Names lists the scenarios in run order.
func Names() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.name
	}
	return names
}

func expect[T comparable](got, want []T) error {
	if !slices.Equal(got, want) {
		return errors.Wrapf(errMismatch, "got %v, want %v", got, want)
	}
	return nil
}

func insertErase(l *logrus.Entry) error {
	v, err := vector.From([]int{2, 3, 5, 7, 11})
	if err != nil {
		return err
	}
	defer v.Free()

	if _, err := v.Insert(0, -2, -3, -4); err != nil {
		return err
	}
	l.WithField("size", v.Len()).Infof("inserted at front: %v", v.Slice())
	if err := expect(v.Slice(), []int{-2, -3, -4, 2, 3, 5, 7, 11}); err != nil {
		return err
	}

	if _, err := v.Insert(v.Len(), -2, -3, -4); err != nil {
		return err
	}
	l.WithField("size", v.Len()).Infof("inserted at back: %v", v.Slice())
	if err := expect(v.Slice(), []int{-2, -3, -4, 2, 3, 5, 7, 11, -2, -3, -4}); err != nil {
		return err
	}

	if _, err := v.Erase(2); err != nil {
		return err
	}
	l.WithField("size", v.Len()).Infof("erased index 2: %v", v.Slice())
	return expect(v.Slice(), []int{-2, -3, 2, 3, 5, 7, 11, -2, -3, -4})
}

func sizeClassArena(l *logrus.Entry) error {
	for _, fallback := range []bool{false, true} {
		opts := []alloc.SizeClassArenaOption{alloc.WithSizeClasses(8), alloc.WithSlotsPerClass(3)}
		if !fallback {
			opts = append(opts, alloc.WithoutFallback())
		}
		arena := alloc.NewSizeClassArena(opts...)
		a, err := alloc.NewArenaAllocator[int64](arena)
		if err != nil {
			return err
		}

		for i := 0; i < 3; i++ {
			if _, err := a.Allocate(1); err != nil {
				return errors.Wrapf(err, "allocation %d", i+1)
			}
		}
		_, err = a.Allocate(1)
		stats := arena.Stats()
		l.WithFields(logrus.Fields{
			"fallback":  fallback,
			"used":      stats.Classes[0].Used,
			"fallbacks": stats.Fallbacks,
		}).Infof("fourth allocation: %v", err)

		switch {
		case fallback && err != nil:
			return errors.Wrap(err, "fourth allocation should use the fallback")
		case fallback && stats.Fallbacks != 1:
			return errors.Wrapf(errMismatch, "%d fallbacks, want 1", stats.Fallbacks)
		case !fallback && !errors.Is(err, alloc.ErrArenaExhausted):
			return errors.Wrapf(errMismatch, "fourth allocation returned %v", err)
		}
		arena.Release()
	}
	return nil
}

func bufferExhaustion(l *logrus.Entry) error {
	arena := alloc.NewBufferArena(make([]byte, 256))
	a, err := alloc.NewArenaAllocator[int32](arena)
	if err != nil {
		return err
	}
	v := vector.New(vector.WithAllocator[int32](a))

	var pushErr error
	for i := int32(0); pushErr == nil; i++ {
		pushErr = v.PushBack(i)
	}
	l.WithFields(logrus.Fields{
		"size":      v.Len(),
		"capacity":  v.Cap(),
		"remaining": arena.Remaining(),
	}).Infof("push stopped: %v", pushErr)
	if !errors.Is(pushErr, alloc.ErrBufferExhausted) {
		return errors.Wrapf(errMismatch, "push failed with %v", pushErr)
	}
	if v.Len() != v.Cap() || v.Back() != int32(v.Len()-1) {
		return errors.Wrapf(errMismatch, "vector damaged: size %d, capacity %d", v.Len(), v.Cap())
	}

	// the cursor did not move, so whatever is left is still usable
	if rest := arena.Remaining() / 4; rest > 0 {
		if _, err := a.Allocate(rest); err != nil {
			return errors.Wrap(err, "allocating the remainder")
		}
	}
	return nil
}

// account is an element whose copies can be made to fail.
type account struct {
	id       int
	failCopy bool
}

var errCopyRefused = errors.New("copy refused")

func (a *account) CopyTo(dst *account) error {
	if a.failCopy {
		return errCopyRefused
	}
	*dst = *a
	return nil
}

func strongPushBack(l *logrus.Entry) error {
	v, err := vector.From([]account{{id: 1}, {id: 2}, {id: 3}})
	if err != nil {
		return err
	}
	defer v.Free()

	err = v.PushBack(account{id: 4, failCopy: true})
	l.WithField("size", v.Len()).Infof("push of a failing copy: %v", err)
	if !errors.Is(err, errCopyRefused) {
		return errors.Wrapf(errMismatch, "push returned %v", err)
	}
	ids := make([]int, 0, v.Len())
	for a := range v.Values() {
		ids = append(ids, a.id)
	}
	return expect(ids, []int{1, 2, 3})
}

func move(l *logrus.Entry) error {
	heap := alloc.NewHeapAllocator[string]()
	src, err := vector.From([]string{"a", "b", "c"}, vector.WithAllocator[string](heap))
	if err != nil {
		return err
	}
	peak := heap.Peak()

	dst := src.Take()
	defer dst.Free()
	l.WithFields(logrus.Fields{
		"source":      fmt.Sprint(src.Slice()),
		"destination": fmt.Sprint(dst.Slice()),
	}).Info("moved")
	if src.Len() != 0 || src.Cap() != 0 {
		return errors.Wrapf(errMismatch, "source still holds %d of %d", src.Len(), src.Cap())
	}
	if heap.Peak() != peak {
		return errors.Wrap(errMismatch, "move allocated")
	}
	return expect(dst.Slice(), []string{"a", "b", "c"})
}

type point struct{ x, y int }

func typedArena(l *logrus.Entry) error {
	arena := alloc.TypedArenaOf[point]()
	before := arena.Len()
	p := arena.New()
	p.x, p.y = 3, 4
	if alloc.TypedArenaOf[point]() != arena {
		return errors.Wrap(errMismatch, "typed arena is not shared")
	}
	arena.Delete(p)
	l.WithFields(logrus.Fields{"len": arena.Len(), "cap": arena.Cap()}).Info("typed arena")
	if arena.Len() != before+1 {
		return errors.Wrapf(errMismatch, "len %d, want %d", arena.Len(), before+1)
	}
	return nil
}
