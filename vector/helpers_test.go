// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errCopy = errors.New("copy failed")

// ledger counts live elements and can make the n-th copy fail.
type ledger struct {
	live       int
	copies     int
	failCopyAt int
	destroyed  []int
}

func (l *ledger) copy() error {
	l.copies++
	if l.failCopyAt > 0 && l.copies == l.failCopyAt {
		return errCopy
	}
	l.live++
	return nil
}

// failNext arms the ledger so that the n-th copy from now fails.
func (l *ledger) failNext(n int) {
	l.failCopyAt = l.copies + n
}

// item is relocated by plain assignment.
type item struct {
	id     int
	ledger *ledger
}

func (it *item) CopyTo(dst *item) error {
	if it.ledger != nil {
		if err := it.ledger.copy(); err != nil {
			return err
		}
	}
	*dst = *it
	return nil
}

func (it *item) Destroy() {
	if it.ledger != nil {
		it.ledger.live--
		it.ledger.destroyed = append(it.ledger.destroyed, it.id)
	}
}

// node points at itself, so relocating it needs its own MoveTo, which is not
// declared infallible.
type node struct {
	id     int
	self   *node
	ledger *ledger
}

func (n *node) CopyTo(dst *node) error {
	if n.ledger != nil {
		if err := n.ledger.copy(); err != nil {
			return err
		}
	}
	*dst = *n
	dst.self = dst
	return nil
}

func (n *node) MoveTo(dst *node) error {
	*dst = *n
	dst.self = dst
	*n = node{}
	return nil
}

func (n *node) Destroy() {
	if n.ledger != nil {
		n.ledger.live--
	}
}

func items(led *ledger, ids ...int) []item {
	out := make([]item, len(ids))
	for i, id := range ids {
		out[i] = item{id: id, ledger: led}
	}
	return out
}

func nodes(led *ledger, ids ...int) []node {
	out := make([]node, len(ids))
	for i, id := range ids {
		out[i] = node{id: id, ledger: led}
	}
	return out
}

func itemIDs(v *Vector[item]) []int {
	ids := make([]int, 0, v.Len())
	for it := range v.Values() {
		ids = append(ids, it.id)
	}
	return ids
}

func nodeIDs(v *Vector[node]) []int {
	ids := make([]int, 0, v.Len())
	for n := range v.Values() {
		ids = append(ids, n.id)
	}
	return ids
}

// requireInvariant checks the size/capacity/storage invariant of v.
func requireInvariant[T any](t *testing.T, v *Vector[T]) {
	t.Helper()
	require.GreaterOrEqual(t, v.Len(), 0)
	require.LessOrEqual(t, v.Len(), v.Cap())
	require.Equal(t, v.Cap() == 0, v.data == nil)
}

// requireAnchored checks that every live node points at its own slot.
func requireAnchored(t *testing.T, v *Vector[node]) {
	t.Helper()
	for i := 0; i < v.Len(); i++ {
		require.Same(t, v.Ref(i), v.Ref(i).self, "node %d", i)
	}
}
