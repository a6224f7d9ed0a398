// SPDX-License-Identifier: Apache-2.0

package alloc

import (
	"github.com/pkg/errors"
)

var errCopy = errors.New("copy failed")

// ledger counts live probes and can make the n-th copy fail.
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

// probe is relocated by plain assignment and accounted for by its ledger.
type probe struct {
	id     int
	ledger *ledger
}

func (p *probe) CopyTo(dst *probe) error {
	if p.ledger != nil {
		if err := p.ledger.copy(); err != nil {
			return err
		}
	}
	*dst = *p
	return nil
}

func (p *probe) Destroy() {
	if p.ledger != nil {
		p.ledger.live--
		p.ledger.destroyed = append(p.ledger.destroyed, p.id)
	}
}

// pinned points at itself, so only its own MoveTo may relocate it.
type pinned struct {
	id     int
	self   *pinned
	ledger *ledger
}

func (p *pinned) CopyTo(dst *pinned) error {
	if p.ledger != nil {
		if err := p.ledger.copy(); err != nil {
			return err
		}
	}
	*dst = *p
	dst.self = dst
	return nil
}

func (p *pinned) MoveTo(dst *pinned) error {
	*dst = *p
	dst.self = dst
	*p = pinned{}
	return nil
}

func (p *pinned) Destroy() {
	if p.ledger != nil {
		p.ledger.live--
	}
}

// anchored is a pinned variant that promises its moves never fail.
type anchored struct {
	self *anchored
}

func (a *anchored) MoveTo(dst *anchored) error {
	dst.self = dst
	a.self = nil
	return nil
}

func (a *anchored) MoveCannotFail() {}
