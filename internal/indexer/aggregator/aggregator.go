// Package aggregator folds a term-sorted occurrence stream into index
// entries in a single pass. Only the accumulator of the current term is held
// in memory; an entry is emitted as soon as the term changes.
package aggregator

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
)

// OrderCheck selects what happens when a term sorts before its predecessor.
type OrderCheck int

const (
	// CheckOff trusts the caller. Unsorted input yields several entries for
	// the same term.
	CheckOff OrderCheck = iota
	// CheckWarn logs the violation and keeps going.
	CheckWarn
	// CheckFail aborts with ErrUnsortedInput.
	CheckFail
)

// ParseOrderCheck maps a config value (off, warn, fail) to an OrderCheck.
func ParseOrderCheck(s string) (OrderCheck, error) {
	switch s {
	case "", "off":
		return CheckOff, nil
	case "warn":
		return CheckWarn, nil
	case "fail":
		return CheckFail, nil
	default:
		return CheckOff, apperrors.Invalidf("unknown order check %q", s)
	}
}

// EmitFunc receives each finished entry. Returning an error stops the run.
type EmitFunc func(index.Entry) error

// Aggregator is the streaming group-by. The zero value is not usable; call New.
type Aggregator struct {
	emit       EmitFunc
	check      OrderCheck
	logger     *slog.Logger
	current    string
	ids        []int64
	open       bool
	entries    int
	violations int
}

// New returns an Aggregator that hands entries to emit.
func New(emit EmitFunc, check OrderCheck) *Aggregator {
	return &Aggregator{
		emit:   emit,
		check:  check,
		logger: slog.Default().With("component", "aggregator"),
	}
}

// Add consumes the next occurrence of the stream.
func (a *Aggregator) Add(o index.Occurrence) error {
	switch {
	case !a.open:
		a.current = o.Term
		a.open = true
	case o.Term != a.current:
		if o.Term < a.current {
			if err := a.outOfOrder(o.Term); err != nil {
				return err
			}
		}
		if err := a.flush(); err != nil {
			return err
		}
		a.current = o.Term
		a.open = true
	}
	a.ids = append(a.ids, o.RecordID)
	return nil
}

// Close flushes the final run. A stream with no occurrences emits nothing.
func (a *Aggregator) Close() error {
	if !a.open {
		return nil
	}
	return a.flush()
}

// Reset discards the open accumulator without emitting it.
func (a *Aggregator) Reset() {
	a.current = ""
	a.ids = a.ids[:0]
	a.open = false
}

// Entries returns the number of entries emitted so far.
func (a *Aggregator) Entries() int {
	return a.entries
}

// Violations returns the number of sort order violations seen so far.
func (a *Aggregator) Violations() int {
	return a.violations
}

func (a *Aggregator) flush() error {
	ids := slices.Clone(a.ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	entry := index.Entry{Term: a.current, RecordIDs: slices.Clip(ids)}
	a.ids = a.ids[:0]
	a.open = false
	if err := a.emit(entry); err != nil {
		return fmt.Errorf("emitting entry for %q: %w", entry.Term, err)
	}
	a.entries++
	return nil
}

func (a *Aggregator) outOfOrder(term string) error {
	a.violations++
	switch a.check {
	case CheckFail:
		return fmt.Errorf("%w: %q after %q", apperrors.ErrUnsortedInput, term, a.current)
	case CheckWarn:
		a.logger.Warn("input not sorted by term, term will be split across entries",
			"term", term,
			"previous", a.current,
		)
	}
	return nil
}

// Aggregate runs seq through a fresh Aggregator.
func Aggregate(seq iter.Seq[index.Occurrence], check OrderCheck, emit EmitFunc) error {
	a := New(emit, check)
	for o := range seq {
		if err := a.Add(o); err != nil {
			return err
		}
	}
	return a.Close()
}

// Collect aggregates seq into a slice. Intended for small inputs and tests.
func Collect(seq iter.Seq[index.Occurrence]) ([]index.Entry, error) {
	var out []index.Entry
	err := Aggregate(seq, CheckOff, func(e index.Entry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}
