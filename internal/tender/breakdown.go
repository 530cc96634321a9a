package tender

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("tender amount must be positive")
	ErrDuplicateKind     = errors.New("tender kind repeated within one settlement")
)

// Breakdown is an ordered sequence of tender entries.
type Breakdown []Entry

// Encode renders entries as "label:amount" pairs joined by commas.
func Encode(entries Breakdown) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(e.Name())
		sb.WriteByte(':')
		sb.WriteString(e.Amount.String())
	}
	return sb.String()
}

// Decode parses an encoded breakdown. The empty string is an empty breakdown;
// any unparsable fragment fails the whole decode.
func Decode(s string) (Breakdown, error) {
	if strings.TrimSpace(s) == "" {
		return Breakdown{}, nil
	}

	parts := strings.Split(s, ",")
	out := make(Breakdown, 0, len(parts))
	for i, part := range parts {
		label, amount, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: fragment %d %q has no amount", ErrMalformedLedger, i, part)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("%w: fragment %d %q: %v", ErrMalformedLedger, i, part, err)
		}
		if err := CheckAmount(value); err != nil {
			return nil, fmt.Errorf("%w: fragment %d: %v", ErrMalformedLedger, i, err)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("%w: fragment %d %q: amount must be positive", ErrMalformedLedger, i, part)
		}
		e, err := NewEntry(label, value)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Merge accumulates incoming entries into existing ones. Entries of the same
// kind (and, for KindOther, the same label) add up; new kinds are appended in
// the order they are first seen. Neither input is modified.
func Merge(existing, incoming Breakdown) Breakdown {
	out := make(Breakdown, len(existing), len(existing)+len(incoming))
	copy(out, existing)
	for _, e := range incoming {
		merged := false
		for i := range out {
			if out[i].sameBucket(e) {
				out[i].Amount = out[i].Amount.Add(e.Amount)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks a single settlement's entries: every amount positive and in
// range, and no kind repeated.
func (b Breakdown) Validate() error {
	for i, e := range b {
		if err := CheckAmount(e.Amount); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if !e.Amount.IsPositive() {
			return fmt.Errorf("%w: %s %s", ErrNonPositiveAmount, e.Name(), e.Amount)
		}
		for _, prev := range b[:i] {
			if prev.sameBucket(e) {
				return fmt.Errorf("%w: %s", ErrDuplicateKind, e.Name())
			}
		}
	}
	return nil
}

func (b Breakdown) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range b {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// NonDebtTotal is the money actually tendered, excluding debt entries.
func (b Breakdown) NonDebtTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range b {
		if !e.IsDebt() {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

func (b Breakdown) DebtTotal() decimal.Decimal {
	return b.AmountOf(KindDebt)
}

// AmountOf sums every entry of the given kind, across labels for KindOther.
func (b Breakdown) AmountOf(kind Kind) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range b {
		if e.Kind == kind {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

func (b Breakdown) Equal(o Breakdown) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if !b[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// SameEntries reports whether b and o hold the same entries in any order.
// Both sides are expected to be free of repeated kinds.
func (b Breakdown) SameEntries(o Breakdown) bool {
	if len(b) != len(o) {
		return false
	}
	for _, e := range b {
		found := false
		for _, other := range o {
			if e.Equal(other) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (b Breakdown) String() string { return Encode(b) }
