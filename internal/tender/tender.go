// Package tender holds the typed tender breakdown recorded against an obligation
// and its compact text encoding, e.g. "mobile:1500,cash:500".
package tender

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedLedger is returned when a persisted breakdown string cannot be parsed.
var ErrMalformedLedger = errors.New("malformed tender ledger")

type Kind string

const (
	KindCash   Kind = "cash"
	KindMobile Kind = "mobile"
	KindCard   Kind = "card"
	KindDebt   Kind = "debt"
	// KindOther covers labels outside the current vocabulary (legacy "mpesa", "voucher", ...).
	KindOther Kind = "other"
)

var aliases = map[string]Kind{
	"cash":         KindCash,
	"mobile":       KindMobile,
	"mobile-money": KindMobile,
	"card":         KindCard,
	"bank-card":    KindCard,
	"debt":         KindDebt,
}

// Entry is one (kind, amount) pair. Label is only meaningful for KindOther and
// keeps the label the entry was recorded under.
type Entry struct {
	Kind   Kind            `json:"kind"`
	Label  string          `json:"label,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// NewEntry builds an entry from a label, mapping unknown labels to KindOther.
// Amounts outside the storable range are rejected; the sign is not checked.
func NewEntry(label string, amount decimal.Decimal) (Entry, error) {
	kind, normalized, err := ParseKind(label)
	if err != nil {
		return Entry{}, err
	}
	if err := CheckAmount(amount); err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", ErrMalformedLedger, normalized, err)
	}
	e := Entry{Kind: kind, Amount: amount}
	if kind == KindOther {
		e.Label = normalized
	}
	return e, nil
}

// ParseKind resolves a label to its kind and returns the normalized label.
func ParseKind(label string) (Kind, string, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if !validLabel(normalized) {
		return "", "", fmt.Errorf("%w: invalid tender label %q", ErrMalformedLedger, label)
	}
	if kind, ok := aliases[normalized]; ok {
		return kind, normalized, nil
	}
	return KindOther, normalized, nil
}

// Name is the label used when the entry is encoded.
func (e Entry) Name() string {
	if e.Kind == KindOther {
		if e.Label == "" {
			return string(KindOther)
		}
		return e.Label
	}
	return string(e.Kind)
}

func (e Entry) IsDebt() bool { return e.Kind == KindDebt }

func (e Entry) sameBucket(o Entry) bool {
	return e.Kind == o.Kind && (e.Kind != KindOther || e.Name() == o.Name())
}

func (e Entry) Equal(o Entry) bool {
	return e.sameBucket(o) && e.Amount.Equal(o.Amount)
}

func validLabel(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
