// Copyright 2025 Tradeledger Authors
//
// Rate-fix oracle: an external collaborator holding a table of
// published interest-rate fixes, queried by (index, tenor, date) and able
// to sign transactions whose Fix commands match its known fixes.
package oracle

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tradeledger/core/pkg/canon"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

// FixCommandTag is the wire tag for FixCommand.
const FixCommandTag = "oracle-fix"

// FixKey names one published series: an index (e.g. "LIBOR") and a tenor
// string (e.g. "1M", "3M", "1Y").
type FixKey struct {
	Index string
	Tenor string
}

// FixCommand asserts the value of one published fix as of a date. It is
// the only command type the oracle will sign.
type FixCommand struct {
	Index string
	Tenor string
	Date  time.Time
	Rate  Rate
}

func init() {
	model.RegisterCommand(FixCommandTag, func(r *canon.Reader) (model.CommandData, error) {
		index := r.ReadString()
		tenor := r.ReadString()
		date := time.Unix(r.ReadInt64(), 0).UTC()
		rate := Rate(r.ReadInt64())
		if err := r.Err(); err != nil {
			return nil, err
		}
		return FixCommand{Index: index, Tenor: tenor, Date: date, Rate: rate}, nil
	})
}

// Tag implements model.CommandData.
func (c FixCommand) Tag() string { return FixCommandTag }

// Encode implements model.CommandData.
func (c FixCommand) Encode(w *canon.Writer) {
	w.WriteString(c.Index)
	w.WriteString(c.Tenor)
	w.WriteInt64(c.Date.Unix())
	w.WriteInt64(int64(c.Rate))
}

// Rate is a fix value in hundred-thousandths of a percentage point
// (1.00000% == Rate(100000)), keeping every contract-visible rate an
// integer rather than a float.
type Rate int64

// ErrUnknownFix is returned when a Fix command's asserted rate does not
// match the oracle's own recorded fix, or when a command naming the
// oracle's key is not a Fix command at all.
var ErrUnknownFix = errors.New("oracle: fix does not match recorded value")

// series is a sorted-by-date table of published fixes for one FixKey.
type series struct {
	dates []time.Time // ascending
	rates []Rate
}

func (s *series) insert(date time.Time, rate Rate) {
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(date) })
	if i < len(s.dates) && s.dates[i].Equal(date) {
		s.rates[i] = rate
		return
	}
	s.dates = append(s.dates, time.Time{})
	copy(s.dates[i+1:], s.dates[i:])
	s.dates[i] = date
	s.rates = append(s.rates, 0)
	copy(s.rates[i+1:], s.rates[i:])
	s.rates[i] = rate
}

// floor returns the fix recorded at the greatest date <= asOf.
func (s *series) floor(asOf time.Time) (Rate, bool) {
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(asOf) })
	if i == 0 {
		return 0, false
	}
	return s.rates[i-1], true
}

// Oracle is the reference rate-fix oracle. It holds its table in memory,
// guarded by a single lock.
type Oracle struct {
	identity crypto.Party
	key      crypto.PrivateKey

	mu    sync.RWMutex
	table map[FixKey]*series
}

// New returns an empty Oracle that signs as identity using key.
func New(identity crypto.Party, key crypto.PrivateKey) *Oracle {
	return &Oracle{identity: identity, key: key, table: make(map[FixKey]*series)}
}

// Seed records a published fix for (index, tenor) as of date.
func (o *Oracle) Seed(index, tenor string, date time.Time, rate Rate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := FixKey{Index: index, Tenor: tenor}
	s, ok := o.table[key]
	if !ok {
		s = &series{}
		o.table[key] = s
	}
	s.insert(date.UTC(), rate)
}

// Query returns the floor-lookup fix (the greatest recorded date <= date)
// for every key in fixIDs. A key with no recorded fix on or before date is
// omitted from the result.
func (o *Oracle) Query(fixIDs []FixKey, asOf time.Time) map[FixKey]Rate {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[FixKey]Rate, len(fixIDs))
	for _, key := range fixIDs {
		s, ok := o.table[key]
		if !ok {
			continue
		}
		if rate, found := s.floor(asOf.UTC()); found {
			out[key] = rate
		}
	}
	return out
}

// Sign requires every command in wire whose signers include the oracle's
// key to be a Fix command matching the oracle's own table, and — if every
// one does — returns a legally-identifiable signature over the transaction
// bytes.
// It does not verify the rest of the transaction.
func (o *Oracle) Sign(wireBytes []byte) (crypto.LegallyIdentifiableSignature, error) {
	wire, err := model.DecodeWireTransaction(wireBytes)
	if err != nil {
		return crypto.LegallyIdentifiableSignature{}, fmt.Errorf("oracle: decode transaction: %w", err)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, cmd := range wire.Commands {
		if !commandSignedBy(cmd, o.identity.Key) {
			continue
		}
		fc, ok := cmd.Data.(FixCommand)
		if !ok {
			return crypto.LegallyIdentifiableSignature{}, fmt.Errorf("%w: command %q names the oracle's key but is not a fix", ErrUnknownFix, cmd.Data.Tag())
		}
		key := FixKey{Index: fc.Index, Tenor: fc.Tenor}
		s, ok := o.table[key]
		if !ok {
			return crypto.LegallyIdentifiableSignature{}, fmt.Errorf("%w: no series for %s/%s", ErrUnknownFix, fc.Index, fc.Tenor)
		}
		want, found := s.floor(fc.Date)
		if !found || want != fc.Rate {
			return crypto.LegallyIdentifiableSignature{}, fmt.Errorf("%w: %s/%s as of %s asserts %d, oracle has %d", ErrUnknownFix, fc.Index, fc.Tenor, fc.Date, fc.Rate, want)
		}
	}

	sig := crypto.Sign(o.key, wireBytes)
	return crypto.NewLegallyIdentifiableSignature(sig, o.identity), nil
}

func commandSignedBy(cmd model.Command, key crypto.PublicKey) bool {
	for _, k := range cmd.Signers {
		if k.Equal(key) {
			return true
		}
	}
	return false
}
