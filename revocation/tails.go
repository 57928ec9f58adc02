package revocation

import (
	"crypto/rand"

	"github.com/go-errors/errors"
	"github.com/multiformats/go-multihash"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/cbor"
	"github.com/credentials/anoncreds/internal/common"
)

// ErrIndexExhausted is returned when issuing against a full tails table.
var ErrIndexExhausted = errors.New("tails table is full")

// TailsTable holds the witness factors of all credential indices under one
// accumulator: entry i is the prime that is accumulated when the credential with
// index i is issued, and removed again when it is revoked. The capacity is fixed
// at creation. The table is public; its fingerprint lets holders and verifiers
// check that they use the same table as the issuer.
type TailsTable struct {
	Capacity uint64     `json:"capacity"`
	Entries  []*big.Int `json:"entries"`
}

func NewTailsTable(capacity uint64) *TailsTable {
	return &TailsTable{
		Capacity: capacity,
		Entries:  make([]*big.Int, 0, capacity),
	}
}

// Add generates a fresh witness factor, appends it at the next free index, and
// returns that index along with the factor. Returns ErrIndexExhausted if the
// table is at capacity.
func (t *TailsTable) Add() (uint64, *big.Int, error) {
	if uint64(len(t.Entries)) >= t.Capacity {
		return 0, nil, ErrIndexExhausted
	}
	e, err := randomWitnessFactor()
	if err != nil {
		return 0, nil, err
	}
	t.Entries = append(t.Entries, e)
	return uint64(len(t.Entries)) - 1, e, nil
}

// Entry returns the witness factor for the given credential index.
func (t *TailsTable) Entry(index uint64) (*big.Int, error) {
	if index >= uint64(len(t.Entries)) {
		return nil, errors.Errorf("no tails entry at index %d", index)
	}
	return t.Entries[index], nil
}

// Fingerprint returns the SHA-256 multihash over the canonical encoding of the
// table.
func (t *TailsTable) Fingerprint() (multihash.Multihash, error) {
	bts, err := cbor.Marshal(t)
	if err != nil {
		return nil, err
	}
	return multihash.Sum(bts, multihash.SHA2_256, -1)
}

// Accumulate returns the accumulator value that results from accumulating every
// entry of the table except those whose index is in revoked, starting from base.
// The result only depends on the set of non-revoked entries, so anyone holding
// the table and the genesis accumulator can recompute the current accumulator
// value from the set of revoked indices.
func (t *TailsTable) Accumulate(base *big.Int, revoked map[uint64]struct{}, n *big.Int) *big.Int {
	exp := big.NewInt(1)
	for i, e := range t.Entries {
		if _, ok := revoked[uint64(i)]; ok {
			continue
		}
		exp.Mul(exp, e)
	}
	return new(big.Int).Exp(base, exp, n)
}

func randomWitnessFactor() (*big.Int, error) {
	return common.RandomPrimeInRange(rand.Reader, Parameters.AttributeMinSize, Parameters.AttributeMinSize)
}
