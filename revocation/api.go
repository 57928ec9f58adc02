/*
Package revocation implements an RSA-B accumulator and associated zero-knowledge
proofs, based on "Dynamic Accumulators and Application to Efficient Revocation of
Anonymous Credentials", Jan Camenisch and Anna Lysyanskaya, CRYPTO 2002,
DOI https://doi.org/10.1007/3-540-45708-9_5.

Revocation works as follows.

  - Each revokable credential receives a "nonrevocation witness" consisting of two
    numbers, u and e, of which the prime e is also included in the credential as a
    hidden attribute. All witness factors e are drawn from a tails table of fixed
    capacity, one entry per credential index.

  - The issuer publishes an Accumulator, i.e. a bigint Nu together with a version
    counter. The witness is valid only if u^e = Nu mod N, where N is the modulus of
    the issuer public key, i.e. e is "accumulated" in Nu.

  - During disclosure the client proves in zero knowledge that it knows u and e such
    that (1) u^e = Nu mod N and (2) e equals the credential's nonrevocation
    attribute, from which the verifier concludes that the credential is not revoked.

  - Issuing accumulates the next tails entry e by raising the accumulator to it:
    Nu' = Nu^e. Revoking removes e again: Nu' = Nu^(1/e mod P'*Q'), with P', Q'
    from the issuer private key.

Every change increments the accumulator's version counter, and the issuer signs and
publishes the resulting update record. Clients apply update records to their witness
using an algorithm that is guaranteed to fail for the credential whose own factor was
removed. A witness whose version lags behind the verifier's accumulator cannot be
used to prove nonrevocation; proof builders detect this before attempting a proof and
report ErrStaleWitness, at which point the client should fetch and apply the missing
update records.

This package also includes the database in which the issuer stores its accumulator
update records, its tails table, and an issuance record per credential holding the
witness factor it needs when later revoking that credential.
*/
package revocation

import (
	"crypto/ecdsa"
	"time"

	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
	"github.com/credentials/anoncreds/signed"
)

var (
	// ErrStaleWitness is returned when a witness lags behind the accumulator it is
	// used against, and needs to be updated with newer accumulator update records.
	ErrStaleWitness = errors.New("nonrevocation witness is stale")

	// ErrRevoked is returned when updating the witness of a revoked credential.
	ErrRevoked = errors.New("credential is revoked")
)

type (
	// Accumulator is an RSA-B accumulator against which clients with a
	// corresponding Witness having the same Index can prove that their witness is
	// accumulated, i.e. not revoked.
	Accumulator struct {
		Nu    *big.Int
		Index uint64
	}

	// Witness is a witness for the RSA-B accumulator, used for proving
	// nonrevocation against the Accumulator with the same Index.
	Witness struct {
		U, E       *big.Int
		Nu         *big.Int `json:",omitempty"`
		Index      uint64   `json:",omitempty"`
		Record     *Record
		randomizer *big.Int
	}

	// Event is a single accumulator change: the witness factor E was either
	// accumulated (issuance) or removed (revocation), resulting in the
	// accumulator version Index.
	Event struct {
		Index   uint64
		E       *big.Int
		Removed bool
	}

	// AccumulatorUpdate contains the data clients and verifiers need to update to
	// the included Accumulator, after the issuer has changed it by issuing or
	// revoking.
	AccumulatorUpdate struct {
		Accumulator Accumulator
		Events      []Event
		StartIndex  uint64
		Time        int64
	}

	// PrivateKey is the private key needed for accumulator updates.
	PrivateKey struct {
		Counter uint
		ECDSA   *ecdsa.PrivateKey
		P, Q, N *big.Int
	}

	// PublicKey is the public key corresponding to PrivateKey, against which
	// witnesses and nonrevocation proofs are verified.
	PublicKey struct {
		Counter uint
		ECDSA   *ecdsa.PublicKey
		Group   *QrGroup
	}

	// Record contains a signed AccumulatorUpdate and associated information and is
	// used by clients, issuers and verifiers to update their revocation state, so
	// that they can create and verify nonrevocation proofs and witnesses.
	Record struct {
		StartIndex     uint64
		EndIndex       uint64
		PublicKeyIndex uint
		Message        signed.Message // signed AccumulatorUpdate
	}
)

// NewPrivateKey derives the accumulator private key from an issuer private key
// equipped with revocation support.
func NewPrivateKey(sk *keys.PrivateKey) (*PrivateKey, error) {
	if !sk.RevocationSupported() {
		return nil, errors.New("private key does not support revocation")
	}
	return &PrivateKey{
		Counter: sk.Counter,
		ECDSA:   sk.ECDSA,
		P:       sk.PPrime,
		Q:       sk.QPrime,
		N:       sk.N,
	}, nil
}

// NewPublicKey derives the accumulator public key from an issuer public key
// equipped with revocation support.
func NewPublicKey(pk *keys.PublicKey) (*PublicKey, error) {
	if !pk.RevocationSupported() {
		return nil, errors.New("public key does not support revocation")
	}
	grp := NewQrGroup(pk.N, pk.G, pk.H)
	return &PublicKey{
		Counter: pk.Counter,
		ECDSA:   pk.ECDSA,
		Group:   &grp,
	}, nil
}

// NewAccumulator returns a new empty accumulator at version 0, along with the
// signed update record announcing it.
func NewAccumulator(sk *PrivateKey) (signed.Message, *Accumulator, error) {
	update := AccumulatorUpdate{
		Accumulator: Accumulator{
			Nu:    common.RandomQR(sk.N),
			Index: 0,
		},
		StartIndex: 0,
		Time:       time.Now().UnixNano(),
		Events:     nil,
	}

	msg, err := signed.MarshalSign(sk.ECDSA, &update)
	if err != nil {
		return nil, nil, err
	}

	return msg, &update.Accumulator, nil
}

// Add returns a new accumulator with the specified e accumulated in it, and an
// increased index.
func (b *Accumulator) Add(sk *PrivateKey, e *big.Int) *Accumulator {
	return &Accumulator{
		Index: b.Index + 1,
		Nu:    new(big.Int).Exp(b.Nu, e, sk.N),
	}
}

// Remove returns a new accumulator with the specified e removed from it, and an
// increased index.
func (b *Accumulator) Remove(sk *PrivateKey, e *big.Int) (*Accumulator, error) {
	eInverse, ok := common.ModInverse(e, new(big.Int).Mul(sk.P, sk.Q))
	if !ok {
		// e has no inverse if and only if it shares a factor with P*Q, which
		// cannot happen for witness factors from an honest tails table
		return nil, errors.New("revocation attribute has no inverse")
	}

	return &Accumulator{
		Index: b.Index + 1,
		Nu:    new(big.Int).Exp(b.Nu, eInverse, sk.N),
	}, nil
}

// UnmarshalVerify checks the signature on the record's update message against the
// given public key and the consistency of the record's indices, returning the
// contained update.
func (r *Record) UnmarshalVerify(pk *PublicKey) (*AccumulatorUpdate, error) {
	msg := &AccumulatorUpdate{}
	if err := signed.UnmarshalVerify(pk.ECDSA, r.Message, msg); err != nil {
		return nil, err
	}
	if r.StartIndex != msg.StartIndex || r.EndIndex != msg.Accumulator.Index {
		return nil, errors.New("record has invalid start or end index")
	}
	if len(msg.Events) > 0 {
		if msg.Events[0].Index != msg.StartIndex {
			return nil, errors.New("update events do not start at start index")
		}
		for i, event := range msg.Events {
			if event.Index != msg.StartIndex+uint64(i) {
				return nil, errors.New("update events are not consecutive")
			}
		}
		if msg.Events[len(msg.Events)-1].Index != msg.Accumulator.Index {
			return nil, errors.New("update events do not end at accumulator index")
		}
	} else if msg.StartIndex != msg.Accumulator.Index {
		return nil, errors.New("record has invalid start or end index")
	}
	return msg, nil
}

// Verify checks that the witness is valid against the accumulator contained in its
// record.
func (w *Witness) Verify(pk *PublicKey) error {
	acc, err := w.Record.UnmarshalVerify(pk)
	if err != nil {
		return err
	}
	w.Index = acc.Accumulator.Index
	w.Nu = acc.Accumulator.Nu
	if !verify(w.U, w.E, &acc.Accumulator, pk.Group) {
		return errors.New("invalid witness")
	}
	return nil
}

// UpToDate returns nil if the witness is at the same version as the given
// accumulator, and ErrStaleWitness if it lags behind and must first be updated
// before it can be used in a nonrevocation proof.
func (w *Witness) UpToDate(acc *Accumulator) error {
	if w.Index != acc.Index || w.Nu == nil || w.Nu.Cmp(acc.Nu) != 0 {
		return ErrStaleWitness
	}
	return nil
}
