package anoncreds

import (
	"crypto/rand"

	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
)

var bigOne = big.NewInt(1)

// CLSignature is a Camenisch-Lysyanskaya signature on a block of attributes,
// valid iff Z = A^e * S^v * prod_i R_i^{m_i} (mod n).
type CLSignature struct {
	A *big.Int `json:"A"`
	E *big.Int `json:"e"`
	V *big.Int `json:"v"`
}

// signMessageBlockAndCommitment signs the messages ms against the bases Rs,
// folding the commitment U into the signature so that the signed block also
// covers the attributes hidden inside U.
func signMessageBlockAndCommitment(sk *keys.PrivateKey, pk *keys.PublicKey, U *big.Int, ms []*big.Int, Rs []*big.Int) (*CLSignature, error) {
	R := common.RepresentToBases(Rs, ms, pk.N, pk.Params.Lm)

	vTilde, err := common.RandomBigInt(pk.Params.Lv - 1)
	if err != nil {
		return nil, err
	}
	// force the top bit so that v is always of Lv bits
	v := new(big.Int).Add(new(big.Int).Lsh(bigOne, pk.Params.Lv-1), vTilde)

	// Q = Z * inv(S^v * R * U)
	numerator, err := big.ModExpSecret(pk.S, v, pk.N)
	if err != nil {
		return nil, err
	}
	numerator.Mul(numerator, R).Mul(numerator, U).Mod(numerator, pk.N)
	invNumerator, ok := common.ModInverse(numerator, pk.N)
	if !ok {
		return nil, errors.New("signing block has no inverse")
	}
	Q := new(big.Int).Mul(pk.Z, invNumerator)
	Q.Mod(Q, pk.N)

	e, err := common.RandomPrimeInRange(rand.Reader, pk.Params.Le-1, pk.Params.LePrime-1)
	if err != nil {
		return nil, err
	}

	d, ok := common.ModInverse(e, sk.Order)
	if !ok {
		return nil, errors.New("signing exponent has no inverse")
	}
	A := new(big.Int).Exp(Q, d, pk.N)

	return &CLSignature{A: A, E: e, V: v}, nil
}

// SignMessageBlock signs the block of messages ms.
func SignMessageBlock(sk *keys.PrivateKey, pk *keys.PublicKey, ms []*big.Int) (*CLSignature, error) {
	return signMessageBlockAndCommitment(sk, pk, big.NewInt(1), ms, pk.R)
}

// Verify checks the signature against the given public key and messages.
func (s *CLSignature) Verify(pk *keys.PublicKey, ms []*big.Int) bool {
	// e must be in [2^{Le-1}, 2^{Le-1} + 2^{LePrime-1}]
	start := new(big.Int).Lsh(bigOne, pk.Params.Le-1)
	end := new(big.Int).Add(start, new(big.Int).Lsh(bigOne, pk.Params.LePrime-1))
	if s.E.Cmp(start) < 0 || s.E.Cmp(end) > 0 {
		return false
	}

	// Q = A^e * R * S^v must equal Z
	Ae := new(big.Int).Exp(s.A, s.E, pk.N)
	R := common.RepresentToBases(pk.R, ms, pk.N, pk.Params.Lm)
	Sv, err := common.ModPow(pk.S, s.V, pk.N)
	if err != nil {
		return false
	}
	Q := new(big.Int).Mul(Ae, R)
	Q.Mul(Q, Sv).Mod(Q, pk.N)

	return pk.Z.Cmp(Q) == 0
}

// Randomize returns a randomized copy of the signature, unlinkable to the
// original and to other randomizations, valid on the same message block.
func (s *CLSignature) Randomize(pk *keys.PublicKey) (*CLSignature, error) {
	r, err := common.RandomBigInt(pk.Params.LRA)
	if err != nil {
		return nil, err
	}
	APrime := new(big.Int).Mul(s.A, new(big.Int).Exp(pk.S, r, pk.N))
	APrime.Mod(APrime, pk.N)
	VPrime := new(big.Int).Sub(s.V, new(big.Int).Mul(s.E, r))
	return &CLSignature{A: APrime, E: new(big.Int).Set(s.E), V: VPrime}, nil
}
