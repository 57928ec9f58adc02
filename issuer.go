package anoncreds

import (
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
	"github.com/credentials/anoncreds/revocation"
)

// ErrInvalidBlindedSecrets is returned when the holder's proof of correct
// formation of the commitment U does not verify; nothing is issued in that case.
var ErrInvalidBlindedSecrets = errors.New("proof of blinded secrets does not verify")

// Issuer holds the issuer's state during the issuance protocol.
type Issuer struct {
	Sk      *keys.PrivateKey
	Pk      *keys.PublicKey
	Context *big.Int
}

// NewIssuer creates a new credential issuer.
func NewIssuer(sk *keys.PrivateKey, pk *keys.PublicKey, context *big.Int) *Issuer {
	return &Issuer{Sk: sk, Pk: pk, Context: context}
}

// IssueSignature verifies the commitment proof in the IssueCommitmentMessage
// against the challenge nonce1 that was sent to the holder, and produces an
// IssueSignatureMessage containing a blind signature over the commitment and the
// attributes, together with a proof of correctness of that signature.
//
// If the message contains multiple proofs then the commitment proof is bound to
// the other proofs in the list, possibly against keys of other issuers; the
// caller must then verify the proof list itself before invoking this method.
//
// When revocation is enabled the caller obtains witness from the revocation
// database (DB.IssueWitness) and places its witness factor witness.E at the
// credential's revocation attribute index before calling this method; the
// witness travels to the holder inside the returned message.
func (i *Issuer) IssueSignature(msg *IssueCommitmentMessage, attributes []*big.Int, witness *revocation.Witness, nonce1 *big.Int) (*IssueSignatureMessage, error) {
	proofU, err := msg.Proofs.GetFirstProofU()
	if err != nil {
		return nil, err
	}
	if len(msg.Proofs) == 1 && !proofU.Verify(i.Pk, i.Context, nonce1) {
		return nil, ErrInvalidBlindedSecrets
	}

	signature, err := i.signCommitmentAndAttributes(proofU.U, attributes)
	if err != nil {
		return nil, err
	}
	proof, err := i.proveSignature(signature, msg.Nonce2)
	if err != nil {
		return nil, err
	}

	return &IssueSignatureMessage{
		Signature:            signature,
		Proof:                proof,
		NonRevocationWitness: witness,
	}, nil
}

// signCommitmentAndAttributes signs U and the attributes. The first base R_0 is
// skipped: it is bound to the master secret hidden inside U.
func (i *Issuer) signCommitmentAndAttributes(U *big.Int, attributes []*big.Int) (*CLSignature, error) {
	if len(attributes) != len(i.Pk.R)-1 {
		return nil, errors.New("wrong number of attributes for key")
	}
	return signMessageBlockAndCommitment(i.Sk, i.Pk, U, attributes, i.Pk.R[1:])
}

// randomElementMultiplicativeGroup returns a random element in the
// multiplicative group Z_{modulus}^*.
func randomElementMultiplicativeGroup(modulus *big.Int) *big.Int {
	r := big.NewInt(0)
	t := new(big.Int)
	for r.Sign() <= 0 || t.GCD(nil, nil, r, modulus).Cmp(bigOne) != 0 {
		r = common.FastRandomBigInt(modulus)
	}
	return r
}

// proveSignature proves knowledge of the e-th root A = Q^{1/e} in the signature.
func (i *Issuer) proveSignature(signature *CLSignature, nonce2 *big.Int) (*ProofS, error) {
	Q := new(big.Int).Exp(signature.A, signature.E, i.Pk.N)
	d, ok := common.ModInverse(signature.E, i.Sk.Order)
	if !ok {
		return nil, errors.New("signing exponent has no inverse")
	}

	eCommit := randomElementMultiplicativeGroup(i.Sk.Order)
	ACommit := new(big.Int).Exp(Q, eCommit, i.Pk.N)

	c := common.HashCommit([]*big.Int{i.Context, Q, signature.A, nonce2, ACommit}, false)
	eResponse := new(big.Int).Mul(c, d)
	eResponse.Sub(eCommit, eResponse).Mod(eResponse, i.Sk.Order)

	return &ProofS{C: c, EResponse: eResponse}, nil
}
