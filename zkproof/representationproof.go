package zkproof

import (
	"github.com/credentials/anoncreds/big"
)

type (
	// LhsContribution is one base-power factor of the left-hand side of the
	// proven representation.
	LhsContribution struct {
		Base  string
		Power *big.Int
	}

	// RhsContribution is one base^(Power*Secret) factor of the right-hand side.
	RhsContribution struct {
		Base   string
		Secret string
		Power  int64
	}

	// QrRepresentationProofStructure describes a proof of knowledge of a
	// representation Lhs = prod_i Base_i^(Power_i * Secret_i) in the group of
	// quadratic residues modulo an RSA modulus. Since the group order is
	// unknown to everyone but the issuer, all exponent arithmetic is over the
	// integers.
	QrRepresentationProofStructure struct {
		Lhs []LhsContribution
		Rhs []RhsContribution
	}
)

// QrGroup is the modulus a QrRepresentationProofStructure computes in.
// Typically satisfied by an issuer public key.
type QrGroup interface {
	Modulus() *big.Int
}

// CommitmentsFromSecrets appends the commitment of the prover to list,
// computed from the secrets' randomizers.
func (s *QrRepresentationProofStructure) CommitmentsFromSecrets(g QrGroup, list []*big.Int, bases BaseLookup, secretdata SecretLookup) []*big.Int {
	n := g.Modulus()
	commitment := big.NewInt(1)
	var exp, contribution big.Int

	for _, curRhs := range s.Rhs {
		exp.Mul(big.NewInt(curRhs.Power), secretdata.Randomizer(curRhs.Secret))
		bases.Exp(&contribution, curRhs.Base, &exp, n)
		commitment.Mul(commitment, &contribution).Mod(commitment, n)
	}

	return append(list, commitment)
}

// CommitmentsFromProof appends the verifier's reconstruction of the prover's
// commitment to list, computed from the challenge and the responses.
func (s *QrRepresentationProofStructure) CommitmentsFromProof(g QrGroup, list []*big.Int, challenge *big.Int, bases BaseLookup, proofdata ProofLookup) []*big.Int {
	n := g.Modulus()
	var tmp, lhs big.Int
	lhs.SetUint64(1)
	for _, curLhs := range s.Lhs {
		bases.Exp(&tmp, curLhs.Base, curLhs.Power, n)
		lhs.Mul(&lhs, &tmp).Mod(&lhs, n)
	}
	lhs.ModInverse(&lhs, n)

	commitment := new(big.Int).Exp(&lhs, challenge, n)
	var exp, contribution big.Int
	for _, curRhs := range s.Rhs {
		exp.Mul(big.NewInt(curRhs.Power), proofdata.ProofResult(curRhs.Secret))
		bases.Exp(&contribution, curRhs.Base, &exp, n)
		commitment.Mul(commitment, &contribution).Mod(commitment, n)
	}

	return append(list, commitment)
}
