// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package anoncreds

import (
	"crypto/subtle"

	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
	"github.com/credentials/anoncreds/rangeproof"
	"github.com/credentials/anoncreds/revocation"
)

// ErrProofVerificationFailed is returned when a proof list does not verify.
var ErrProofVerificationFailed = errors.New("proof verification failed")

// Proof represents a non-interactive zero-knowledge proof.
type Proof interface {
	VerifyWithChallenge(pk *keys.PublicKey, reconstructedChallenge *big.Int) bool
	SecretKeyResponse() *big.Int
	ChallengeContribution(pk *keys.PublicKey) ([]*big.Int, error)
}

// createChallenge creates a challenge based on context, nonce and the
// contributions.
func createChallenge(context, nonce *big.Int, contributions []*big.Int, issig bool) *big.Int {
	// Sandwich the contributions between context and nonce
	input := make([]*big.Int, 2+len(contributions))
	input[0] = context
	copy(input[1:1+len(contributions)], contributions)
	input[len(input)-1] = nonce
	return common.HashCommit(input, issig)
}

// challengesEqual compares a proof's challenge against the reconstructed one in
// constant time over fixed-width encodings.
func challengesEqual(c, reconstructed *big.Int) bool {
	if c == nil || reconstructed == nil || c.Sign() < 0 {
		return false
	}
	cb, rb := c.Bytes(), reconstructed.Bytes()
	size := len(cb)
	if len(rb) > size {
		size = len(rb)
	}
	buf1 := make([]byte, size)
	buf2 := make([]byte, size)
	copy(buf1[size-len(cb):], cb)
	copy(buf2[size-len(rb):], rb)
	return subtle.ConstantTimeCompare(buf1, buf2) == 1
}

// ProofU is a proof of correct formation of the commitment U in the first phase
// of the issuance protocol.
type ProofU struct {
	U              *big.Int `json:"U"`
	C              *big.Int `json:"c"`
	VPrimeResponse *big.Int `json:"v_prime_response"`
	SResponse      *big.Int `json:"s_response"`
}

// Verify verifies whether the proof is correct.
func (p *ProofU) Verify(pk *keys.PublicKey, context, nonce *big.Int) bool {
	contrib, err := p.ChallengeContribution(pk)
	if err != nil {
		return false
	}
	return p.VerifyWithChallenge(pk, createChallenge(context, nonce, contrib, false))
}

// correctStructure checks that all elements of the proof are present, so that a
// proof deserialized from untrusted input fails verification instead of
// crashing it.
func (p *ProofU) correctStructure() bool {
	return p.U != nil && p.C != nil && p.VPrimeResponse != nil && p.SResponse != nil
}

// correctResponseSizes checks the sizes of the elements in the ProofU proof.
func (p *ProofU) correctResponseSizes(pk *keys.PublicKey) bool {
	maximum := new(big.Int).Lsh(bigOne, pk.Params.LvPrimeCommit+1)
	maximum.Sub(maximum, bigOne)
	return p.VPrimeResponse.Sign() >= 0 && p.VPrimeResponse.Cmp(maximum) <= 0
}

// VerifyWithChallenge verifies the proof against the provided reconstructed
// challenge.
func (p *ProofU) VerifyWithChallenge(pk *keys.PublicKey, reconstructedChallenge *big.Int) bool {
	return p.correctStructure() &&
		p.correctResponseSizes(pk) &&
		challengesEqual(p.C, reconstructedChallenge)
}

// reconstructUcommit reconstructs the commitment on U from the responses:
// U_commit = U^{-c} * S^{v_prime_response} * R_0^{s_response}
func (p *ProofU) reconstructUcommit(pk *keys.PublicKey) (*big.Int, error) {
	Uc, err := common.ModPow(p.U, new(big.Int).Neg(p.C), pk.N)
	if err != nil {
		return nil, err
	}
	Sv, err := common.ModPow(pk.S, p.VPrimeResponse, pk.N)
	if err != nil {
		return nil, err
	}
	R0s, err := common.ModPow(pk.R[0], p.SResponse, pk.N)
	if err != nil {
		return nil, err
	}
	Ucommit := new(big.Int).Mul(Uc, Sv)
	Ucommit.Mul(Ucommit, R0s).Mod(Ucommit, pk.N)
	return Ucommit, nil
}

// SecretKeyResponse returns the response for the master secret (as part of the
// Proof interface).
func (p *ProofU) SecretKeyResponse() *big.Int {
	return p.SResponse
}

// Challenge returns the challenge in the proof.
func (p *ProofU) Challenge() *big.Int {
	return p.C
}

// ChallengeContribution returns the contribution of this proof to the challenge.
func (p *ProofU) ChallengeContribution(pk *keys.PublicKey) ([]*big.Int, error) {
	if !p.correctStructure() {
		return nil, errors.New("ProofU is missing elements")
	}
	Ucommit, err := p.reconstructUcommit(pk)
	if err != nil {
		return nil, err
	}
	return []*big.Int{p.U, Ucommit}, nil
}

// ProofS is the issuer's proof of knowledge of the e-th root used to compute A,
// showing that the signature was correctly formed.
type ProofS struct {
	C         *big.Int `json:"c"`
	EResponse *big.Int `json:"e_response"`
}

// Verify verifies the proof against the given public key, signature, context,
// and nonce.
func (p *ProofS) Verify(pk *keys.PublicKey, signature *CLSignature, context, nonce *big.Int) bool {
	// Reconstruct A_commit = A^{c + e_response * e}
	exponent := new(big.Int).Mul(p.EResponse, signature.E)
	exponent.Add(p.C, exponent)
	ACommit := new(big.Int).Exp(signature.A, exponent, pk.N)

	Q := new(big.Int).Exp(signature.A, signature.E, pk.N)

	cPrime := common.HashCommit([]*big.Int{context, Q, signature.A, nonce, ACommit}, false)
	return challengesEqual(p.C, cPrime)
}

// ProofD is a disclosure proof: a proof of knowledge of a CL signature over an
// attribute block, revealing a chosen subset of the attributes and optionally
// proving range predicates and nonrevocation over hidden ones.
type ProofD struct {
	C                  *big.Int                    `json:"c"`
	A                  *big.Int                    `json:"A"`
	EResponse          *big.Int                    `json:"e_response"`
	VResponse          *big.Int                    `json:"v_response"`
	AResponses         map[int]*big.Int            `json:"a_responses"`
	ADisclosed         map[int]*big.Int            `json:"a_disclosed"`
	NonRevocationProof *revocation.Proof           `json:"nonrev_proof,omitempty"`
	RangeProofs        map[int][]*rangeproof.Proof `json:"rangeproofs,omitempty"`

	cachedRangeStructures map[int][]*rangeproof.ProofStructure
}

func (p *ProofD) reconstructRangeProofStructures(pk *keys.PublicKey) error {
	p.cachedRangeStructures = make(map[int][]*rangeproof.ProofStructure)
	for index, proofs := range p.RangeProofs {
		structures := make([]*rangeproof.ProofStructure, 0, len(proofs))
		for _, proof := range proofs {
			s, err := proof.ExtractStructure(proof.Sign, pk.Params)
			if err != nil {
				return err
			}
			structures = append(structures, s)
		}
		p.cachedRangeStructures[index] = structures
	}
	return nil
}

// correctStructure checks that all elements of the proof are present, so that a
// proof deserialized from untrusted input fails verification instead of
// crashing it.
func (p *ProofD) correctStructure() bool {
	if p.C == nil || p.A == nil || p.EResponse == nil || p.VResponse == nil {
		return false
	}
	for _, response := range p.AResponses {
		if response == nil {
			return false
		}
	}
	for _, attribute := range p.ADisclosed {
		if attribute == nil {
			return false
		}
	}
	for _, proofs := range p.RangeProofs {
		for _, proof := range proofs {
			if proof == nil {
				return false
			}
		}
	}
	return true
}

// correctResponseSizes checks the sizes of the elements in the ProofD proof.
func (p *ProofD) correctResponseSizes(pk *keys.PublicKey) bool {
	// Check range on the AResponses
	maximum := new(big.Int).Lsh(bigOne, pk.Params.LmCommit+1)
	maximum.Sub(maximum, bigOne)
	for _, aResponse := range p.AResponses {
		if aResponse.Sign() < 0 || aResponse.Cmp(maximum) > 0 {
			return false
		}
	}

	// Check range on EResponse
	maximum.Lsh(bigOne, pk.Params.LeCommit+1)
	maximum.Sub(maximum, bigOne)
	return p.EResponse.Sign() >= 0 && p.EResponse.Cmp(maximum) <= 0
}

// reconstructZ reconstructs the prover's commitment on Z from the responses and
// the disclosed attributes.
func (p *ProofD) reconstructZ(pk *keys.PublicKey) (*big.Int, error) {
	// known = Z / ( prod_{disclosed} R_i^{a_i} * A^{2^{Le-1}} )
	numerator := new(big.Int).Lsh(bigOne, pk.Params.Le-1)
	numerator.Exp(p.A, numerator, pk.N)
	for i, attribute := range p.ADisclosed {
		if i >= len(pk.R) {
			return nil, errors.New("disclosed attribute index out of range")
		}
		exp := attribute
		if exp.BitLen() > int(pk.Params.Lm) {
			exp = common.IntHashSha256(exp.Bytes())
		}
		numerator.Mul(numerator, new(big.Int).Exp(pk.R[i], exp, pk.N)).Mod(numerator, pk.N)
	}

	known, ok := common.ModInverse(numerator, pk.N)
	if !ok {
		return nil, errors.New("no inverse while reconstructing Z")
	}
	known.Mul(pk.Z, known)

	knownC, err := common.ModPow(known, new(big.Int).Neg(p.C), pk.N)
	if err != nil {
		return nil, err
	}
	Ae, err := common.ModPow(p.A, p.EResponse, pk.N)
	if err != nil {
		return nil, err
	}
	Sv, err := common.ModPow(pk.S, p.VResponse, pk.N)
	if err != nil {
		return nil, err
	}
	Rs := big.NewInt(1)
	for i, response := range p.AResponses {
		if i >= len(pk.R) {
			return nil, errors.New("attribute response index out of range")
		}
		t, err := common.ModPow(pk.R[i], response, pk.N)
		if err != nil {
			return nil, err
		}
		Rs.Mul(Rs, t).Mod(Rs, pk.N)
	}
	Z := new(big.Int).Mul(knownC, Ae)
	Z.Mul(Z, Rs).Mul(Z, Sv).Mod(Z, pk.N)

	return Z, nil
}

// Verify verifies the proof against the given public key, context, and nonce.
func (p *ProofD) Verify(pk *keys.PublicKey, context, nonce1 *big.Int, issig bool) bool {
	contrib, err := p.ChallengeContribution(pk)
	if err != nil {
		return false
	}
	return p.VerifyWithChallenge(pk, createChallenge(context, nonce1, contrib, issig))
}

func (p *ProofD) HasNonRevocationProof() bool {
	return p.NonRevocationProof != nil
}

// VerifyWithChallenge verifies the proof against the given public key and the
// provided reconstructed challenge.
func (p *ProofD) VerifyWithChallenge(pk *keys.PublicKey, reconstructedChallenge *big.Int) bool {
	if !p.correctStructure() {
		return false
	}
	notrevoked := true
	if p.HasNonRevocationProof() {
		revIdx := p.revocationAttrIndex()
		if revIdx < 0 {
			return false
		}
		notrevoked = p.NonRevocationProof.VerifyWithChallenge(reconstructedChallenge) &&
			p.NonRevocationProof.Results["alpha"].Cmp(p.AResponses[revIdx]) == 0
	}
	// Range proofs were already validated during challenge reconstruction
	return notrevoked &&
		p.correctResponseSizes(pk) &&
		challengesEqual(p.C, reconstructedChallenge)
}

// VerifyNonRevocation returns nil when the nonrevocation proof contained in this
// proof was made against the given accumulator version, and ErrStaleWitness when
// it was made against an older one, in which case the prover must refresh its
// witness and prove again.
func (p *ProofD) VerifyNonRevocation(acc *revocation.Accumulator) error {
	if p.NonRevocationProof == nil {
		return errors.New("proof contains no nonrevocation proof")
	}
	if p.NonRevocationProof.Index != acc.Index || p.NonRevocationProof.Nu.Cmp(acc.Nu) != 0 {
		return revocation.ErrStaleWitness
	}
	return nil
}

// ProvesRangeStatements returns whether the range proofs over the attribute at
// the given index prove the given statements. The proof itself must separately
// verify against the session challenge.
func (p *ProofD) ProvesRangeStatements(pk *keys.PublicKey, index int, statements []*rangeproof.Statement) bool {
	proofs := p.RangeProofs[index]
	offset := 0
	for _, st := range statements {
		n := st.NumProofs()
		if offset+n > len(proofs) {
			return false
		}
		if _, err := st.VerifyStructures(pk.Params, proofs[offset:offset+n]); err != nil {
			return false
		}
		offset += n
	}
	return offset == len(proofs)
}

// ChallengeContribution returns the contribution of this proof to the challenge.
func (p *ProofD) ChallengeContribution(pk *keys.PublicKey) ([]*big.Int, error) {
	if !p.correctStructure() {
		return nil, errors.New("ProofD is missing elements")
	}
	z, err := p.reconstructZ(pk)
	if err != nil {
		return nil, errors.WrapPrefix(err, "could not reconstruct Z", 0)
	}

	l := []*big.Int{p.A, z}
	if p.NonRevocationProof != nil {
		revIdx := p.revocationAttrIndex()
		if revIdx < 0 {
			return nil, errors.New("no revocation response found")
		}
		rpk, err := revocation.NewPublicKey(pk)
		if err != nil {
			return nil, err
		}
		p.NonRevocationProof.SetExpected(p.C, p.AResponses[revIdx])
		if !p.NonRevocationProof.VerifyStructure() {
			return nil, errors.New("nonrevocation proof is missing elements")
		}
		l = append(l, p.NonRevocationProof.ChallengeContributions(rpk.Group)...)
	}

	if p.RangeProofs != nil {
		if p.cachedRangeStructures == nil {
			if err := p.reconstructRangeProofStructures(pk); err != nil {
				return nil, err
			}
		}
		// stable attribute order is needed for the contributions, so walk the
		// indices rather than the map
		maxAttribute := 0
		for k := range p.RangeProofs {
			if k > maxAttribute {
				maxAttribute = k
			}
		}
		for index := 0; index <= maxAttribute; index++ {
			structures, ok := p.cachedRangeStructures[index]
			if !ok {
				continue
			}
			if p.AResponses[index] == nil || index >= len(pk.R) {
				return nil, errors.New("range proof over invalid attribute index")
			}
			g := rangeproof.NewQrGroup(pk.N, pk.R[index], pk.S)
			for i, s := range structures {
				p.RangeProofs[index][i].MResponse = new(big.Int).Set(p.AResponses[index])
				if !s.VerifyProofStructure(&g, p.RangeProofs[index][i]) {
					return nil, errors.New("invalid range proof")
				}
				l = append(l, s.CommitmentsFromProof(&g, p.RangeProofs[index][i], p.C)...)
			}
		}
	}

	return l, nil
}

// SecretKeyResponse returns the response for the master secret (as part of the
// Proof interface).
func (p *ProofD) SecretKeyResponse() *big.Int {
	return p.AResponses[0]
}

// revocationAttrIndex returns the index of the attribute response that can contain
// a revocation witness factor, which is recognizable by its size: witness factors
// are much smaller than other attributes, so their responses are too.
func (p *ProofD) revocationAttrIndex() int {
	params := revocation.Parameters
	max := new(big.Int).Lsh(bigOne, params.AttributeSize+params.ChallengeLength+params.ZkStat+1)
	for idx, i := range p.AResponses {
		if i.Cmp(max) < 0 {
			return idx
		}
	}
	return -1
}

// Challenge returns the challenge in the proof.
func (p *ProofD) Challenge() *big.Int {
	return p.C
}

// GenerateNonce generates a nonce for use in proofs.
func GenerateNonce() (*big.Int, error) {
	return common.RandomBigInt(keys.DefaultSystemParameters[2048].Lstatzk)
}
