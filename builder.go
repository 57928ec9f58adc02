// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package anoncreds

import (
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
	"github.com/credentials/anoncreds/revocation"
)

// IssueCommitmentMessage encapsulates the messages sent by the holder to the
// issuer in the second step of the issuance protocol.
type IssueCommitmentMessage struct {
	U      *big.Int  `json:"U,omitempty"`
	Nonce2 *big.Int  `json:"n_2"`
	Proofs ProofList `json:"combinedProofs"`
}

// IssueSignatureMessage encapsulates the messages sent from the issuer to the
// holder in the final step of the issuance protocol.
type IssueSignatureMessage struct {
	Proof                *ProofS             `json:"proof"`
	Signature            *CLSignature        `json:"signature"`
	NonRevocationWitness *revocation.Witness `json:"nonrev,omitempty"`
}

var (
	// ErrIncorrectProofOfSignatureCorrectness is returned when the proof of
	// correctness on the signature does not verify.
	ErrIncorrectProofOfSignatureCorrectness = errors.New("proof of correctness on signature does not verify")
	// ErrSignatureVerificationFailed is returned when the signature on the
	// attributes is not correct.
	ErrSignatureVerificationFailed = errors.New("signature on the attributes does not verify")
)

// CredentialBuilder holds the holder's state in the protocol to create a
// credential. It also implements the ProofBuilder interface.
type CredentialBuilder struct {
	secret       *big.Int
	vPrime       *big.Int
	vPrimeCommit *big.Int
	nonce2       *big.Int
	u            *big.Int
	skRandomizer *big.Int

	pk      *keys.PublicKey
	context *big.Int
}

// NewCredentialBuilder creates a new credential builder. The resulting builder
// is already committed to the provided secret: U = S^{v'} * R_0^{secret}.
func NewCredentialBuilder(pk *keys.PublicKey, context, secret, nonce2 *big.Int) (*CredentialBuilder, error) {
	vPrime, err := common.RandomBigInt(pk.Params.LvPrime)
	if err != nil {
		return nil, err
	}

	Sv, err := big.ModExpSecret(pk.S, vPrime, pk.N)
	if err != nil {
		return nil, err
	}
	R0s, err := big.ModExpSecret(pk.R[0], secret, pk.N)
	if err != nil {
		return nil, err
	}
	U := new(big.Int).Mul(Sv, R0s)
	U.Mod(U, pk.N)

	return &CredentialBuilder{
		pk:      pk,
		context: context,
		secret:  secret,
		vPrime:  vPrime,
		u:       U,
		nonce2:  nonce2,
	}, nil
}

// CommitToSecretAndProve creates the response to the issuer's challenge nonce
// nonce1: the commitment U to the secret together with a proof of correct
// formation of U.
func (b *CredentialBuilder) CommitToSecretAndProve(nonce1 *big.Int) (*IssueCommitmentMessage, error) {
	proofU, err := b.proveCommitment(nonce1)
	if err != nil {
		return nil, err
	}
	return &IssueCommitmentMessage{U: b.u, Proofs: ProofList{proofU}, Nonce2: b.nonce2}, nil
}

// CreateIssueCommitmentMessage creates the IssueCommitmentMessage based on the
// provided prooflist, to be sent to the issuer.
func (b *CredentialBuilder) CreateIssueCommitmentMessage(proofs ProofList) *IssueCommitmentMessage {
	return &IssueCommitmentMessage{U: b.u, Proofs: proofs, Nonce2: b.nonce2}
}

// ConstructCredential creates a credential out of the IssueSignatureMessage from
// the issuer and the attribute values, undoing the blinding and verifying both
// the issuer's proof of correctness and the signature itself.
func (b *CredentialBuilder) ConstructCredential(msg *IssueSignatureMessage, attributes []*big.Int) (*Credential, error) {
	if !msg.Proof.Verify(b.pk, msg.Signature, b.context, b.nonce2) {
		return nil, ErrIncorrectProofOfSignatureCorrectness
	}

	// Unblind the signature: v = v'' + v'
	signature := &CLSignature{
		A: msg.Signature.A,
		E: msg.Signature.E,
		V: new(big.Int).Add(msg.Signature.V, b.vPrime),
	}

	if msg.NonRevocationWitness != nil {
		rpk, err := revocation.NewPublicKey(b.pk)
		if err != nil {
			return nil, err
		}
		if err = msg.NonRevocationWitness.Verify(rpk); err != nil {
			return nil, err
		}
	}

	ms := append([]*big.Int{b.secret}, attributes...)
	if !signature.Verify(b.pk, ms) {
		return nil, ErrSignatureVerificationFailed
	}

	cred := &Credential{
		Pk:                   b.pk,
		Signature:            signature,
		Attributes:           ms,
		NonRevocationWitness: msg.NonRevocationWitness,
	}
	if msg.NonRevocationWitness != nil {
		if _, err := cred.NonrevIndex(); err != nil {
			return nil, err
		}
	}
	return cred, nil
}

func (b *CredentialBuilder) proveCommitment(nonce1 *big.Int) (*ProofU, error) {
	sCommit, err := common.RandomBigInt(b.pk.Params.LsCommit)
	if err != nil {
		return nil, err
	}
	vPrimeCommit, err := common.RandomBigInt(b.pk.Params.LvPrimeCommit)
	if err != nil {
		return nil, err
	}

	// U_commit = S^{v_prime_commit} * R_0^{s_commit}
	Sv, err := big.ModExpSecret(b.pk.S, vPrimeCommit, b.pk.N)
	if err != nil {
		return nil, err
	}
	R0s, err := big.ModExpSecret(b.pk.R[0], sCommit, b.pk.N)
	if err != nil {
		return nil, err
	}
	Ucommit := new(big.Int).Mul(Sv, R0s)
	Ucommit.Mod(Ucommit, b.pk.N)

	c := common.HashCommit([]*big.Int{b.context, b.u, Ucommit, nonce1}, false)

	sResponse := new(big.Int).Mul(c, b.secret)
	sResponse.Add(sResponse, sCommit)
	vPrimeResponse := new(big.Int).Mul(c, b.vPrime)
	vPrimeResponse.Add(vPrimeResponse, vPrimeCommit)

	return &ProofU{
		U:              b.u,
		C:              c,
		VPrimeResponse: vPrimeResponse,
		SResponse:      sResponse,
	}, nil
}

// PublicKey returns the public key against which the credential will verify.
func (b *CredentialBuilder) PublicKey() *keys.PublicKey {
	return b.pk
}

// Commit commits to the secret (first) attribute using the provided randomizer,
// as part of the ProofBuilder interface.
func (b *CredentialBuilder) Commit(randomizers map[string]*big.Int) ([]*big.Int, error) {
	b.skRandomizer = randomizers[skRandomizerName]
	var err error
	if b.vPrimeCommit, err = common.RandomBigInt(b.pk.Params.LvPrimeCommit); err != nil {
		return nil, err
	}

	// U_commit = S^{v_prime_commit} * R_0^{s_commit}
	uCommit, err := big.ModExpSecret(b.pk.S, b.vPrimeCommit, b.pk.N)
	if err != nil {
		return nil, err
	}
	R0s, err := big.ModExpSecret(b.pk.R[0], b.skRandomizer, b.pk.N)
	if err != nil {
		return nil, err
	}
	uCommit.Mul(uCommit, R0s).Mod(uCommit, b.pk.N)

	return []*big.Int{b.u, uCommit}, nil
}

// CreateProof creates a ProofU using the provided challenge.
func (b *CredentialBuilder) CreateProof(challenge *big.Int) Proof {
	sResponse := new(big.Int).Add(b.skRandomizer, new(big.Int).Mul(challenge, b.secret))
	vPrimeResponse := new(big.Int).Add(b.vPrimeCommit, new(big.Int).Mul(challenge, b.vPrime))

	return &ProofU{
		U:              b.u,
		C:              challenge,
		VPrimeResponse: vPrimeResponse,
		SResponse:      sResponse,
	}
}
