// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package anoncreds

import (
	"encoding/json"

	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
)

// ProofBuilder is an object that holds the state of a single proof in a list of
// bounded proofs (see ProofList). CredentialBuilder and DisclosureProofBuilder
// implement this interface.
type ProofBuilder interface {
	Commit(randomizers map[string]*big.Int) ([]*big.Int, error)
	CreateProof(challenge *big.Int) Proof
	PublicKey() *keys.PublicKey
}

type (
	// ProofList represents a list of (typically bounded) proofs.
	ProofList []Proof

	// ProofBuilderList is a list of proof builders, for calculating a list of
	// bounded proofs sharing a single challenge and master secret response.
	ProofBuilderList []ProofBuilder
)

const skRandomizerName = "secretkey"

// ErrMissingProofU is returned when a ProofU proof is missing in a proof list
// where one is expected.
var ErrMissingProofU = errors.New("no ProofU in ProofList, has a CredentialBuilder been added?")

// GetProofU returns the n'th ProofU in this proof list.
func (pl ProofList) GetProofU(n int) (*ProofU, error) {
	count := 0
	for _, proof := range pl {
		if proofU, ok := proof.(*ProofU); ok {
			if count == n {
				return proofU, nil
			}
			count++
		}
	}
	return nil, ErrMissingProofU
}

// GetFirstProofU returns the first ProofU in this proof list.
func (pl ProofList) GetFirstProofU() (*ProofU, error) {
	return pl.GetProofU(0)
}

// UnmarshalJSON implements json.Unmarshaler (json's default unmarshaler is
// unable to handle a list of interfaces).
func (pl *ProofList) UnmarshalJSON(bts []byte) error {
	var proofs []Proof
	var temp []json.RawMessage
	if err := json.Unmarshal(bts, &temp); err != nil {
		return err
	}
	for _, proofbytes := range temp {
		proofd := &ProofD{}
		if err := json.Unmarshal(proofbytes, proofd); err != nil {
			return err
		}
		if proofd.A != nil {
			proofs = append(proofs, proofd)
			continue
		}
		proofu := &ProofU{}
		if err := json.Unmarshal(proofbytes, proofu); err != nil {
			return err
		}
		if proofu.U != nil {
			proofs = append(proofs, proofu)
			continue
		}
		return errors.New("unknown proof type found in ProofList")
	}
	*pl = proofs
	return nil
}

// challengeContributions collects and returns all the challenge contributions
// of the proofs contained in the proof list.
func (pl ProofList) challengeContributions(publicKeys []*keys.PublicKey) ([]*big.Int, error) {
	contributions := make([]*big.Int, 0, len(pl)*2)
	for i, proof := range pl {
		contrib, err := proof.ChallengeContribution(publicKeys[i])
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, contrib...)
	}
	return contributions, nil
}

// Verify checks that all proofs in the list verify against a single shared
// challenge, and that they share the master secret response, so that they all
// involve the same master secret. Failure is reported as
// ErrProofVerificationFailed.
func (pl ProofList) Verify(publicKeys []*keys.PublicKey, context, nonce *big.Int, issig bool) error {
	if len(pl) == 0 {
		return nil
	}
	if len(pl) != len(publicKeys) {
		return ErrProofVerificationFailed
	}

	contributions, err := pl.challengeContributions(publicKeys)
	if err != nil {
		return ErrProofVerificationFailed
	}
	expectedChallenge := createChallenge(context, nonce, contributions, issig)
	expectedSecretKeyResponse := pl[0].SecretKeyResponse()
	for i, proof := range pl {
		if expectedSecretKeyResponse.Cmp(proof.SecretKeyResponse()) != 0 ||
			!proof.VerifyWithChallenge(publicKeys[i], expectedChallenge) {
			return ErrProofVerificationFailed
		}
	}
	return nil
}

// Challenge performs the first move of the Schnorr protocol for all builders in
// the list: committing to all randomizers, with a shared randomizer for the
// master secret, and hashing the resulting commitments into the challenge.
func (builders ProofBuilderList) Challenge(context, nonce *big.Int, issig bool) (*big.Int, error) {
	skRandomizer, err := common.RandomBigInt(builders.skRandomizerLength())
	if err != nil {
		return nil, err
	}

	commitmentValues := make([]*big.Int, 0, len(builders)*2)
	for _, pb := range builders {
		contributions, err := pb.Commit(map[string]*big.Int{skRandomizerName: skRandomizer})
		if err != nil {
			return nil, err
		}
		commitmentValues = append(commitmentValues, contributions...)
	}

	return createChallenge(context, nonce, commitmentValues, issig), nil
}

// skRandomizerLength returns the size of the randomizer of the master secret,
// which is shared between all proofs in the list. Its responses must fit the
// LmCommit bound of every involved key, so when a 1024 bits key is among them
// we fall back from the 2048 bits parameters to the 1024 bits ones, whose
// smaller Lstatzk keeps the responses within bounds everywhere.
func (builders ProofBuilderList) skRandomizerLength() uint {
	length := keys.DefaultSystemParameters[2048].LmCommit
	for _, pb := range builders {
		if uint(pb.PublicKey().N.BitLen()) < keys.DefaultSystemParameters[2048].Ln {
			return keys.DefaultSystemParameters[1024].LmCommit
		}
	}
	return length
}

// BuildProofList builds a list of bounded proofs: proofs sharing a single
// challenge and a single response for the master secret.
func (builders ProofBuilderList) BuildProofList(context, nonce *big.Int, issig bool) (ProofList, error) {
	challenge, err := builders.Challenge(context, nonce, issig)
	if err != nil {
		return nil, err
	}
	proofs := make(ProofList, len(builders))
	for i, pb := range builders {
		proofs[i] = pb.CreateProof(challenge)
	}
	return proofs, nil
}
