// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package anoncreds

import (
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
	"github.com/credentials/anoncreds/rangeproof"
	"github.com/credentials/anoncreds/revocation"
)

// Credential is a CL credential: a signature over the master secret and the
// attribute values, together with the public key it verifies against and, for
// revokable credentials, a nonrevocation witness.
type Credential struct {
	Signature            *CLSignature        `json:"signature"`
	Pk                   *keys.PublicKey     `json:"-"`
	Attributes           []*big.Int          `json:"attributes"`
	NonRevocationWitness *revocation.Witness `json:"nonrevWitness,omitempty"`

	nonrevCache chan *NonRevocationProofBuilder
}

// DisclosureProofBuilder holds the state for the protocol to produce a
// disclosure proof.
type DisclosureProofBuilder struct {
	randomizedSignature   *CLSignature
	eCommit, vCommit      *big.Int
	attrRandomizers       map[int]*big.Int
	z                     *big.Int
	disclosedAttributes   []int
	undisclosedAttributes []int
	pk                    *keys.PublicKey
	attributes            []*big.Int
	nonrevBuilder         *NonRevocationProofBuilder

	rpStructures map[int][]*rangeproof.ProofStructure
	rpCommits    map[int][]*rangeproof.ProofCommit
}

// NonRevocationProofBuilder holds the state for the nonrevocation component of a
// disclosure proof.
type NonRevocationProofBuilder struct {
	pk          *revocation.PublicKey
	witness     *revocation.Witness
	commit      *revocation.ProofCommit
	commitments []*big.Int
	randomizer  *big.Int
	index       uint64
}

// UpdateCommit updates the builder to the latest accumulator contained in the
// specified (updated) witness.
func (b *NonRevocationProofBuilder) UpdateCommit(witness *revocation.Witness) error {
	if b == nil || b.commit == nil || len(b.commitments) < 5 {
		return errors.New("cannot update noninitialized NonRevocationProofBuilder")
	}
	if b.index >= witness.Index {
		return nil
	}
	b.witness = witness
	b.commit.Update(b.commitments, witness)
	b.index = witness.Index
	return nil
}

func (b *NonRevocationProofBuilder) Commit() ([]*big.Int, error) {
	if b.commitments == nil {
		var err error
		b.commitments, b.commit, err = revocation.NewProofCommit(b.pk.Group, b.witness, b.randomizer)
		if err != nil {
			return nil, err
		}
	}
	return b.commitments, nil
}

func (b *NonRevocationProofBuilder) CreateProof(challenge *big.Int) *revocation.Proof {
	return b.commit.BuildProof(challenge)
}

// getUndisclosedAttributes computes, given a list of (indices of) disclosed
// attributes, a list of undisclosed attributes.
func getUndisclosedAttributes(disclosedAttributes []int, numAttributes int) []int {
	check := make([]bool, numAttributes)
	for _, v := range disclosedAttributes {
		check[v] = true
	}
	r := make([]int, 0, numAttributes)
	for i, v := range check {
		if !v {
			r = append(r, i)
		}
	}
	return r
}

// CreateDisclosureProof creates a disclosure proof (ProofD) for the provided
// names of disclosed attributes, proving the given range statements over hidden
// attributes and, when nonrev is non-nil, nonrevocation against that
// accumulator.
func (ic *Credential) CreateDisclosureProof(disclosed []string, rangeStatements map[string][]*rangeproof.Statement, nonrev *revocation.Accumulator, context, nonce1 *big.Int) (*ProofD, error) {
	builder, err := ic.CreateDisclosureProofBuilder(disclosed, rangeStatements, nonrev)
	if err != nil {
		return nil, err
	}
	challenge, err := ProofBuilderList{builder}.Challenge(context, nonce1, false)
	if err != nil {
		return nil, err
	}
	return builder.CreateProof(challenge).(*ProofD), nil
}

// CreateDisclosureProofBuilder produces a DisclosureProofBuilder, an object to
// hold the state in the protocol for producing a disclosure proof that is
// linked to other proofs.
//
// When nonrev is non-nil the proof will include a nonrevocation proof against
// that accumulator; if the credential's witness lags behind it this fails with
// ErrStaleWitness and the witness must first be updated.
func (ic *Credential) CreateDisclosureProofBuilder(disclosed []string, rangeStatements map[string][]*rangeproof.Statement, nonrev *revocation.Accumulator) (*DisclosureProofBuilder, error) {
	d := &DisclosureProofBuilder{}
	d.z = big.NewInt(1)
	d.pk = ic.Pk
	d.attributes = ic.Attributes

	var err error
	if d.randomizedSignature, err = ic.Signature.Randomize(ic.Pk); err != nil {
		return nil, err
	}
	if d.eCommit, err = common.RandomBigInt(ic.Pk.Params.LeCommit); err != nil {
		return nil, err
	}
	if d.vCommit, err = common.RandomBigInt(ic.Pk.Params.LvCommit); err != nil {
		return nil, err
	}

	d.disclosedAttributes = make([]int, 0, len(disclosed))
	for _, name := range disclosed {
		index, err := ic.Pk.Schema.Index(name)
		if err != nil {
			return nil, err
		}
		d.disclosedAttributes = append(d.disclosedAttributes, index)
	}
	d.undisclosedAttributes = getUndisclosedAttributes(d.disclosedAttributes, len(ic.Attributes))
	d.attrRandomizers = make(map[int]*big.Int)
	for _, v := range d.undisclosedAttributes {
		if d.attrRandomizers[v], err = common.RandomBigInt(ic.Pk.Params.LmCommit); err != nil {
			return nil, err
		}
	}

	if rangeStatements != nil {
		d.rpStructures = make(map[int][]*rangeproof.ProofStructure)
		for name, statements := range rangeStatements {
			index, err := ic.Pk.Schema.Index(name)
			if err != nil {
				return nil, err
			}
			if _, hidden := d.attrRandomizers[index]; !hidden {
				return nil, errors.New("range statements on revealed attributes are not supported")
			}
			for _, statement := range statements {
				structures, err := statement.ProofStructures(d.pk.Params, nil)
				if err != nil {
					return nil, err
				}
				d.rpStructures[index] = append(d.rpStructures[index], structures...)
			}
		}
	}

	if nonrev == nil {
		return d, nil
	}
	if ic.NonRevocationWitness == nil {
		return nil, errors.New("cannot prove nonrevocation: credential has no witness")
	}
	if err = ic.NonRevocationWitness.UpToDate(nonrev); err != nil {
		return nil, err
	}

	revIdx, err := ic.NonrevIndex()
	if err != nil {
		return nil, err
	}
	if _, hidden := d.attrRandomizers[revIdx]; !hidden {
		return nil, errors.New("revocation attribute cannot be disclosed")
	}
	if d.nonrevBuilder, err = ic.nonrevConsumeBuilder(); err != nil {
		return nil, err
	}
	d.attrRandomizers[revIdx] = d.nonrevBuilder.randomizer

	return d, nil
}

func (ic *Credential) nonrevConsumeBuilder() (*NonRevocationProofBuilder, error) {
	// Using either the channel value or a new one ensures that our output is used
	// at most once, lest we totally break security: reusing randomizers in a
	// second session makes it possible for the verifier to compute our revocation
	// witness e from the proofs
	select {
	case b := <-ic.nonrevCache:
		return b, b.UpdateCommit(ic.NonRevocationWitness)
	default:
		return ic.NonrevBuildProofBuilder()
	}
}

// NonrevPrepareCache ensures that the credential's nonrevocation proof builder
// cache is usable, by creating one if it does not exist, or otherwise updating it
// to the latest accumulator contained in the credential's witness.
func (ic *Credential) NonrevPrepareCache() error {
	if ic.NonRevocationWitness == nil {
		return nil
	}
	if ic.nonrevCache == nil {
		ic.nonrevCache = make(chan *NonRevocationProofBuilder, 1)
	}
	var b *NonRevocationProofBuilder
	var err error
	select {
	case b = <-ic.nonrevCache:
		Logger.Trace("updating existing nonrevocation commitment")
		err = b.UpdateCommit(ic.NonRevocationWitness)
	default:
		Logger.Trace("instantiating new nonrevocation commitment")
		b, err = ic.NonrevBuildProofBuilder()
	}
	if err != nil {
		return err
	}

	// put it back in the channel, waiting to be consumed by nonrevConsumeBuilder()
	// if the channel has been populated by another goroutine in the meantime we discard ours
	select {
	case ic.nonrevCache <- b:
	default:
	}

	return nil
}

// NonrevBuildProofBuilder builds and returns a new committed-to
// NonRevocationProofBuilder.
func (ic *Credential) NonrevBuildProofBuilder() (*NonRevocationProofBuilder, error) {
	if ic.NonRevocationWitness == nil {
		return nil, errors.New("credential has no nonrevocation witness")
	}
	rpk, err := revocation.NewPublicKey(ic.Pk)
	if err != nil {
		return nil, err
	}
	b := &NonRevocationProofBuilder{
		pk:         rpk,
		witness:    ic.NonRevocationWitness,
		index:      ic.NonRevocationWitness.Index,
		randomizer: revocation.NewProofRandomizer(),
	}
	if _, err = b.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// NonrevIndex returns the index of the credential's revocation attribute, i.e.
// the attribute equal to the witness factor of its nonrevocation witness.
func (ic *Credential) NonrevIndex() (int, error) {
	if ic.NonRevocationWitness == nil {
		return -1, errors.New("credential has no nonrevocation witness")
	}
	for idx, i := range ic.Attributes {
		if i.Cmp(ic.NonRevocationWitness.E) == 0 {
			return idx, nil
		}
	}
	return -1, errors.New("revocation attribute not included in credential")
}

// PublicKey returns the public key against which this disclosure proof will
// verify.
func (d *DisclosureProofBuilder) PublicKey() *keys.PublicKey {
	return d.pk
}

// Commit commits to the first attribute (the master secret) using the provided
// randomizer, and to all the hidden attributes, range statements and the
// nonrevocation witness using fresh ones.
func (d *DisclosureProofBuilder) Commit(randomizers map[string]*big.Int) ([]*big.Int, error) {
	d.attrRandomizers[0] = randomizers[skRandomizerName]

	// Z = A^{e_commit} * S^{v_commit} * prod_{i in undisclosed} R_i^{a_commit_i}
	Ae, err := common.ModPow(d.randomizedSignature.A, d.eCommit, d.pk.N)
	if err != nil {
		return nil, err
	}
	Sv, err := common.ModPow(d.pk.S, d.vCommit, d.pk.N)
	if err != nil {
		return nil, err
	}
	d.z.Mul(d.z, Ae).Mul(d.z, Sv).Mod(d.z, d.pk.N)
	for _, v := range d.undisclosedAttributes {
		t, err := common.ModPow(d.pk.R[v], d.attrRandomizers[v], d.pk.N)
		if err != nil {
			return nil, err
		}
		d.z.Mul(d.z, t).Mod(d.z, d.pk.N)
	}

	list := []*big.Int{d.randomizedSignature.A, d.z}

	if d.nonrevBuilder != nil {
		l, err := d.nonrevBuilder.Commit()
		if err != nil {
			return nil, err
		}
		list = append(list, l...)
	}

	if d.rpStructures != nil {
		d.rpCommits = make(map[int][]*rangeproof.ProofCommit)
		// stable attribute order is needed for the contributions
		for index := 0; index < len(d.attributes); index++ {
			structures, ok := d.rpStructures[index]
			if !ok {
				continue
			}
			g := rangeproof.NewQrGroup(d.pk.N, d.pk.R[index], d.pk.S)
			for _, s := range structures {
				contributions, commit, err := s.CommitmentsFromSecrets(&g, d.attributes[index], d.attrRandomizers[index])
				if err != nil {
					return nil, err
				}
				list = append(list, contributions...)
				d.rpCommits[index] = append(d.rpCommits[index], commit)
			}
		}
	}

	return list, nil
}

// CreateProof creates a disclosure proof with the provided challenge.
func (d *DisclosureProofBuilder) CreateProof(challenge *big.Int) Proof {
	ePrime := new(big.Int).Sub(d.randomizedSignature.E, new(big.Int).Lsh(bigOne, d.pk.Params.Le-1))
	eResponse := new(big.Int).Mul(challenge, ePrime)
	eResponse.Add(d.eCommit, eResponse)
	vResponse := new(big.Int).Mul(challenge, d.randomizedSignature.V)
	vResponse.Add(d.vCommit, vResponse)

	aResponses := make(map[int]*big.Int)
	for _, v := range d.undisclosedAttributes {
		exp := d.attributes[v]
		if exp.BitLen() > int(d.pk.Params.Lm) {
			exp = common.IntHashSha256(exp.Bytes())
		}
		t := new(big.Int).Mul(challenge, exp)
		aResponses[v] = t.Add(d.attrRandomizers[v], t)
	}

	aDisclosed := make(map[int]*big.Int)
	for _, v := range d.disclosedAttributes {
		aDisclosed[v] = d.attributes[v]
	}

	var nonrevProof *revocation.Proof
	if d.nonrevBuilder != nil {
		nonrevProof = d.nonrevBuilder.CreateProof(challenge)
		// stripped here, and reset from the attribute response during verification
		delete(nonrevProof.Results, "alpha")
	}

	var rangeProofs map[int][]*rangeproof.Proof
	if d.rpStructures != nil {
		rangeProofs = make(map[int][]*rangeproof.Proof)
		for index, structures := range d.rpStructures {
			for i, s := range structures {
				rangeProofs[index] = append(rangeProofs[index],
					s.BuildProof(d.rpCommits[index][i], challenge))
			}
		}
	}

	return &ProofD{
		C:                  challenge,
		A:                  d.randomizedSignature.A,
		EResponse:          eResponse,
		VResponse:          vResponse,
		AResponses:         aResponses,
		ADisclosed:         aDisclosed,
		NonRevocationProof: nonrevProof,
		RangeProofs:        rangeProofs,
	}
}

// GenerateSecretAttribute generates a secret attribute that can be used to prove
// ownership of, and links between, credentials of the same holder.
func GenerateSecretAttribute() (*big.Int, error) {
	return common.RandomBigInt(keys.DefaultSystemParameters[1024].Lm)
}
