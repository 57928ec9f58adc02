// Package rangeproof implements a variation of the inequality proof protocol
// from section 6.2.6/6.3.6 of the Identity Mixer specification, proving
// statements of the form a*(m-k) >= 0 about a hidden attribute m.
//
// The prover decomposes delta = a*(m-k) as a sum of squares
// delta = sum_i d_i^2, commits to each component as C_i = R^d_i S^v_i, and
// proves the commitments well-formed together with
//
//	R^(offset - f*a*k) = prod_i C_i^d_i * R^(-f*a*m) * S^(-v5)
//
// where v5 = sum_i d_i*v_i. Four-square decompositions prove delta directly
// (f=1, offset=0); three-square decompositions prove 4*delta+2 instead
// (f=4, offset=2), since every number congruent 2 mod 4 is a sum of three
// squares. Soundness follows from the strong RSA assumption: extracting two
// different openings of the relation yields an e-th root or a factorization
// of the modulus, as in "A Signature Scheme with Efficient Protocols"
// (Camenisch and Lysyanskaya).
package rangeproof

import (
	"fmt"
	"strconv"

	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/keys"
	"github.com/credentials/anoncreds/zkproof"
)

type (
	ProofStructure struct {
		cRep     []zkproof.QrRepresentationProofStructure
		mCorrect zkproof.QrRepresentationProofStructure

		a int
		k *big.Int

		// statement transform: prove factor*a*(m-k) + offset = sum of squares
		factor int64
		offset int64

		splitter SquareSplitter
		ld       uint
		lm       uint
		lh       uint
		lstatzk  uint
	}

	// Proof contains the per-statement proof data: the square commitments,
	// the responses, and enough metadata (Sign, Ld, K) for a verifier to
	// reconstruct the proof structure.
	Proof struct {
		Cs         []*big.Int `json:"Cs"`
		DResponses []*big.Int `json:"ds"`
		VResponses []*big.Int `json:"vs"`
		V5Response *big.Int   `json:"v5"`
		MResponse  *big.Int   `json:"m"`
		Sign       int        `json:"a"`
		Ld         uint       `json:"ld"`
		K          *big.Int   `json:"k"`
	}

	ProofCommit struct {
		// Bases
		c []*big.Int

		// Secrets
		d            []*big.Int
		dRandomizer  []*big.Int
		v            []*big.Int
		vRandomizer  []*big.Int
		v5           *big.Int
		v5Randomizer *big.Int
		m            *big.Int
		mRandomizer  *big.Int
	}

	proof       Proof
	proofCommit ProofCommit
)

// New creates a proof structure for proving a statement of form a*(m-k) >= 0,
// where a is 1 or -1 and k >= 0.
//
//	split describes the method used for splitting numbers into sums of squares
//	lh is the size of the challenge
//	lm the size of m, and also the number of bits of computational hiding
//	lstatzk the number of bits of statistical hiding to use
func New(a int, k *big.Int, split SquareSplitter, lh, lstatzk, lm uint) *ProofStructure {
	if split.SquareCount() > 4 {
		panic("No support for range proofs with delta split in more than 4 squares")
	}
	result := newStructure(a, k, split.SquareCount(), split.Ld(), lh, lstatzk, lm)
	result.splitter = split
	return result
}

func newStructure(a int, k *big.Int, squares int, ld, lh, lstatzk, lm uint) *ProofStructure {
	if a != 1 && a != -1 {
		panic("Sign must be 1 or -1")
	}

	factor, offset := int64(1), int64(0)
	if squares == 3 {
		// 3 squares can only produce numbers that are 2 mod 4
		factor, offset = 4, 2
	}
	fa := factor * int64(a)

	result := &ProofStructure{
		mCorrect: zkproof.QrRepresentationProofStructure{
			Lhs: []zkproof.LhsContribution{
				{Base: "R", Power: new(big.Int).Sub(big.NewInt(offset), new(big.Int).Mul(big.NewInt(fa), k))},
			},
			Rhs: []zkproof.RhsContribution{
				{Base: "S", Secret: "v5", Power: -1},
				{Base: "R", Secret: "m", Power: -fa},
			},
		},

		a:      a,
		k:      new(big.Int).Set(k),
		factor: factor,
		offset: offset,

		ld:      ld,
		lm:      lm,
		lh:      lh,
		lstatzk: lstatzk,
	}

	for i := 0; i < squares; i++ {
		result.cRep = append(result.cRep, zkproof.QrRepresentationProofStructure{
			Lhs: []zkproof.LhsContribution{
				{Base: fmt.Sprintf("C%d", i), Power: big.NewInt(1)},
			},
			Rhs: []zkproof.RhsContribution{
				{Base: "R", Secret: fmt.Sprintf("d%d", i), Power: 1},
				{Base: "S", Secret: fmt.Sprintf("v%d", i), Power: 1},
			},
		})

		result.mCorrect.Rhs = append(result.mCorrect.Rhs, zkproof.RhsContribution{
			Base:   fmt.Sprintf("C%d", i),
			Secret: fmt.Sprintf("d%d", i),
			Power:  1,
		})
	}

	return result
}

// CommitmentsFromSecrets computes the prover's commitment contributions for
// attribute value m. The caller provides the attribute's randomizer so the
// resulting MResponse ties this proof to the enclosing disclosure proof.
func (s *ProofStructure) CommitmentsFromSecrets(g *QrGroup, m, mRandomizer *big.Int) ([]*big.Int, *ProofCommit, error) {
	if s.splitter == nil {
		return nil, nil, errors.New("proof structure has no splitter")
	}

	d := new(big.Int).Sub(m, s.k)
	d.Mul(d, big.NewInt(s.factor*int64(s.a)))
	if d.Sign() < 0 {
		return nil, nil, errors.New("requested inequality does not hold")
	}
	d.Add(d, big.NewInt(s.offset))

	commit := &proofCommit{
		m:           m,
		mRandomizer: mRandomizer,
	}

	var err error
	commit.d, err = s.splitter.Split(d)
	if err != nil {
		return nil, nil, err
	}
	if len(commit.d) != len(s.cRep) {
		return nil, nil, errors.New("split function returned wrong number of results")
	}

	// Check d values and generate randomizers for them
	dRandomizerLimit := new(big.Int).Lsh(big.NewInt(1), s.ld+s.lh+s.lstatzk)
	commit.dRandomizer = make([]*big.Int, len(commit.d))
	for i, v := range commit.d {
		if v.BitLen() > int(s.ld) {
			return nil, nil, errors.New("split function returned oversized d")
		}
		commit.dRandomizer[i] = common.FastRandomBigInt(dRandomizerLimit)
	}

	// Generate v and vRandomizers
	commit.v = make([]*big.Int, len(commit.d))
	commit.vRandomizer = make([]*big.Int, len(commit.d))
	vLimit := new(big.Int).Lsh(big.NewInt(1), s.lm)
	vRandomizerLimit := new(big.Int).Lsh(big.NewInt(1), s.lm+s.lh+s.lstatzk)
	for i := range commit.d {
		commit.v[i] = common.FastRandomBigInt(vLimit)
		commit.vRandomizer[i] = common.FastRandomBigInt(vRandomizerLimit)
	}

	// Generate v5 and its randomizer
	commit.v5 = big.NewInt(0)
	for i := range commit.d {
		contrib := new(big.Int).Mul(commit.d[i], commit.v[i])
		commit.v5.Add(commit.v5, contrib)
	}
	commit.v5Randomizer = common.FastRandomBigInt(new(big.Int).Lsh(big.NewInt(1), s.lm+s.ld+2+s.lh+s.lstatzk))

	// Calculate the bases
	commit.c = make([]*big.Int, len(commit.d))
	for i := range commit.d {
		commit.c[i] = new(big.Int).Exp(g.R, commit.d[i], g.N)
		commit.c[i].Mul(commit.c[i], new(big.Int).Exp(g.S, commit.v[i], g.N))
		commit.c[i].Mod(commit.c[i], g.N)
	}

	bases := zkproof.NewBaseMerge((*qrGroup)(g), commit)

	contributions := []*big.Int{}
	contributions = s.mCorrect.CommitmentsFromSecrets(g, contributions, &bases, commit)
	for i := range commit.d {
		contributions = s.cRep[i].CommitmentsFromSecrets(g, contributions, &bases, commit)
	}

	return contributions, (*ProofCommit)(commit), nil
}

func (s *ProofStructure) BuildProof(commit *ProofCommit, challenge *big.Int) *Proof {
	result := &Proof{
		Cs:         make([]*big.Int, len(commit.c)),
		DResponses: make([]*big.Int, len(commit.d)),
		VResponses: make([]*big.Int, len(commit.v)),
		V5Response: new(big.Int).Add(new(big.Int).Mul(challenge, commit.v5), commit.v5Randomizer),
		MResponse:  new(big.Int).Add(new(big.Int).Mul(challenge, commit.m), commit.mRandomizer),
		Sign:       s.a,
		Ld:         s.ld,
		K:          new(big.Int).Set(s.k),
	}

	for i := range commit.c {
		result.Cs[i] = new(big.Int).Set(commit.c[i])
	}
	for i := range commit.d {
		result.DResponses[i] = new(big.Int).Add(new(big.Int).Mul(challenge, commit.d[i]), commit.dRandomizer[i])
	}
	for i := range commit.v {
		result.VResponses[i] = new(big.Int).Add(new(big.Int).Mul(challenge, commit.v[i]), commit.vRandomizer[i])
	}

	return result
}

func (s *ProofStructure) VerifyProofStructure(g *QrGroup, p *Proof) bool {
	if len(s.cRep) != len(p.Cs) || len(s.cRep) != len(p.DResponses) || len(s.cRep) != len(p.VResponses) {
		return false
	}

	if p.V5Response == nil || p.MResponse == nil {
		return false
	}

	if uint(p.V5Response.BitLen()) > s.lm+s.ld+2+s.lh+s.lstatzk+1 ||
		uint(p.MResponse.BitLen()) > s.lm+s.lh+s.lstatzk+1 {
		return false
	}

	for i := range s.cRep {
		if p.Cs[i] == nil || p.DResponses[i] == nil || p.VResponses[i] == nil {
			return false
		}

		if p.Cs[i].BitLen() > g.N.BitLen() ||
			uint(p.DResponses[i].BitLen()) > s.ld+s.lh+s.lstatzk+1 ||
			uint(p.VResponses[i].BitLen()) > s.lm+s.lh+s.lstatzk+1 {
			return false
		}
	}

	return true
}

func (s *ProofStructure) CommitmentsFromProof(g *QrGroup, p *Proof, challenge *big.Int) []*big.Int {
	bases := zkproof.NewBaseMerge((*qrGroup)(g), (*proof)(p))

	contributions := []*big.Int{}
	contributions = s.mCorrect.CommitmentsFromProof(g, contributions, challenge, &bases, (*proof)(p))
	for i := range s.cRep {
		contributions = s.cRep[i].CommitmentsFromProof(g, contributions, challenge, &bases, (*proof)(p))
	}

	return contributions
}

// ExtractStructure reconstructs the proof structure for verification from the
// metadata carried by the proof, given the verifier's sign a and system
// parameters. The splitter is not needed for verification and is left unset.
func (p *Proof) ExtractStructure(a int, params *keys.SystemParameters) (*ProofStructure, error) {
	if a != 1 && a != -1 {
		return nil, errors.New("sign must be 1 or -1")
	}
	if p.K == nil || p.Sign != a || p.Ld > params.Lm {
		return nil, errors.New("invalid proof metadata")
	}
	if len(p.Cs) != 3 && len(p.Cs) != 4 {
		return nil, errors.New("unsupported square count")
	}
	return newStructure(a, p.K, len(p.Cs), p.Ld, params.Lh, params.Lstatzk, params.Lm), nil
}

// ProvesStatement returns whether the proof claims the statement
// a*(m-k) >= 0. The claim itself still needs verifying.
func (p *Proof) ProvesStatement(a int, k *big.Int) bool {
	return p.K != nil && p.Sign == a && p.K.Cmp(k) == 0
}

// ---
// Commit structure lookups
// ---
func (c *proofCommit) Secret(name string) *big.Int {
	if name == "m" {
		return c.m
	}
	if name == "v5" {
		return c.v5
	}
	if name[0] == 'v' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(c.v) {
			return nil
		}
		return c.v[i]
	}
	if name[0] == 'd' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(c.d) {
			return nil
		}
		return c.d[i]
	}
	return nil
}

func (c *proofCommit) Randomizer(name string) *big.Int {
	if name == "m" {
		return c.mRandomizer
	}
	if name == "v5" {
		return c.v5Randomizer
	}
	if name[0] == 'v' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(c.vRandomizer) {
			return nil
		}
		return c.vRandomizer[i]
	}
	if name[0] == 'd' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(c.dRandomizer) {
			return nil
		}
		return c.dRandomizer[i]
	}
	return nil
}

func (c *proofCommit) Base(name string) *big.Int {
	if name[0] == 'C' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(c.c) {
			return nil
		}
		return c.c[i]
	}
	return nil
}

func (c *proofCommit) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	base := c.Base(name)
	if base == nil {
		return false
	}
	ret.Exp(base, exp, n)
	return true
}

func (c *proofCommit) Names() []string {
	result := make([]string, 0, len(c.c))
	for i := range c.c {
		result = append(result, fmt.Sprintf("C%d", i))
	}

	return result
}

// ---
// Proof structure lookups
// ---
func (p *proof) ProofResult(name string) *big.Int {
	if name == "m" {
		return p.MResponse
	}
	if name == "v5" {
		return p.V5Response
	}
	if name[0] == 'v' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(p.VResponses) {
			return nil
		}
		return p.VResponses[i]
	}
	if name[0] == 'd' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(p.DResponses) {
			return nil
		}
		return p.DResponses[i]
	}
	return nil
}

func (p *proof) Base(name string) *big.Int {
	if name[0] == 'C' {
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(p.Cs) {
			return nil
		}
		return p.Cs[i]
	}
	return nil
}

func (p *proof) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	base := p.Base(name)
	if base == nil {
		return false
	}
	ret.Exp(base, exp, n)
	return true
}

func (p *proof) Names() []string {
	result := make([]string, 0, len(p.Cs))
	for i := range p.Cs {
		result = append(result, fmt.Sprintf("C%d", i))
	}

	return result
}
