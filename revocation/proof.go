package revocation

import (
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/signed"
	"github.com/credentials/anoncreds/zkproof"
)

/*
This implements the zero knowledge proof of the RSA-B accumulator, as on page 8 and
15 of the paper cited in the package documentation, with the following differences.

 1. We skip the first, second and third items in the proof conjunction on page 8:
    these only serve to prove that the secret e is committed to in an element of a
    known prime order group. We have no such group: everything happens within QR_n.
 2. The relation C_e = g^e * h^r1 is replaced by the CL relation
    Z = A^epsilon * S^v * Ri^mi * Re^e which is already proved by the calling code.
 3. The bounds A and B between which the witness factor e is chosen do not satisfy
    the relation B*2^(k'+k''+1) < A^2 - 1, which again would only be relevant in the
    presence of a known prime order group. Instead we take for B the maximum size
    such that e still fits in an attribute under the 1024-bit parameters, and A one
    bit below, so that with overwhelming probability no e is chosen twice.
 4. Secrets and randomizers within the zero-knowledge proofs are taken positive,
    instead of from symmetric intervals [-A,A].
 5. Like the other proofs in this module but unlike the paper, responses are
    computed as randomizer + challenge*secret.
 6. We use the Fiat-Shamir heuristic, include the challenge c in the proof, and
    verify by hashing the Schnorr commitments reconstructed from the proof,
    obtaining c' which must equal c.
*/

type (
	Proof struct {
		Cr        *big.Int // Cr = g^r2 * h^r3      = g^epsilon * h^zeta
		Cu        *big.Int // Cu = u    * h^r2
		Nu        *big.Int // nu = Cu^e * h^(-e*r2) = Cu^alpha * h^-beta
		Challenge *big.Int
		Results   map[string]*big.Int
		Index     uint64
	}

	ProofCommit struct {
		cu, cr, nu  *big.Int
		secrets     map[string]*big.Int
		randomizers map[string]*big.Int
		g           *qrGroup
		index       uint64
	}

	proofStructure struct {
		cr  zkproof.QrRepresentationProofStructure
		nu  zkproof.QrRepresentationProofStructure
		one zkproof.QrRepresentationProofStructure
	}

	// We implement the zkproof lookup interfaces, containing exported methods,
	// without exposing those methods outside the package by implementing them on
	// unexported structs, at the cost of having to cast back and forth between
	// these equivalent types when crossing the API boundary
	proof       Proof
	proofCommit ProofCommit
	accumulator Accumulator
	witness     Witness
	qrGroup     QrGroup
)

// Parameters of the nonrevocation proofs. Exported so that enclosing proofs of
// knowledge can recognize the response over the witness factor among their own
// responses by its size.
var Parameters = struct {
	AttributeMinSize uint // minimum size in bits for prime e
	AttributeSize    uint // maximum size in bits for prime e
	ChallengeLength  uint // k'  = len(SHA256) = 256
	ZkStat           uint // k'' = 128
}{
	AttributeMinSize: 207,
	AttributeSize:    208,
	ChallengeLength:  256,
	ZkStat:           128,
}

var (
	// derived from Parameters in init():
	// 2^(k'+k''), B*2^(k'+k''+1), 2^AttributeMinSize, 2^AttributeSize
	parameters = struct {
		twoZk, bTwoZk, a, b *big.Int
	}{}

	bigOne         = big.NewInt(1)
	secretNames    = []string{"alpha", "beta", "delta", "epsilon", "zeta"}
	proofstructure = proofStructure{
		cr: zkproof.QrRepresentationProofStructure{
			Lhs: []zkproof.LhsContribution{{Base: "cr", Power: bigOne}},
			Rhs: []zkproof.RhsContribution{
				{Base: "g", Secret: "epsilon", Power: 1}, // r2
				{Base: "h", Secret: "zeta", Power: 1},    // r3
			},
		},
		nu: zkproof.QrRepresentationProofStructure{
			Lhs: []zkproof.LhsContribution{{Base: "nu", Power: bigOne}},
			Rhs: []zkproof.RhsContribution{
				{Base: "cu", Secret: "alpha", Power: 1}, // e
				{Base: "h", Secret: "beta", Power: -1},  // e r2
			},
		},
		one: zkproof.QrRepresentationProofStructure{
			Lhs: []zkproof.LhsContribution{{Base: "one", Power: bigOne}},
			Rhs: []zkproof.RhsContribution{
				{Base: "cr", Secret: "alpha", Power: 1}, // e
				{Base: "g", Secret: "beta", Power: -1},  // e r2
				{Base: "h", Secret: "delta", Power: -1}, // e r3
			},
		},
	}
)

func init() {
	// Compute derivative parameters
	parameters.twoZk = new(big.Int).Lsh(bigOne, Parameters.ChallengeLength+Parameters.ZkStat)
	parameters.a = new(big.Int).Lsh(bigOne, Parameters.AttributeMinSize)
	parameters.b = new(big.Int).Lsh(bigOne, Parameters.AttributeSize)
	parameters.bTwoZk = new(big.Int).Mul(parameters.b, new(big.Int).Mul(parameters.twoZk, big.NewInt(2)))
}

// API

// NewProofRandomizer returns a bigint suitable for use as the randomizer in a
// nonrevocation zero knowledge proof.
func NewProofRandomizer() *big.Int {
	return common.FastRandomBigInt(new(big.Int).Mul(parameters.b, parameters.twoZk))
}

// RandomWitness returns a new random Witness valid against the specified
// Accumulator.
func RandomWitness(sk *PrivateKey, acc *Accumulator) (*Witness, error) {
	e, err := randomWitnessFactor()
	if err != nil {
		return nil, err
	}
	return newWitness(sk, acc, e)
}

// NewProofCommit performs the first move in the Schnorr zero-knowledge protocol:
// committing to randomizers.
func NewProofCommit(grp *QrGroup, witn *Witness, randomizer *big.Int) ([]*big.Int, *ProofCommit, error) {
	witn.randomizer = randomizer
	if randomizer == nil {
		witn.randomizer = NewProofRandomizer()
	}
	if !proofstructure.isTrue((*witness)(witn), witn.Nu, grp.N) {
		return nil, nil, errors.New("non-revocation relation does not hold")
	}

	bases := zkproof.NewBaseMerge((*qrGroup)(grp), &accumulator{Nu: witn.Nu})
	list, commit := proofstructure.commitmentsFromSecrets((*qrGroup)(grp), []*big.Int{}, &bases, (*witness)(witn))
	commit.index = witn.Index
	return list, (*ProofCommit)(&commit), nil
}

func (p *Proof) ChallengeContributions(grp *QrGroup) []*big.Int {
	return proofstructure.commitmentsFromProof(
		(*qrGroup)(grp), []*big.Int{}, p.Challenge, (*qrGroup)(grp), (*proof)(p))
}

// VerifyStructure checks that all elements of the proof are present.
func (p *Proof) VerifyStructure() bool {
	return proofstructure.verifyProofStructure((*proof)(p))
}

func (p *Proof) VerifyWithChallenge(reconstructedChallenge *big.Int) bool {
	if !proofstructure.verifyProofStructure((*proof)(p)) {
		return false
	}
	if (*proof)(p).ProofResult("alpha").Cmp(parameters.bTwoZk) > 0 {
		return false
	}
	return p.Challenge.Cmp(reconstructedChallenge) == 0
}

// SetExpected sets the challenge and the response over the witness factor to the
// values expected by an enclosing proof of knowledge, which strips the witness
// factor response before sending and carries it in its own responses instead.
func (p *Proof) SetExpected(challenge, response *big.Int) {
	if p.Results == nil {
		p.Results = make(map[string]*big.Int, len(secretNames))
	}
	p.Challenge = challenge
	p.Results["alpha"] = response
}

func (c *ProofCommit) BuildProof(challenge *big.Int) *Proof {
	results := make(map[string]*big.Int, 5)
	for _, name := range secretNames {
		results[name] = new(big.Int).Add(
			(*proofCommit)(c).Randomizer(name),
			new(big.Int).Mul(
				challenge,
				(*proofCommit)(c).Secret(name)),
		)
	}

	return &Proof{
		Cr: c.cr, Cu: c.cu, Nu: c.nu,
		Challenge: challenge,
		Results:   results,
		Index:     c.index,
	}
}

// Update recomputes the commitments that depend on the witness, after the witness
// has been updated to a newer accumulator between committing and challenge
// generation.
func (c *ProofCommit) Update(commitments []*big.Int, witness *Witness) {
	c.cu = new(big.Int).Exp(c.g.H, c.secrets["epsilon"], c.g.N)
	c.cu.Mul(c.cu, witness.U)
	c.nu = witness.Nu
	c.index = witness.Index

	commit := (*proofCommit)(c)
	b := zkproof.NewBaseMerge(c.g, commit)
	l := proofstructure.nu.CommitmentsFromSecrets(c.g, []*big.Int{}, &b, commit)

	commitments[1] = c.cu
	commitments[2] = witness.Nu
	commitments[4] = l[0]
}

// Update updates the witness using the specified update message from the issuer,
// after which the witness can be used to prove nonrevocation against the latest
// Accumulator (contained in the update message). Returns ErrRevoked if the update
// removes the witness's own factor from the accumulator.
func (w *Witness) Update(pk *PublicKey, message signed.Message) error {
	var update AccumulatorUpdate
	if err := signed.UnmarshalVerify(pk.ECDSA, message, &update); err != nil {
		return err
	}

	if update.Accumulator.Index <= w.Index || update.StartIndex > w.Index+1 {
		return nil // update was already applied or is too new
	}

	// partition the events not yet applied into accumulated and removed factors
	added := big.NewInt(1)
	removed := big.NewInt(1)
	for _, event := range update.Events {
		if event.Index <= w.Index {
			continue
		}
		if event.Removed {
			if event.E.Cmp(w.E) == 0 {
				return ErrRevoked
			}
			removed.Mul(removed, event.E)
		} else {
			added.Mul(added, event.E)
		}
	}

	newU := new(big.Int).Exp(w.U, added, pk.Group.N)

	if removed.Cmp(bigOne) != 0 {
		// u' = u^b * nu^a mod n, with a, b such that a*e + b*removed = 1
		var a, b big.Int
		if new(big.Int).GCD(&a, &b, w.E, removed).Cmp(bigOne) != 0 {
			return ErrRevoked
		}
		newU.Mul(
			new(big.Int).Exp(newU, &b, pk.Group.N),
			new(big.Int).Exp(update.Accumulator.Nu, &a, pk.Group.N),
		).Mod(newU, pk.Group.N)
	}

	if !verify(newU, w.E, &update.Accumulator, pk.Group) {
		return errors.New("nonrevocation witness invalidated by update")
	}

	// Update witness state only now after all possible errors have not occured
	w.U = newU
	w.Nu = update.Accumulator.Nu
	w.Index = update.Accumulator.Index

	return nil
}

// Zero-knowledge proof methods

func (c *proofCommit) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	ret.Exp(c.Base(name), exp, n)
	return true
}

func (c *proofCommit) Base(name string) *big.Int {
	switch name {
	case "cu":
		return c.cu
	case "cr":
		return c.cr
	case "nu":
		return c.nu
	case "one":
		return big.NewInt(1)
	default:
		return nil
	}
}

func (c *proofCommit) Names() []string {
	return []string{"cu", "cr", "nu", "one"}
}

func (c *proofCommit) Secret(name string) *big.Int {
	return c.secrets[name]
}

func (c *proofCommit) Randomizer(name string) *big.Int {
	return c.randomizers[name]
}

func (p *proof) ProofResult(name string) *big.Int {
	return p.Results[name]
}

func (p *proof) verify(g *qrGroup) bool {
	commitments := proofstructure.commitmentsFromProof(g, []*big.Int{}, p.Challenge, g, p)
	return (*Proof)(p).VerifyWithChallenge(common.HashCommit(commitments, false))
}

func (s *proofStructure) commitmentsFromSecrets(g *qrGroup, list []*big.Int, bases zkproof.BaseLookup, secretdata zkproof.SecretLookup) ([]*big.Int, proofCommit) {
	commit := proofCommit{
		g:           g,
		secrets:     make(map[string]*big.Int, 5),
		randomizers: make(map[string]*big.Int, 5),
		cu:          new(big.Int),
		cr:          new(big.Int),
		nu:          bases.Base("nu"),
	}

	r2 := common.FastRandomBigInt(g.nDiv4)
	r3 := common.FastRandomBigInt(g.nDiv4)

	alpha := secretdata.Secret("alpha")
	commit.secrets["alpha"] = alpha
	commit.secrets["beta"] = new(big.Int).Mul(alpha, r2)
	commit.secrets["delta"] = new(big.Int).Mul(alpha, r3)
	commit.secrets["epsilon"] = r2
	commit.secrets["zeta"] = r3

	commit.randomizers["alpha"] = secretdata.Randomizer("alpha")
	commit.randomizers["beta"] = common.FastRandomBigInt(g.nbDiv4twoZk)
	commit.randomizers["delta"] = common.FastRandomBigInt(g.nbDiv4twoZk)
	commit.randomizers["epsilon"] = common.FastRandomBigInt(g.nDiv4twoZk)
	commit.randomizers["zeta"] = common.FastRandomBigInt(g.nDiv4twoZk)

	var tmp big.Int

	// Set C_r = g^r2 * h^r3
	bases.Exp(commit.cr, "g", r2, g.N)
	bases.Exp(&tmp, "h", r3, g.N)
	commit.cr.Mul(commit.cr, &tmp).Mod(commit.cr, g.N)
	// Set C_u = u * h^r2
	bases.Exp(&tmp, "h", r2, g.N)
	commit.cu.Mul(secretdata.Secret("u"), &tmp).Mod(commit.cu, g.N)

	list = append(list, commit.cr, commit.cu, commit.nu)

	b := zkproof.NewBaseMerge(bases, &commit)
	list = s.cr.CommitmentsFromSecrets(g, list, &b, &commit)
	list = s.nu.CommitmentsFromSecrets(g, list, &b, &commit)
	list = s.one.CommitmentsFromSecrets(g, list, &b, &commit)

	return list, commit
}

func (s *proofStructure) commitmentsFromProof(g *qrGroup, list []*big.Int, challenge *big.Int, bases zkproof.BaseLookup, p *proof) []*big.Int {
	b := zkproof.NewBaseMerge(bases, &proofCommit{cr: p.Cr, cu: p.Cu, nu: p.Nu})

	list = append(list, p.Cr, p.Cu, p.Nu)
	list = s.cr.CommitmentsFromProof(g, list, challenge, &b, p)
	list = s.nu.CommitmentsFromProof(g, list, challenge, &b, p)
	list = s.one.CommitmentsFromProof(g, list, challenge, &b, p)

	return list
}

func (s *proofStructure) verifyProofStructure(p *proof) bool {
	for _, name := range secretNames {
		if p.Results[name] == nil {
			return false
		}
	}
	return p.Cr != nil && p.Cu != nil && p.Nu != nil && p.Challenge != nil
}

func (s *proofStructure) isTrue(secretdata zkproof.SecretLookup, nu, n *big.Int) bool {
	return new(big.Int).
		Exp(secretdata.Secret("u"), secretdata.Secret("alpha"), n).
		Cmp(nu) == 0
}

func (b accumulator) Base(name string) *big.Int {
	if name == "nu" {
		return b.Nu
	}
	return nil
}

func (b accumulator) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	if name == "nu" {
		ret.Exp(b.Nu, exp, n)
		return true
	}
	return false
}

func (b accumulator) Names() []string {
	return []string{"nu"}
}

func (w *witness) Secret(name string) *big.Int {
	switch name {
	case "alpha":
		return w.E
	case "u":
		return w.U
	}

	return nil
}

func (w *witness) Randomizer(name string) *big.Int {
	if name == "alpha" {
		return w.randomizer
	}
	return nil
}

// Helpers

func verify(u, e *big.Int, acc *Accumulator, grp *QrGroup) bool {
	return new(big.Int).Exp(u, e, grp.N).Cmp(acc.Nu) == 0
}

func newWitness(sk *PrivateKey, acc *Accumulator, e *big.Int) (*Witness, error) {
	order := new(big.Int).Mul(sk.P, sk.Q)
	eInverse, ok := common.ModInverse(e, order)
	if !ok {
		return nil, errors.New("failed to compute modular inverse")
	}
	u := new(big.Int).Exp(acc.Nu, eInverse, sk.N)
	return &Witness{U: u, E: e, Nu: acc.Nu, Index: acc.Index}, nil
}
