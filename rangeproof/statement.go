package rangeproof

import (
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/keys"
)

// Operator is a comparison between a hidden attribute and a public bound.
type Operator int

const (
	GreaterOrEqual Operator = iota
	Greater
	LesserOrEqual
	Lesser
	Equal
)

// Statement is a predicate over a hidden attribute: attribute Op Bound.
type Statement struct {
	Op    Operator
	Bound *big.Int
}

// component is a single a*(m-k) >= 0 inequality.
type component struct {
	sign int
	k    *big.Int
}

// components compiles the statement to inequalities of the form
// a*(m-k) >= 0. Strict comparisons shift the bound by one; equality needs
// both directions.
func (st *Statement) components() ([]component, error) {
	one := big.NewInt(1)
	switch st.Op {
	case GreaterOrEqual:
		return []component{{1, new(big.Int).Set(st.Bound)}}, nil
	case Greater:
		return []component{{1, new(big.Int).Add(st.Bound, one)}}, nil
	case LesserOrEqual:
		return []component{{-1, new(big.Int).Set(st.Bound)}}, nil
	case Lesser:
		return []component{{-1, new(big.Int).Sub(st.Bound, one)}}, nil
	case Equal:
		return []component{
			{1, new(big.Int).Set(st.Bound)},
			{-1, new(big.Int).Set(st.Bound)},
		}, nil
	default:
		return nil, errors.Errorf("unknown operator %d", st.Op)
	}
}

// NumProofs returns the number of component proofs a proof of this statement
// consists of.
func (st *Statement) NumProofs() int {
	if st.Op == Equal {
		return 2
	}
	return 1
}

// ProofStructures compiles the statement into the proof structures proving
// it, using the given splitter (the four-square splitter when nil).
func (st *Statement) ProofStructures(params *keys.SystemParameters, split SquareSplitter) ([]*ProofStructure, error) {
	if st.Bound == nil || st.Bound.Sign() < 0 {
		return nil, errors.New("statement bound must be non-negative")
	}
	if split == nil {
		split = &FourSquaresSplitter{}
	}
	comps, err := st.components()
	if err != nil {
		return nil, err
	}
	structures := make([]*ProofStructure, len(comps))
	for i, c := range comps {
		if c.k.Sign() < 0 {
			return nil, errors.New("statement bound out of range")
		}
		structures[i] = New(c.sign, c.k, split, params.Lh, params.Lstatzk, params.Lm)
	}
	return structures, nil
}

// VerifyStructures reconstructs the proof structures from the given proofs
// and checks that they prove this statement. The caller still needs to verify
// the proofs themselves against the session challenge.
func (st *Statement) VerifyStructures(params *keys.SystemParameters, proofs []*Proof) ([]*ProofStructure, error) {
	comps, err := st.components()
	if err != nil {
		return nil, err
	}
	if len(proofs) != len(comps) {
		return nil, errors.New("wrong number of proofs for statement")
	}
	structures := make([]*ProofStructure, len(comps))
	for i, c := range comps {
		if !proofs[i].ProvesStatement(c.sign, c.k) {
			return nil, errors.New("proof does not match statement")
		}
		structures[i], err = proofs[i].ExtractStructure(c.sign, params)
		if err != nil {
			return nil, err
		}
	}
	return structures, nil
}
