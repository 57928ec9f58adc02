package keys

import (
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
)

// KeyCorrectnessProof is a Fiat-Shamir proof of knowledge of the discrete logs
// of Z and each R_i with respect to S, showing that the issuer derived all
// bases from S and thus knows no trapdoor relations between them. It is
// produced during key generation, when the discrete logs are still around, and
// verified by holders before they commit to a key.
type KeyCorrectnessProof struct {
	C     *big.Int   `json:"c"`
	ZResp *big.Int   `json:"zResponse"`
	RResp []*big.Int `json:"rResponses"`
}

// proveKeyCorrectness builds the proof from the discrete logs xz and xr of Z
// and the R_i. The responses are reduced modulo the group order, which the
// issuer knows.
func proveKeyCorrectness(priv *PrivateKey, pubk *PublicKey, xz *big.Int, xr []*big.Int) (*KeyCorrectnessProof, error) {
	commits := make([]*big.Int, len(xr)+1)
	randomizers := make([]*big.Int, len(xr)+1)

	for i := range randomizers {
		r := common.FastRandomBigInt(priv.Order)
		randomizers[i] = r
		commit := new(big.Int)
		pubk.sTable.Exp(commit.Go(), r.Go())
		commits[i] = commit
	}

	c := pubk.correctnessChallenge(commits)

	prf := &KeyCorrectnessProof{
		C:     c,
		ZResp: new(big.Int),
		RResp: make([]*big.Int, len(xr)),
	}
	prf.ZResp.Mul(c, xz).Add(prf.ZResp, randomizers[0]).Mod(prf.ZResp, priv.Order)
	for i, x := range xr {
		resp := new(big.Int).Mul(c, x)
		resp.Add(resp, randomizers[i+1]).Mod(resp, priv.Order)
		prf.RResp[i] = resp
	}

	return prf, nil
}

// VerifyKeyCorrectness checks the key correctness proof carried by the public
// key: it reconstructs each commitment as S^response * base^-challenge and
// recomputes the challenge over them.
func (pubk *PublicKey) VerifyKeyCorrectness() error {
	prf := pubk.CorrectnessPrf
	if prf == nil {
		return errors.New("public key carries no correctness proof")
	}
	if len(prf.RResp) != len(pubk.R) {
		return errors.New("key correctness proof does not match the number of bases")
	}

	commits := make([]*big.Int, len(pubk.R)+1)
	bases := append([]*big.Int{pubk.Z}, pubk.R...)
	responses := append([]*big.Int{prf.ZResp}, prf.RResp...)
	negc := new(big.Int).Neg(prf.C)

	for i, base := range bases {
		commit := new(big.Int)
		pubk.sTable.Exp(commit.Go(), responses[i].Go())
		baseNegC, err := big.ModExp(base, negc, pubk.N)
		if err != nil {
			return err
		}
		commit.Mul(commit, baseNegC).Mod(commit, pubk.N)
		commits[i] = commit
	}

	if pubk.correctnessChallenge(commits).Cmp(prf.C) != 0 {
		return errors.New("key correctness proof does not verify")
	}
	return nil
}

// correctnessChallenge hashes the key material and the commitments into the
// Fiat-Shamir challenge of the key correctness proof.
func (pubk *PublicKey) correctnessChallenge(commits []*big.Int) *big.Int {
	contributions := make([]*big.Int, 0, 2*len(commits)+2)
	contributions = append(contributions, pubk.N, pubk.S, pubk.Z)
	contributions = append(contributions, pubk.R...)
	contributions = append(contributions, commits...)
	return common.HashCommit(contributions, false)
}
