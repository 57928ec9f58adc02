package rangeproof

import (
	"github.com/credentials/anoncreds/big"
)

// QrGroup represents the group of quadratic residues modulo n = p*q, i.e. ((Z/nZ)*)^2
// where p, q, (p-1)/2 and (q-1)/2 are all prime, together with the two base
// points the range proof commitments are computed against.
type (
	QrGroup struct {
		N    *big.Int // RSA modulus
		R, S *big.Int // Base points in QR_n
	}

	qrGroup QrGroup
)

func NewQrGroup(modulus, R, S *big.Int) QrGroup {
	return QrGroup{
		N: new(big.Int).Set(modulus),
		R: new(big.Int).Set(R),
		S: new(big.Int).Set(S),
	}
}

func (g *QrGroup) Modulus() *big.Int {
	return g.N
}

func (g *qrGroup) Base(name string) *big.Int {
	switch name {
	case "R":
		return g.R
	case "S":
		return g.S
	default:
		return nil
	}
}

func (g *qrGroup) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	switch name {
	case "R", "S":
		ret.Exp(g.Base(name), exp, n)
		return true
	}
	return false
}

func (g *qrGroup) Names() []string {
	return []string{"R", "S"}
}
