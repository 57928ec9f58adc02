package revocation

import (
	"github.com/credentials/anoncreds/big"
)

// QrGroup represents the group of quadratic residues modulo n = p*q, i.e.
// ((Z/nZ)*)^2 where p, q, (p-1)/2 and (q-1)/2 are all prime, together with the
// two base points the nonrevocation proof commitments are computed against.
type QrGroup struct {
	N    *big.Int // RSA modulus
	G, H *big.Int // Base points in QR_n

	// derivative bounds
	nDiv4       *big.Int // n/4
	nDiv4twoZk  *big.Int // n/4 * 2^(k'+k'')
	nbDiv4twoZk *big.Int // n/4 * B * 2^(k'+k'')
}

func NewQrGroup(modulus, g, h *big.Int) QrGroup {
	grp := QrGroup{N: modulus, G: g, H: h}
	grp.nDiv4 = new(big.Int).Div(grp.N, big.NewInt(4))
	grp.nDiv4twoZk = new(big.Int).Mul(grp.nDiv4, parameters.twoZk)
	grp.nbDiv4twoZk = new(big.Int).Mul(grp.nDiv4twoZk, parameters.b)
	return grp
}

func (g *QrGroup) Modulus() *big.Int {
	return g.N
}

func (g *qrGroup) Modulus() *big.Int {
	return g.N
}

func (g *qrGroup) Base(name string) *big.Int {
	switch name {
	case "g":
		return g.G
	case "h":
		return g.H
	default:
		return nil
	}
}

func (g *qrGroup) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	switch name {
	case "g", "h":
		ret.Exp(g.Base(name), exp, n)
		return true
	}
	return false
}

func (g *qrGroup) Names() []string {
	return []string{"g", "h"}
}
