package big

import (
	"io"

	"github.com/go-errors/errors"
)

// Checked modular arithmetic. All protocol code routes its modular operations
// through these functions so that invalid moduli, zero divisors and empty
// sampling ranges surface as typed errors instead of panics deep inside
// "math/big".

var (
	// ErrInvalidModulus is returned by modular operations when the modulus is not positive.
	ErrInvalidModulus = errors.New("modulus must be positive")
	// ErrDivisionByZero is returned by DivMod when the divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInvalidRange is returned when sampling from an empty or inverted range.
	ErrInvalidRange = errors.New("sampling range is empty or inverted")
	// ErrNoInverse is returned when a modular inverse does not exist.
	ErrNoInverse = errors.New("modular inverse does not exist")
)

// DefaultPrimalityRounds is the number of Miller-Rabin rounds used for
// cryptographic primes throughout this module.
const DefaultPrimalityRounds = 50

var one = NewInt(1)

// ModExp computes x^y mod m. The exponent y may be negative, in which case
// the result is computed via the modular inverse of x (in contrast to Go's
// Exp, which returns 1 for negative exponents when x has no inverse).
func ModExp(x, y, m *Int) (*Int, error) {
	if m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if y.Sign() == -1 {
		t := new(Int).ModInverse(x, m)
		if t == nil {
			return nil, ErrNoInverse
		}
		return t.Exp(t, new(Int).Neg(y), m), nil
	}
	return new(Int).Exp(x, y, m), nil
}

// ModExpSecret computes x^y mod m for a secret exponent y. It requires the
// modulus to be odd, so that "math/big" takes its Montgomery multiplication
// path, whose memory access pattern does not depend on the exponent bits.
func ModExpSecret(x, y, m *Int) (*Int, error) {
	if m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if m.Bit(0) == 0 {
		return nil, errors.WrapPrefix(ErrInvalidModulus, "secret-exponent exponentiation needs an odd modulus", 0)
	}
	if y.Sign() == -1 {
		return nil, errors.New("secret exponents must be non-negative")
	}
	return new(Int).Exp(x, y, m), nil
}

// ModInv returns the inverse of a in the multiplicative group mod m.
func ModInv(a, m *Int) (*Int, error) {
	if m.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	t := new(Int).ModInverse(a, m)
	if t == nil {
		return nil, ErrNoInverse
	}
	return t, nil
}

// DivMod returns the Euclidean quotient and remainder of x and y.
func DivMod(x, y *Int) (*Int, *Int, error) {
	if y.Sign() == 0 {
		return nil, nil, ErrDivisionByZero
	}
	q, r := new(Int).DivMod(x, y, new(Int))
	return q, r, nil
}

// RandIntRange returns a uniform random value in [low, high).
func RandIntRange(rnd io.Reader, low, high *Int) (*Int, error) {
	if low.Sign() < 0 || high.Cmp(low) <= 0 {
		return nil, ErrInvalidRange
	}
	width := new(Int).Sub(high, low)
	offset, err := RandInt(rnd, width)
	if err != nil {
		return nil, err
	}
	return offset.Add(offset, low), nil
}

// RandBits returns a uniform random value in [0, 2^bits).
func RandBits(rnd io.Reader, bits uint) (*Int, error) {
	max := new(Int).Lsh(one, bits)
	return RandInt(rnd, max)
}
