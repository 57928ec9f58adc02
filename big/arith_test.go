package big

import (
	"crypto/rand"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/require"
)

func TestModExp(t *testing.T) {
	r, err := ModExp(NewInt(4), NewInt(13), NewInt(497))
	require.NoError(t, err)
	require.Zero(t, r.Cmp(NewInt(445)))

	// negative exponent resolves via the inverse
	r, err = ModExp(NewInt(3), NewInt(-1), NewInt(7))
	require.NoError(t, err)
	require.Zero(t, r.Cmp(NewInt(5)))

	_, err = ModExp(NewInt(3), NewInt(-1), NewInt(9))
	require.True(t, errors.Is(err, ErrNoInverse))
}

func TestModExpInvalidModulus(t *testing.T) {
	for _, m := range []*Int{NewInt(0), NewInt(-5)} {
		_, err := ModExp(NewInt(2), NewInt(3), m)
		require.True(t, errors.Is(err, ErrInvalidModulus))
		_, err = ModExpSecret(NewInt(2), NewInt(3), m)
		require.True(t, errors.Is(err, ErrInvalidModulus))
		_, err = ModInv(NewInt(2), m)
		require.True(t, errors.Is(err, ErrInvalidModulus))
	}
}

func TestModExpSecretRequiresOddModulus(t *testing.T) {
	_, err := ModExpSecret(NewInt(2), NewInt(3), NewInt(8))
	require.True(t, errors.Is(err, ErrInvalidModulus))

	r, err := ModExpSecret(NewInt(2), NewInt(10), NewInt(1000001))
	require.NoError(t, err)
	require.Zero(t, r.Cmp(NewInt(1024)))
}

func TestDivMod(t *testing.T) {
	q, r, err := DivMod(NewInt(17), NewInt(5))
	require.NoError(t, err)
	require.Zero(t, q.Cmp(NewInt(3)))
	require.Zero(t, r.Cmp(NewInt(2)))

	_, _, err = DivMod(NewInt(17), NewInt(0))
	require.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestRandIntRange(t *testing.T) {
	low, high := NewInt(1000), NewInt(1024)
	for i := 0; i < 100; i++ {
		v, err := RandIntRange(rand.Reader, low, high)
		require.NoError(t, err)
		require.True(t, v.Cmp(low) >= 0)
		require.True(t, v.Cmp(high) < 0)
	}

	_, err := RandIntRange(rand.Reader, high, low)
	require.True(t, errors.Is(err, ErrInvalidRange))
	_, err = RandIntRange(rand.Reader, low, low)
	require.True(t, errors.Is(err, ErrInvalidRange))
}

func TestRandBits(t *testing.T) {
	max := new(Int).Lsh(NewInt(1), 128)
	for i := 0; i < 50; i++ {
		v, err := RandBits(rand.Reader, 128)
		require.NoError(t, err)
		require.True(t, v.Cmp(max) < 0)
		require.True(t, v.Sign() >= 0)
	}
}
