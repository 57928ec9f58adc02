package safeprime

import (
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/require"

	"github.com/credentials/anoncreds/big"
)

func TestGenerate(t *testing.T) {
	x, err := Generate(256, 0)

	require.NoError(t, err)
	require.NotNil(t, x)
	require.True(t, x.ProbablyPrime(100), "Generated number was not prime")
	require.Equal(t, 256, x.BitLen())

	y := new(big.Int).Sub(x, big.NewInt(1))
	y.Div(y, big.NewInt(2))

	require.True(t, y.ProbablyPrime(100), "Generated number was not a safe prime")
	require.True(t, ProbablySafePrime(x, 100))
}

func TestGenerateTimeout(t *testing.T) {
	_, err := Generate(256, 1)
	require.True(t, errors.Is(err, ErrGenerationTimeout))
}

func TestProbablySafePrime(t *testing.T) {
	require.True(t, ProbablySafePrime(big.NewInt(23), 100))
	require.False(t, ProbablySafePrime(big.NewInt(13), 100)) // prime, but 6 is not
	require.False(t, ProbablySafePrime(big.NewInt(15), 100))
	require.False(t, ProbablySafePrime(big.NewInt(2), 100))
}
