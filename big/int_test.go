package big

import (
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecimalRoundtrip(t *testing.T) {
	x, ok := new(Int).SetString("123456789012345678901234567890123456789", 10)
	require.True(t, ok)

	bts, err := json.Marshal(x)
	require.NoError(t, err)
	require.Equal(t, `"123456789012345678901234567890123456789"`, string(bts))

	y := new(Int)
	require.NoError(t, json.Unmarshal(bts, y))
	require.Zero(t, x.Cmp(y))
}

func TestUnmarshalBareInteger(t *testing.T) {
	y := new(Int)
	require.NoError(t, json.Unmarshal([]byte("42"), y))
	require.Zero(t, y.Cmp(NewInt(42)))
}

func TestMarshalNegativeFails(t *testing.T) {
	_, err := json.Marshal(NewInt(-1))
	require.Error(t, err)
}

func TestUnmarshalGarbageFails(t *testing.T) {
	y := new(Int)
	require.Error(t, json.Unmarshal([]byte(`"0x12"`), y))
}

func TestStructFieldRoundtrip(t *testing.T) {
	type wrapper struct {
		A *Int `json:"a"`
		B *Int `json:"b"`
	}
	v, err := RandBits(rand.Reader, 1024)
	require.NoError(t, err)
	w := wrapper{A: v, B: NewInt(0)}

	bts, err := json.Marshal(&w)
	require.NoError(t, err)

	var out wrapper
	require.NoError(t, json.Unmarshal(bts, &out))
	require.Zero(t, out.A.Cmp(v))
	require.Zero(t, out.B.Sign())
}
