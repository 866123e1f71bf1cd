package eth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainIDTextRoundTrip(t *testing.T) {
	id := ChainIDFromUInt64(900)
	text, err := id.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "0x384", string(text))

	var got ChainID
	require.NoError(t, got.UnmarshalText(text))
	require.Equal(t, 0, id.Cmp(got))
}

func TestChainIDUnmarshalTextAcceptsDecimal(t *testing.T) {
	var got ChainID
	require.NoError(t, got.UnmarshalText([]byte("900")))
	require.Equal(t, 0, ChainIDFromUInt64(900).Cmp(got))
}

func TestChainIDAsMapKeyMarshalsToStringKeyedObject(t *testing.T) {
	m := map[ChainID]string{ChainIDFromUInt64(10): "a"}
	out, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"0xa":"a"}`, string(out))
}

func TestChainIDBytes32RoundTrip(t *testing.T) {
	id := ChainIDFromUInt64(12345)
	require.Equal(t, 0, id.Cmp(ChainIDFromBytes32(id.Bytes32())))
}
