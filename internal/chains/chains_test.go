package chains

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGanacheHexID(t *testing.T) {
	assert.Equal(t, "0x539", Ganache.IDHex())
	assert.Equal(t, int64(1337), Ganache.ChainID().Int64())
}

func TestAddParamsWireShape(t *testing.T) {
	b, err := json.Marshal(Ganache.AddParams())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"chainId": "0x539",
		"chainName": "Ganache",
		"nativeCurrency": {"name": "ETH", "symbol": "ETH", "decimals": 18},
		"rpcUrls": ["http://127.0.0.1:7545"],
		"blockExplorerUrls": []
	}`, string(b))
}

func TestSwitchParamsWireShape(t *testing.T) {
	b, err := json.Marshal([]interface{}{Ganache.SwitchParams()})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"chainId": "0x539"}]`, string(b))
}

func TestParseID(t *testing.T) {
	for in, want := range map[string]int64{"0x539": 1337, "1337": 1337, "0X1": 1, " 137 ": 137} {
		got, err := ParseID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseID("ganache")
	assert.Error(t, err)
}

func TestAddParamsRoundTrip(t *testing.T) {
	c, err := Ganache.AddParams().Blockchain()
	require.NoError(t, err)
	assert.Equal(t, Ganache.ID, c.ID)
	assert.Equal(t, Ganache.Currency, c.Currency)
}

func TestLookup(t *testing.T) {
	c, ok := Lookup(1337)
	require.True(t, ok)
	assert.Same(t, Ganache, c)
	_, ok = Lookup(424242)
	assert.False(t, ok)
	assert.NotEmpty(t, Known())
}
