package wallet

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

func TestFormatEther(t *testing.T) {
	cases := map[string]*big.Int{
		"0.0":                  big.NewInt(0),
		"1.0":                  big.NewInt(params.Ether),
		"0.5":                  big.NewInt(params.Ether / 2),
		"0.000000000000000001": big.NewInt(1),
		"-2.25":                big.NewInt(-2250000000000000000),
		"1234.000000001":       new(big.Int).Add(new(big.Int).Mul(big.NewInt(1234), big.NewInt(params.Ether)), big.NewInt(params.GWei)),
	}
	for want, in := range cases {
		assert.Equal(t, want, FormatEther(in))
	}
	assert.Equal(t, "0.0", FormatEther(nil))
}

func TestParseEther(t *testing.T) {
	v, err := ParseEther("1")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(params.Ether), v)

	v, err = ParseEther(".5")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(params.Ether/2), v)

	v, err = ParseEther(" 0.000000000000000001 ")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v)

	for _, bad := range []string{"", ".", "1.2.3", "abc", "1e18", "0.0000000000000000001", "--1"} {
		_, err := ParseEther(bad)
		assert.True(t, errors.Is(err, ErrInvalidAmount), bad)
	}
}

func TestEtherRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	limit := new(big.Int).Lsh(big.NewInt(1), 200)
	values := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(1000), big.NewInt(params.Ether)}
	for i := 0; i < 200; i++ {
		values = append(values, new(big.Int).Rand(r, limit))
	}
	for _, x := range values {
		got, err := ParseEther(FormatEther(x))
		require.NoError(t, err)
		assert.Zero(t, x.Cmp(got), "round trip of %s", x)
	}
}

func TestFormatUnitsOtherDecimals(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1500000), 6))
	v, err := ParseUnits("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), v.Int64())
	assert.Equal(t, "42.0", FormatUnits(big.NewInt(42), 0))
}
