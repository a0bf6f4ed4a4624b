package wcbridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

func TestSealOpen(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	for _, msg := range []string{"", "a", strings.Repeat("x", 16), `{"id":1,"jsonrpc":"2.0","method":"eth_accounts","params":[]}  `} {
		sealed, err := Seal([]byte(msg), key)
		require.NoError(t, err)
		opened, err := Open(sealed.Marshal(), key)
		require.NoError(t, err)
		assert.Equal(t, msg, string(opened))
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	sealed, err := Seal([]byte("hello"), key)
	require.NoError(t, err)

	other, err := GenerateKey()
	require.NoError(t, err)
	_, err = Open(sealed.Marshal(), other)
	assert.True(t, errors.Is(err, ErrHmacMismatch))

	flipped := *sealed
	if flipped.Data[0] == '0' {
		flipped.Data = "1" + flipped.Data[1:]
	} else {
		flipped.Data = "0" + flipped.Data[1:]
	}
	_, err = Open(flipped.Marshal(), key)
	assert.True(t, errors.Is(err, ErrHmacMismatch))
}

func TestURI(t *testing.T) {
	key := []byte{0xde, 0xad, 0xbe, 0xef}
	uri := URI("topic-1", "https://b.bridge.walletconnect.org", key)
	assert.Equal(t, "wc:topic-1@1?bridge=https%3A%2F%2Fb.bridge.walletconnect.org&key=deadbeef", uri)

	topic, bridge, parsed, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "topic-1", topic)
	assert.Equal(t, "https://b.bridge.walletconnect.org", bridge)
	assert.Equal(t, key, parsed)

	_, _, _, err = ParseURI("https://example.com")
	assert.Error(t, err)
}

func TestWebSocketURL(t *testing.T) {
	assert.Equal(t, "wss://a.bridge.walletconnect.org?protocol=wc&version=1&env=browser",
		WebSocketURL("https://a.bridge.walletconnect.org", "wc", "1"))
	assert.Equal(t, "ws://127.0.0.1:5000?protocol=wc&version=1&env=browser",
		WebSocketURL("http://127.0.0.1:5000", "wc", "1"))
	assert.True(t, strings.HasSuffix(RandomBridgeURL(), ".bridge.walletconnect.org"))
}
