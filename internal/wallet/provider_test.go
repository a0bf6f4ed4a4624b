package wallet_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/internal/chaintest"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

func providerCode(t *testing.T, err error) int {
	t.Helper()
	var perr *wallet.ProviderError
	require.True(t, errors.As(err, &perr), "expected provider error, got %v", err)
	return perr.Code
}

func TestKeyProviderAccounts(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := wallet.NewKeyProvider(key)
	ctx := context.Background()

	raw, err := p.Request(ctx, wallet.MethodAccounts)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	raw, err = p.Request(ctx, wallet.MethodRequestAccounts)
	require.NoError(t, err)
	var accounts []string
	require.NoError(t, json.Unmarshal(raw, &accounts))
	assert.Equal(t, []string{p.Address().Hex()}, accounts)

	raw, err = p.Request(ctx, wallet.MethodChainID)
	require.NoError(t, err)
	assert.Equal(t, `"0x1"`, string(raw))

	_, err = p.Request(ctx, "eth_sign")
	assert.Equal(t, wallet.CodeUnsupportedMethod, providerCode(t, err))
}

func TestKeyProviderSwitchUnknownChain(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := wallet.NewKeyProvider(key)

	_, err = p.Request(context.Background(), wallet.MethodSwitchChain, chains.Ganache.SwitchParams())
	assert.Equal(t, wallet.CodeUnrecognizedChain, providerCode(t, err))

	_, err = p.Request(context.Background(), wallet.MethodAddChain, chains.AddChainParams{ChainID: "0x539", ChainName: "Ganache"})
	assert.Equal(t, -32602, providerCode(t, err))
}

func TestKeyProviderSignTransaction(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := wallet.NewKeyProvider(key, wallet.WithActiveChain(chains.Ganache))
	ctx := context.Background()
	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	args := wallet.TransactionArgs{
		From:     p.Address(),
		To:       &to,
		Gas:      21000,
		GasPrice: (*hexutil.Big)(big.NewInt(1)),
		Value:    (*hexutil.Big)(big.NewInt(5)),
		ChainID:  (*hexutil.Big)(chains.Ganache.ChainID()),
	}

	_, err = p.Request(ctx, wallet.MethodSignTransaction, args)
	assert.Equal(t, wallet.CodeUnauthorized, providerCode(t, err))

	_, err = p.Request(ctx, wallet.MethodRequestAccounts)
	require.NoError(t, err)

	wrongChain := args
	wrongChain.ChainID = (*hexutil.Big)(big.NewInt(1))
	_, err = p.Request(ctx, wallet.MethodSignTransaction, wrongChain)
	assert.Equal(t, wallet.CodeDisconnected, providerCode(t, err))

	raw, err := p.Request(ctx, wallet.MethodSignTransaction, args)
	require.NoError(t, err)
	var encoded string
	require.NoError(t, json.Unmarshal(raw, &encoded))
	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(hexutil.MustDecode(encoded)))
	sender, err := types.Sender(types.LatestSignerForChainID(chains.Ganache.ChainID()), tx)
	require.NoError(t, err)
	assert.Equal(t, p.Address(), sender)
	assert.Equal(t, int64(5), tx.Value().Int64())
}

// rawObjectProvider answers eth_signTransaction the way geth does, with {raw, tx}.
type rawObjectProvider struct {
	inner *wallet.KeyProvider
}

func (r rawObjectProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	raw, err := r.inner.Request(ctx, method, params...)
	if err != nil || method != wallet.MethodSignTransaction {
		return raw, err
	}
	return json.Marshal(map[string]interface{}{"raw": json.RawMessage(raw), "tx": map[string]string{}})
}

func TestProviderSignFunc(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := wallet.NewKeyProvider(key, wallet.WithActiveChain(chains.Ganache), wallet.WithAuthorized())
	chainID := chains.Ganache.ChainID()
	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	unsigned := types.NewTx(&types.LegacyTx{Nonce: 3, GasPrice: big.NewInt(1), Gas: 21000, To: &to, Value: big.NewInt(9)})

	for name, provider := range map[string]wallet.Provider{"hex": p, "object": rawObjectProvider{inner: p}} {
		t.Run(name, func(t *testing.T) {
			signed, err := wallet.ProviderSignFunc(provider, chainID)(context.Background(), p.Address(), unsigned)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), signed.Nonce())
			assert.Equal(t, int64(9), signed.Value().Int64())
		})
	}

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = wallet.ProviderSignFunc(p, chainID)(context.Background(), crypto.PubkeyToAddress(other.PublicKey), unsigned)
	assert.Equal(t, wallet.CodeUnauthorized, providerCode(t, err))
}

func TestSignerSendsThroughBackend(t *testing.T) {
	chain := chaintest.New(chains.Ganache.ID)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	p := wallet.NewKeyProvider(key, wallet.WithActiveChain(chains.Ganache), wallet.WithAuthorized())
	chain.Fund(p.Address(), big.NewInt(100))
	chainID := chains.Ganache.ChainID()
	signer := wallet.NewSigner(p.Address(), chainID, wallet.ProviderSignFunc(p, chainID), wallet.Throttle(chain, 100))

	ctx := context.Background()
	opts := signer.TransactOpts(ctx)
	to := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	tx, err := opts.Signer(opts.From, types.NewTx(&types.LegacyTx{GasPrice: big.NewInt(1), Gas: 21000, To: &to, Value: big.NewInt(40)}))
	require.NoError(t, err)
	require.NoError(t, signer.Backend().SendTransaction(ctx, tx))

	receipt, err := signer.Backend().TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, int64(40), chain.Balance(to).Int64())
	assert.Equal(t, p.Address(), signer.CallOpts(ctx).From)
}

// nodeService is a stand-in for a node exposing only eth_accounts and eth_chainId.
type nodeService struct {
	account common.Address
}

func (s *nodeService) Accounts() []common.Address { return []common.Address{s.account} }

func (s *nodeService) ChainId() hexutil.Uint64 { return hexutil.Uint64(chains.Ganache.ID) }

type walletService struct{}

func (walletService) SwitchEthereumChain(params chains.SwitchChainParams) error {
	return &wallet.ProviderError{Code: wallet.CodeUnrecognizedChain, Message: "Unrecognized chain ID " + params.ChainID}
}

func TestRPCProvider(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &nodeService{account: account}))
	require.NoError(t, server.RegisterName("wallet", walletService{}))
	defer server.Stop()
	httpServer := httptest.NewServer(server)
	defer httpServer.Close()

	ctx := context.Background()
	p, err := wallet.DialRPCProvider(ctx, httpServer.URL)
	require.NoError(t, err)
	defer p.Close()

	raw, err := p.Request(ctx, wallet.MethodRequestAccounts)
	require.NoError(t, err)
	var accounts []common.Address
	require.NoError(t, json.Unmarshal(raw, &accounts))
	assert.Equal(t, []common.Address{account}, accounts)

	raw, err = p.Request(ctx, wallet.MethodChainID)
	require.NoError(t, err)
	assert.Equal(t, `"0x539"`, string(raw))

	_, err = p.Request(ctx, wallet.MethodSwitchChain, chains.Ganache.SwitchParams())
	assert.Equal(t, wallet.CodeUnrecognizedChain, providerCode(t, err))

	m := wallet.NewManager(p, chains.Ganache, wallet.WithBackend(chaintest.New(chains.Ganache.ID)))
	s, err := m.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, account, *s.Address)
}

func TestFeedKeepsMostRecent(t *testing.T) {
	var forwarded []string
	feed := wallet.NewFeed(2, wallet.NotifierFunc(func(n wallet.Notification) {
		forwarded = append(forwarded, n.Message)
	}))
	for _, msg := range []string{"one", "two", "three"} {
		feed.Notify(wallet.Notification{Level: wallet.LevelSuccess, Message: msg})
	}
	assert.Equal(t, []string{"one", "two", "three"}, forwarded)

	recent := feed.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Message)
	assert.Equal(t, "three", recent[1].Message)
}
