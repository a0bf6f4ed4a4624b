// Package chains holds the networks a wallet can be asked to switch to, and the exact
// parameter objects the wallet_switchEthereumChain / wallet_addEthereumChain requests
// expect.
package chains

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

type Blockchain struct {
	ID                int64          `yaml:"id"`
	Name              string         `yaml:"name"`
	Currency          NativeCurrency `yaml:"currency"`
	RPCURLs           []string       `yaml:"rpc_urls"`
	BlockExplorerURLs []string       `yaml:"block_explorer_urls"`
}

// IDHex is the chain id as wallets expect it, e.g. "0x539".
func (in *Blockchain) IDHex() string {
	return hexutil.EncodeUint64(uint64(in.ID))
}

func (in *Blockchain) ChainID() *big.Int {
	return big.NewInt(in.ID)
}

// SwitchChainParams is the single element of wallet_switchEthereumChain's params.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// AddChainParams is the single element of wallet_addEthereumChain's params.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

func (in *Blockchain) SwitchParams() SwitchChainParams {
	return SwitchChainParams{ChainID: in.IDHex()}
}

func (in *Blockchain) AddParams() AddChainParams {
	rpcs := in.RPCURLs
	if rpcs == nil {
		rpcs = []string{}
	}
	explorers := in.BlockExplorerURLs
	if explorers == nil {
		explorers = []string{}
	}
	return AddChainParams{
		ChainID:           in.IDHex(),
		ChainName:         in.Name,
		NativeCurrency:    in.Currency,
		RPCURLs:           rpcs,
		BlockExplorerURLs: explorers,
	}
}

// Blockchain rebuilds a chain from parameters a dapp sent to wallet_addEthereumChain.
func (in AddChainParams) Blockchain() (*Blockchain, error) {
	id, err := ParseID(in.ChainID)
	if err != nil {
		return nil, err
	}
	return &Blockchain{
		ID:                id,
		Name:              in.ChainName,
		Currency:          in.NativeCurrency,
		RPCURLs:           in.RPCURLs,
		BlockExplorerURLs: in.BlockExplorerURLs,
	}, nil
}

// ParseID accepts both "0x539" and "1337".
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err := hexutil.DecodeUint64(strings.ToLower(s))
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
		}
		return int64(id), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return id, nil
}

var ether = NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: 18}

// Ganache is the local development network the marketplace contract is deployed to.
var Ganache = &Blockchain{
	ID:                1337,
	Name:              "Ganache",
	Currency:          ether,
	RPCURLs:           []string{"http://127.0.0.1:7545"},
	BlockExplorerURLs: []string{},
}

var known = []*Blockchain{
	{ID: 1, Name: "eth", Currency: ether},
	{ID: 5, Name: "goerli", Currency: NativeCurrency{Name: "Goerli Ether", Symbol: "ETH", Decimals: 18}},
	{ID: 11155111, Name: "sepolia", Currency: NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18}},
	{ID: 137, Name: "polygon", Currency: NativeCurrency{Name: "MATIC", Symbol: "MATIC", Decimals: 18}},
	{ID: 80001, Name: "mumbai", Currency: NativeCurrency{Name: "MATIC", Symbol: "MATIC", Decimals: 18}},
	{ID: 56, Name: "bsc", Currency: NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18}},
	{ID: 97, Name: "bsc testnet", Currency: NativeCurrency{Name: "tBNB", Symbol: "tBNB", Decimals: 18}},
	{ID: 43114, Name: "avalanche", Currency: NativeCurrency{Name: "AVAX", Symbol: "AVAX", Decimals: 18}},
	{ID: 43113, Name: "avalanche testnet", Currency: NativeCurrency{Name: "AVAX", Symbol: "AVAX", Decimals: 18}},
	{ID: 250, Name: "fantom", Currency: NativeCurrency{Name: "FTM", Symbol: "FTM", Decimals: 18}},
	{ID: 25, Name: "cronos", Currency: NativeCurrency{Name: "CRO", Symbol: "CRO", Decimals: 18}},
	{ID: 31337, Name: "hardhat", Currency: ether, RPCURLs: []string{"http://127.0.0.1:8545"}},
	Ganache,
}

var mapping = func() map[int64]*Blockchain {
	m := make(map[int64]*Blockchain, len(known))
	for _, c := range known {
		m[c.ID] = c
	}
	return m
}()

// Lookup returns a known chain by id.
func Lookup(id int64) (*Blockchain, bool) {
	c, ok := mapping[id]
	return c, ok
}

// Known lists every built-in chain.
func Known() []*Blockchain {
	out := make([]*Blockchain, len(known))
	copy(out, known)
	return out
}
