// Package chaintest is an in-memory chain for tests. It accepts real signed
// transactions, mines each one immediately and runs the crowdfunding contract rules
// against calldata decoded with the contract ABI.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/params"
)

const (
	gasEstimate = 250000
	gasPrice    = params.GWei
)

// Chain implements the contract backend and receipt lookups of go-ethereum's bind
// package.
type Chain struct {
	mu       sync.Mutex
	chainID  *big.Int
	signer   types.Signer
	now      time.Time
	block    uint64
	code     map[common.Address][]byte
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log
	feed     event.Feed

	contract common.Address
	state    *contractState

	failNext bool
	calls    map[string]int
}

// New starts a chain with the given id and the crowdfunding contract deployed at
// the returned address.
func New(chainID int64) *Chain {
	c := &Chain{
		chainID:  big.NewInt(chainID),
		signer:   types.LatestSignerForChainID(big.NewInt(chainID)),
		now:      time.Unix(1700000000, 0),
		code:     make(map[common.Address][]byte),
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
		contract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		state:    newContractState(),
		calls:    make(map[string]int),
	}
	c.code[c.contract] = []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	return c
}

// Contract is the address of the deployed crowdfunding contract.
func (c *Chain) Contract() common.Address { return c.contract }

// Undeploy removes the contract code, as if the configured address were wrong.
func (c *Chain) Undeploy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.code, c.contract)
}

// Fund credits addr with wei.
func (c *Chain) Fund(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance(addr).Add(c.balance(addr), wei)
}

func (c *Chain) Balance(addr common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(addr))
}

func (c *Chain) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the block clock forward.
func (c *Chain) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FailNextTransaction makes the next submitted transaction mine with a failed status
// and no effect.
func (c *Chain) FailNextTransaction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = true
}

// Calls counts the requests served per backend method.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Chain) count(method string) {
	c.calls[method]++
}

func (c *Chain) balance(addr common.Address) *big.Int {
	b, ok := c.balances[addr]
	if !ok {
		b = new(big.Int)
		c.balances[addr] = b
	}
	return b
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("ChainID")
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("CodeAt")
	return c.code[account], nil
}

func (c *Chain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("PendingCodeAt")
	return c.code[account], nil
}

func (c *Chain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("CallContract")
	if call.To == nil || len(c.code[*call.To]) == 0 {
		return nil, nil
	}
	ret, _, err := c.execute(call.From, call.Value, call.Data, false)
	return ret, err
}

// HeaderByNumber reports no base fee, so transactors build legacy transactions.
func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("HeaderByNumber")
	return &types.Header{
		Number:   new(big.Int).SetUint64(c.block),
		Time:     uint64(c.now.Unix()),
		GasLimit: 30000000,
	}, nil
}

func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("PendingNonceAt")
	return c.nonces[account], nil
}

func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(gasPrice), nil
}

func (c *Chain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(params.GWei), nil
}

// EstimateGas dry-runs the call and fails the way a node does when it reverts.
func (c *Chain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("EstimateGas")
	if call.To != nil && len(c.code[*call.To]) > 0 {
		if _, _, err := c.execute(call.From, call.Value, call.Data, false); err != nil {
			return 0, err
		}
	}
	return gasEstimate, nil
}

// SendTransaction validates and mines tx in a block of its own.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	c.count("SendTransaction")
	if tx.ChainId().Cmp(c.chainID) != 0 {
		c.mu.Unlock()
		return fmt.Errorf("invalid chain id %v, expected %v", tx.ChainId(), c.chainID)
	}
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("invalid sender: %v", err)
	}
	if nonce := c.nonces[from]; tx.Nonce() != nonce {
		c.mu.Unlock()
		return fmt.Errorf("invalid nonce: have %d, want %d", tx.Nonce(), nonce)
	}
	if c.balance(from).Cmp(tx.Value()) < 0 {
		c.mu.Unlock()
		return fmt.Errorf("insufficient funds for gas * price + value: address %s", from.Hex())
	}
	c.nonces[from]++
	c.block++

	receipt := &types.Receipt{
		Type:              tx.Type(),
		TxHash:            tx.Hash(),
		GasUsed:           gasEstimate,
		CumulativeGasUsed: gasEstimate,
		BlockNumber:       new(big.Int).SetUint64(c.block),
		BlockHash:         crypto.Keccak256Hash(new(big.Int).SetUint64(c.block).Bytes()),
		Status:            types.ReceiptStatusSuccessful,
	}
	var logs []*types.Log
	switch {
	case c.failNext:
		c.failNext = false
		receipt.Status = types.ReceiptStatusFailed
	case tx.To() != nil && len(c.code[*tx.To()]) > 0:
		_, logs, err = c.execute(from, tx.Value(), tx.Data(), true)
		if err != nil {
			receipt.Status = types.ReceiptStatusFailed
			logs = nil
		}
	case tx.To() != nil:
		c.transfer(from, *tx.To(), tx.Value())
	}
	for i, l := range logs {
		l.TxHash = tx.Hash()
		l.BlockNumber = c.block
		l.BlockHash = receipt.BlockHash
		l.Index = uint(len(c.logs) + i)
		c.logs = append(c.logs, *l)
	}
	receipt.Logs = logs
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})
	c.receipts[tx.Hash()] = receipt
	c.mu.Unlock()

	for _, l := range logs {
		c.feed.Send(*l)
	}
	return nil
}

func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count("TransactionReceipt")
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []types.Log
	for _, l := range c.logs {
		if matches(q, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *Chain) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	sink := make(chan types.Log, 16)
	sub := c.feed.Subscribe(sink)
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-sink:
				if !matches(q, l) {
					continue
				}
				select {
				case ch <- l:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func matches(q ethereum.FilterQuery, l types.Log) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, want := range q.Topics {
		if len(want) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, t := range want {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c *Chain) transfer(from, to common.Address, value *big.Int) {
	if value == nil || value.Sign() == 0 {
		return
	}
	c.balance(from).Sub(c.balance(from), value)
	c.balance(to).Add(c.balance(to), value)
}
