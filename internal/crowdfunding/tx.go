package crowdfunding

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

// Tx is a submitted contract transaction.
type Tx struct {
	op       string
	tx       *types.Transaction
	address  common.Address
	backend  bind.DeployBackend
	contract *bind.BoundContract
}

func (t *Tx) Hash() common.Hash { return t.tx.Hash() }

func (t *Tx) Transaction() *types.Transaction { return t.tx }

// Wait blocks until the transaction is mined or ctx is done. A mined transaction
// whose status is failed returns ErrTransactionReverted.
func (t *Tx) Wait(ctx context.Context) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return nil, opError(t.op, errors.Wrapf(err, "wait for %s", t.tx.Hash().Hex()))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warnf("%s transaction %s reverted in block %v", t.op, t.tx.Hash().Hex(), receipt.BlockNumber)
		return receipt, opError(t.op, errors.Mark(errors.Errorf("tx %s", t.tx.Hash().Hex()), ErrTransactionReverted))
	}
	log.Debugf("%s transaction %s mined in block %v", t.op, t.tx.Hash().Hex(), receipt.BlockNumber)
	return receipt, nil
}

// ProjectID reads the id of the created project from the ProjectCreated event in
// receipt.
func (t *Tx) ProjectID(receipt *types.Receipt) (*big.Int, error) {
	event := parsedABI.Events[EventProjectCreated]
	for _, l := range receipt.Logs {
		if l.Address != t.address || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		fields := make(map[string]interface{})
		if err := t.contract.UnpackLogIntoMap(fields, EventProjectCreated, *l); err != nil {
			return nil, opError(t.op, errors.Mark(errors.Wrap(err, "unpack ProjectCreated"), ErrDecode))
		}
		id, ok := fields["projectId"].(*big.Int)
		if !ok {
			return nil, opError(t.op, errors.Mark(errors.Errorf("projectId has type %T", fields["projectId"]), ErrDecode))
		}
		return id, nil
	}
	return nil, opError(t.op, errors.Mark(errors.Errorf("no %s event in %s", EventProjectCreated, t.tx.Hash().Hex()), ErrDecode))
}
