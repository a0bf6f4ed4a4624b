package crowdfunding

import (
	"fmt"
	"strings"

	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

var (
	ErrContractAddressMissing = errors.New("contract address not configured")
	ErrInvalidContractAddress = errors.New("invalid contract address")
	ErrNoContractCode         = errors.New("no contract code at address")
	ErrTransactionReverted    = errors.New("transaction reverted")
	ErrProjectNotFound        = errors.New("project not found")
	ErrUnauthorized           = errors.New("caller is not allowed to perform this action")
	ErrDecode                 = errors.New("unexpected contract response")
	ErrInvalidInput           = errors.New("invalid project input")
)

// Error is a failed contract operation.
type Error struct {
	Op   string
	kind wallet.Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() wallet.Kind { return e.kind }

// opError wraps err for op. Wallet failures (rejection, network) keep their own
// classification; revert messages are mapped onto the sentinel errors above.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	switch wallet.Classify(err) {
	case wallet.KindUserRejected, wallet.KindNetwork, wallet.KindWalletAbsent:
		return &Error{Op: op, kind: wallet.Classify(err), Err: err}
	}
	kind := wallet.KindContract
	if errors.Is(err, ErrDecode) {
		kind = wallet.KindDecode
	}
	return &Error{Op: op, kind: kind, Err: classifyRevert(err)}
}

var revertMarkers = []struct {
	fragment string
	sentinel error
}{
	{"not found", ErrProjectNotFound},
	{"does not exist", ErrProjectNotFound},
	{"only creator", ErrUnauthorized},
	{"only the creator", ErrUnauthorized},
	{"not the creator", ErrUnauthorized},
	{"not authorized", ErrUnauthorized},
	{"unauthorized", ErrUnauthorized},
}

func classifyRevert(err error) error {
	for _, s := range []error{ErrProjectNotFound, ErrUnauthorized, ErrNoContractCode, ErrTransactionReverted, ErrDecode} {
		if errors.Is(err, s) {
			return err
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range revertMarkers {
		if strings.Contains(msg, m.fragment) {
			return errors.Mark(err, m.sentinel)
		}
	}
	if strings.Contains(msg, "revert") {
		return errors.Mark(err, ErrTransactionReverted)
	}
	return err
}
