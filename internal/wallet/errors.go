package wallet

import (
	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

var (
	ErrWalletNotFound    = errors.New("no wallet detected, please install a wallet")
	ErrUserRejected      = errors.New("user rejected the request")
	ErrNetwork           = errors.New("wallet network request failed")
	ErrNoAccounts        = errors.New("wallet returned no accounts")
	ErrConnectInProgress = errors.New("wallet connection already in progress")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Kind groups failures the way they are presented to the user.
type Kind int

const (
	KindUnknown Kind = iota
	KindWalletAbsent
	KindUserRejected
	KindNetwork
	KindContract
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindWalletAbsent:
		return "wallet_absent"
	case KindUserRejected:
		return "user_rejected"
	case KindNetwork:
		return "network"
	case KindContract:
		return "contract"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Kinded is implemented by errors of other packages that know their own Kind.
type Kinded interface {
	Kind() Kind
}

func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var kinded Kinded
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return KindWalletAbsent
	case errors.Is(err, ErrUserRejected):
		return KindUserRejected
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.As(err, &kinded):
		return kinded.Kind()
	}
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Code == CodeUserRejected {
		return KindUserRejected
	}
	return KindUnknown
}

// providerFailure tags a wallet error: rejections become ErrUserRejected, anything
// else is tagged with fallback.
func providerFailure(err error, fallback error) error {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Code == CodeUserRejected {
		return errors.Mark(err, ErrUserRejected)
	}
	return errors.Mark(err, fallback)
}
