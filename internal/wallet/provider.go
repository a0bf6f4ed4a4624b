package wallet

import (
	"context"
	"encoding/json"
	"fmt"
)

// Wallet request methods.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSignTransaction = "eth_signTransaction"
	MethodPersonalSign    = "personal_sign"
)

// EIP-1193 and JSON-RPC error codes a wallet may answer with.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
	CodeMethodNotFound    = -32601
	CodeRequestPending    = -32002
)

// Provider is an injected wallet: the single request entry point browsers expose as
// window.ethereum. Params are marshalled to JSON as a positional array.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
}

// ProviderError is an error answered by the wallet itself.
type ProviderError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wallet error %d", e.Code)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ErrorCode lets ProviderError be sent back over JSON-RPC unchanged.
func (e *ProviderError) ErrorCode() int { return e.Code }

func userRejected() *ProviderError {
	return &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}
}

// decodeParam reads params[i] into out through a JSON round trip, so params may be
// typed structs or the maps produced by decoding a remote request.
func decodeParam(params []interface{}, i int, out interface{}) error {
	if i >= len(params) {
		return &ProviderError{Code: -32602, Message: fmt.Sprintf("missing param %d", i)}
	}
	b, err := json.Marshal(params[i])
	if err != nil {
		return &ProviderError{Code: -32602, Message: err.Error()}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &ProviderError{Code: -32602, Message: err.Error()}
	}
	return nil
}
