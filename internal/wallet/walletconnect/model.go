package walletconnect

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ClientMeta struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
	Name        string   `json:"name"`
}

// Wallet is what the wallet answers to a session request.
type Wallet struct {
	Approved bool       `json:"approved"`
	Meta     ClientMeta `json:"peerMeta"`
	ChainID  int64      `json:"chainId"`
	Accounts []string   `json:"accounts"`
	PeerID   string     `json:"peerId"`
}

type peer struct {
	PeerID   string      `json:"peerId"`
	PeerMeta ClientMeta  `json:"peerMeta"`
	ChainID  interface{} `json:"chainId"`
}

// sessionUpdate is the single param of wc_sessionUpdate.
type sessionUpdate struct {
	Approved bool     `json:"approved"`
	ChainID  *int64   `json:"chainId"`
	Accounts []string `json:"accounts"`
}

type jsonRPCRequest struct {
	ID      int64         `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func newJSONRPCRequest(id int64, method string, params ...interface{}) *jsonRPCRequest {
	r := &jsonRPCRequest{
		ID:      id,
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{},
	}
	if len(params) > 0 {
		r.Params = params
	}
	return r
}

func (r *jsonRPCRequest) Marshal() []byte {
	b, _ := json.Marshal(r)
	return b
}

// silent requests are protocol messages the wallet should not push-notify for.
func (r *jsonRPCRequest) silent() bool {
	return strings.HasPrefix(r.Method, "wc_")
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}
