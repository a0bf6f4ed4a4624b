// Package walletconnect is a wallet.Provider that reaches a mobile wallet through a
// WalletConnect v1 bridge. The user scans a QR code on eth_requestAccounts; later
// requests are relayed to the wallet encrypted with the session key.
package walletconnect

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"

	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
	"crowdfund.io/crowdfund-dapp/pkg/wcbridge"
)

func init() {
	// Request ids are read as JavaScript numbers by wallets and must stay below 2^53.
	snowflake.NodeBits = 2
	snowflake.StepBits = 8
}

var errSessionClosed = errors.New("session closed by wallet")

// DisplayFunc shows the pairing URI to the user, usually as a QR code.
type DisplayFunc func(uri string) error

type Option func(*Provider)

func WithBridgeURL(bridgeURL string) Option {
	return func(p *Provider) {
		if bridgeURL != "" {
			p.bridgeURL = bridgeURL
		}
	}
}

func WithMeta(meta ClientMeta) Option {
	return func(p *Provider) {
		p.meta = meta
	}
}

func WithDisplay(fn DisplayFunc) Option {
	return func(p *Provider) {
		p.display = fn
	}
}

// WithChainID is the chain requested when the session is created.
func WithChainID(id int64) Option {
	return func(p *Provider) {
		p.chainID = id
	}
}

// WithReadTimeout bounds every wait for the wallet, including the QR scan.
func WithReadTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.readTimeout = d
	}
}

type Provider struct {
	bridgeURL   string
	meta        ClientMeta
	chainID     int64
	display     DisplayFunc
	readTimeout time.Duration

	handshakeTopic string
	clientID       string
	key            []byte
	ids            *snowflake.Node

	mu     sync.Mutex
	conn   *websocket.Conn
	wallet *Wallet
}

func New(opts ...Option) (*Provider, error) {
	key, err := wcbridge.GenerateKey()
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, errors.Wrap(err, "create request id generator")
	}
	p := &Provider{
		bridgeURL:      wcbridge.RandomBridgeURL(),
		readTimeout:    5 * time.Minute,
		handshakeTopic: uuid.NewString(),
		clientID:       uuid.NewString(),
		key:            key,
		ids:            node,
	}
	p.display = LogDisplay
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// URI is the pairing URI the wallet scans.
func (p *Provider) URI() string {
	return wcbridge.URI(p.handshakeTopic, p.bridgeURL, p.key)
}

// QRCode renders URI as a PNG.
func (p *Provider) QRCode() ([]byte, error) {
	png, err := qrcode.Encode(p.URI(), qrcode.Medium, 256)
	if err != nil {
		return nil, errors.WrapAndReport(err, "encode wallet connect qr code")
	}
	return png, nil
}

// LogDisplay only logs the URI.
func LogDisplay(uri string) error {
	log.Infof("wallet connect - open this uri in your wallet: %s", uri)
	return nil
}

// QRCodeFile writes the pairing QR code to path and logs where it is.
func QRCodeFile(path string) DisplayFunc {
	return func(uri string) error {
		if err := qrcode.WriteFile(uri, qrcode.Medium, 256, path); err != nil {
			return errors.WrapAndReport(err, "write wallet connect qr code")
		}
		log.Infof("wallet connect - scan %s with your wallet, or open %s", path, uri)
		return nil
	}
}

// Connected reports whether a wallet session is established.
func (p *Provider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wallet != nil
}

func (p *Provider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch method {
	case wallet.MethodRequestAccounts:
		if p.wallet == nil {
			if err := p.connect(ctx); err != nil {
				return nil, err
			}
		}
		return json.Marshal(p.wallet.Accounts)
	case wallet.MethodAccounts:
		if p.wallet == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(p.wallet.Accounts)
	case wallet.MethodChainID:
		if p.wallet == nil {
			return nil, &wallet.ProviderError{Code: wallet.CodeDisconnected, Message: "No wallet session."}
		}
		return json.Marshal(hexutil.EncodeUint64(uint64(p.wallet.ChainID)))
	}
	if p.wallet == nil {
		return nil, &wallet.ProviderError{Code: wallet.CodeUnauthorized, Message: "Connect a wallet first."}
	}
	result, err := p.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	switch method {
	case wallet.MethodSwitchChain:
		p.followSwitch(params)
	case wallet.MethodPersonalSign:
		if err := verifyPersonalSign(params, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Close ends the wallet session, telling the wallet when one is open.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	if p.wallet != nil {
		update := sessionUpdate{Approved: false}
		if _, err := p.publish(p.wallet.PeerID, "wc_sessionUpdate", update); err != nil {
			log.Warnf("wallet connect - notify session end: %v", err)
		}
	}
	p.drop()
	return nil
}

func (p *Provider) connect(ctx context.Context) error {
	if err := p.dialWS(ctx); err != nil {
		return err
	}
	if err := p.subscribe(); err != nil {
		p.drop()
		return err
	}
	id, err := p.publish(p.handshakeTopic, "wc_sessionRequest", peer{
		PeerID:   p.clientID,
		PeerMeta: p.meta,
		ChainID:  p.chainID,
	})
	if err != nil {
		p.drop()
		return err
	}
	if err := p.display(p.URI()); err != nil {
		p.drop()
		return err
	}
	resp, err := p.await(ctx, id)
	if err != nil {
		p.drop()
		return err
	}
	if resp.Error != nil {
		p.drop()
		if strings.Contains(resp.Error.Message, "Session Rejected") {
			return &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: resp.Error.Message}
		}
		return &wallet.ProviderError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	var w Wallet
	if err := json.Unmarshal(resp.Result, &w); err != nil {
		p.drop()
		return errors.Wrap(err, "unmarshal wallet info")
	}
	if !w.Approved {
		p.drop()
		return &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "Session Rejected"}
	}
	if len(w.Accounts) == 0 {
		p.drop()
		return errors.New("no wallet accounts acquired")
	}
	p.wallet = &w
	log.Infof("wallet connect - session approved by %s on chain %d", w.Meta.Name, w.ChainID)
	return nil
}

func (p *Provider) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id, err := p.publish(p.wallet.PeerID, method, params...)
	if err != nil {
		return nil, err
	}
	resp, err := p.await(ctx, id)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &wallet.ProviderError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.Result, nil
}

func (p *Provider) dialWS(ctx context.Context) error {
	wsURL := wcbridge.WebSocketURL(p.bridgeURL, "wc", "1")
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return errors.Mark(errors.WrapAndReport(err, "dial to wallet connect bridge url"), wallet.ErrNetwork)
	}
	p.conn = conn
	return nil
}

func (p *Provider) drop() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.wallet = nil
}

func (p *Provider) send(msg *wcbridge.Message) error {
	log.Debugf("wallet connect - send %s to %s", msg.Type, msg.Topic)
	if err := p.conn.WriteMessage(websocket.TextMessage, msg.Marshal()); err != nil {
		return errors.Mark(errors.Wrap(err, "write wallet connect message to server"), wallet.ErrNetwork)
	}
	return nil
}

func (p *Provider) subscribe() error {
	return p.send(&wcbridge.Message{Topic: p.clientID, Type: "sub", Silent: true})
}

func (p *Provider) ack() error {
	return p.send(&wcbridge.Message{Topic: p.clientID, Type: "ack", Silent: true})
}

// publish encrypts a JSON-RPC request to topic and returns its id.
func (p *Provider) publish(topic, method string, params ...interface{}) (int64, error) {
	req := newJSONRPCRequest(p.ids.Generate().Int64(), method, params...)
	payload, err := wcbridge.Seal(req.Marshal(), p.key)
	if err != nil {
		return 0, err
	}
	return req.ID, p.send(&wcbridge.Message{
		Topic:   topic,
		Type:    "pub",
		Payload: payload.Marshal(),
		Silent:  req.silent(),
	})
}

// await reads bridge frames until the response to id arrives. Session updates seen
// on the way are applied.
func (p *Provider) await(ctx context.Context, id int64) (*jsonRPCResponse, error) {
	deadline := time.Now().Add(p.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return nil, errors.Wrap(err, "set websocket read timeout")
	}
	conn := p.conn
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	for {
		payload, err := p.read()
		if err != nil {
			// the websocket is unusable after a read error
			p.drop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, errSessionClosed) {
				return nil, &wallet.ProviderError{Code: wallet.CodeDisconnected, Message: "Wallet ended the session."}
			}
			return nil, err
		}
		if payload == nil {
			continue
		}
		if gjson.GetBytes(payload, "method").String() == "wc_sessionUpdate" {
			if err := p.applyUpdate(payload); err != nil {
				p.drop()
				return nil, &wallet.ProviderError{Code: wallet.CodeDisconnected, Message: "Wallet ended the session."}
			}
			continue
		}
		if gjson.GetBytes(payload, "id").Int() != id {
			log.Debugf("wallet connect - ignoring unrelated message %s", payload)
			continue
		}
		var resp jsonRPCResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return nil, errors.Wrap(err, "unmarshal wallet response")
		}
		return &resp, nil
	}
}

// read returns the decrypted payload of the next frame addressed to us, or nil for
// frames that carry none or cannot be opened. Errors are connection failures.
func (p *Provider) read() ([]byte, error) {
	msgType, data, err := p.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, errSessionClosed
		}
		return nil, errors.Mark(errors.Wrap(err, "read session response"), wallet.ErrNetwork)
	}
	if msgType != websocket.TextMessage {
		return nil, nil
	}
	msg, err := wcbridge.ParseMessage(data)
	if err != nil {
		log.Warnf("wallet connect - dropping malformed frame: %v", err)
		return nil, nil
	}
	if msg.Topic != p.clientID || msg.Type != "pub" {
		return nil, nil
	}
	if err := p.ack(); err != nil {
		return nil, err
	}
	payload, err := wcbridge.Open(msg.Payload, p.key)
	if err != nil {
		log.Error(errors.WrapAndReport(err, "decrypt wallet connect payload"))
		return nil, nil
	}
	return payload, nil
}

func (p *Provider) applyUpdate(payload []byte) error {
	params := gjson.GetBytes(payload, "params").Array()
	if len(params) == 0 {
		return nil
	}
	var update sessionUpdate
	if err := json.Unmarshal([]byte(params[0].Raw), &update); err != nil {
		return nil
	}
	if !update.Approved {
		log.Warnf("wallet connect - session closed by wallet")
		return errSessionClosed
	}
	if p.wallet == nil {
		return nil
	}
	if update.ChainID != nil {
		p.wallet.ChainID = *update.ChainID
	}
	if len(update.Accounts) > 0 {
		p.wallet.Accounts = update.Accounts
	}
	return nil
}

func (p *Provider) followSwitch(params []interface{}) {
	if len(params) == 0 {
		return
	}
	b, err := json.Marshal(params[0])
	if err != nil {
		return
	}
	var req chains.SwitchChainParams
	if err := json.Unmarshal(b, &req); err != nil {
		return
	}
	if id, err := chains.ParseID(req.ChainID); err == nil {
		p.wallet.ChainID = id
	}
}

// verifyPersonalSign checks that a personal_sign result was made by the requested
// account. params are [message, address].
func verifyPersonalSign(params []interface{}, result json.RawMessage) error {
	if len(params) < 2 {
		return nil
	}
	msg, _ := params[0].(string)
	addr, _ := params[1].(string)
	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return errors.Wrap(err, "decode personal_sign result")
	}
	data, err := hexutil.Decode(msg)
	if err != nil {
		data = []byte(msg)
	}
	if !verifySignature(common.HexToAddress(addr), signature, data) {
		return errors.Errorf("personal_sign signature does not belong to %s", addr)
	}
	return nil
}

func verifySignature(signer common.Address, signatureHex string, msg []byte) bool {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27 // Transform yellow paper V from 27/28 to 0/1
	}
	recovered, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*recovered) == signer
}
