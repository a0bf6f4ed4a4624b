// Package wcbridge holds the WalletConnect v1 bridge primitives: the message
// envelope, payload encryption and bridge URLs.
package wcbridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

const (
	alphanumerical  = "abcdefghijklmnopqrstuvwxyz0123456789"
	bridgeURLFormat = "https://%v.bridge.walletconnect.org"
)

func RandomBridgeURL() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf(bridgeURLFormat, string(alphanumerical[r.Intn(len(alphanumerical))]))
}

// WebSocketURL turns a bridge http(s) URL into the websocket endpoint.
func WebSocketURL(bridgeURL, protocol, version string) string {
	switch {
	case strings.HasPrefix(bridgeURL, "https"):
		bridgeURL = strings.Replace(bridgeURL, "https", "wss", 1)
	case strings.HasPrefix(bridgeURL, "http"):
		bridgeURL = strings.Replace(bridgeURL, "http", "ws", 1)
	}
	return bridgeURL + "?protocol=" + protocol + "&version=" + version + "&env=browser"
}

// URI is the pairing URI shown to the wallet as a QR code.
func URI(handshakeTopic, bridgeURL string, key []byte) string {
	return fmt.Sprintf("wc:%s@1?bridge=%s&key=%s",
		handshakeTopic, url.QueryEscape(bridgeURL), hex.EncodeToString(key))
}

// ParseURI reverses URI.
func ParseURI(uri string) (handshakeTopic, bridgeURL string, key []byte, err error) {
	if !strings.HasPrefix(uri, "wc:") {
		return "", "", nil, fmt.Errorf("not a walletconnect uri: %q", uri)
	}
	rest := strings.TrimPrefix(uri, "wc:")
	at := strings.Index(rest, "@")
	q := strings.Index(rest, "?")
	if at < 0 || q < at {
		return "", "", nil, fmt.Errorf("malformed walletconnect uri: %q", uri)
	}
	values, err := url.ParseQuery(rest[q+1:])
	if err != nil {
		return "", "", nil, err
	}
	key, err = hex.DecodeString(values.Get("key"))
	if err != nil {
		return "", "", nil, fmt.Errorf("bad key in walletconnect uri: %v", err)
	}
	return rest[:at], values.Get("bridge"), key, nil
}

// Message is the envelope every bridge frame carries.
type Message struct {
	Topic string `json:"topic"`
	// pub sub ack
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

func (m *Message) Marshal() []byte {
	b, _ := json.Marshal(m)
	return b
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal wallet connect message: %v", err)
	}
	return &msg, nil
}
