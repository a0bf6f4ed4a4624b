package wcbridge

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
)

var ErrHmacMismatch = errors.New("inconsistent session message hmac")

func Aes256Encrypt(content, encryptionKey, iv []byte) ([]byte, error) {
	plaintext := pkcs7Padding(content, aes.BlockSize)
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	ciphertext := make([]byte, len(plaintext))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

func Aes256Decrypt(cipherText, encryptionKey, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.Errorf("iv must be %d bytes", aes.BlockSize)
	}
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a whole number of blocks")
	}
	plaintext := make([]byte, len(cipherText))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, cipherText)
	return pkcs7Unpadding(plaintext)
}

func pkcs7Padding(text []byte, blockSize int) []byte {
	padding := blockSize - len(text)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)
	return append(append([]byte(nil), text...), padText...)
}

func pkcs7Unpadding(text []byte) ([]byte, error) {
	n := int(text[len(text)-1])
	if n == 0 || n > aes.BlockSize || n > len(text) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range text[len(text)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return text[:len(text)-n], nil
}

func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "generate random bytes")
	}
	return b, nil
}

// GenerateKey returns a fresh 256 bit session key.
func GenerateKey() ([]byte, error) {
	return GenerateRandomBytes(256 / 8)
}

func HmacSha256(data, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return h.Sum(nil)
}

// EncryptedPayload is the payload field of a published bridge message.
type EncryptedPayload struct {
	Data string `json:"data"`
	Hmac string `json:"hmac"`
	IV   string `json:"iv"`
}

func (e *EncryptedPayload) Marshal() string {
	s, _ := json.Marshal(e)
	return string(s)
}

// Seal encrypts plaintext with key under a random iv and authenticates it.
func Seal(plaintext, key []byte) (*EncryptedPayload, error) {
	iv, err := GenerateRandomBytes(aes.BlockSize)
	if err != nil {
		return nil, err
	}
	data, err := Aes256Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	unsigned := append(append([]byte(nil), data...), iv...)
	return &EncryptedPayload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		Hmac: hex.EncodeToString(HmacSha256(unsigned, key)),
	}, nil
}

// Open checks the hmac of payload and decrypts it.
func Open(payload string, key []byte) ([]byte, error) {
	var p EncryptedPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, errors.Wrap(err, "unmarshal wallet connect message payload")
	}
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, errors.Wrap(err, "decode iv hex")
	}
	data, err := hex.DecodeString(p.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode cipher hex")
	}
	mac, err := hex.DecodeString(p.Hmac)
	if err != nil {
		return nil, errors.Wrap(err, "decode hmac hex")
	}
	unsigned := append(append([]byte(nil), data...), iv...)
	if !hmac.Equal(mac, HmacSha256(unsigned, key)) {
		return nil, ErrHmacMismatch
	}
	return Aes256Decrypt(data, key, iv)
}
