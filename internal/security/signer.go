// Package security signs, seals and screens transaction data that crosses
// the trust boundary between the purchaser's browser and this service.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

const (
	ivSize    = aes.BlockSize
	nonceSize = 16
)

var (
	ErrInvalidPadding = errors.New("invalid padding")
	ErrInvalidIV      = errors.New("invalid iv")
)

// EncryptedPayload holds hex-encoded AES-256-CBC output.
type EncryptedPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// SealedPayload is an EncryptedPayload authenticated with an HMAC over
// ciphertext||iv.
type SealedPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	MAC        string `json:"mac"`
}

type Signer struct {
	signingKey []byte
	cipherKey  [32]byte
}

func NewSigner(signingSecret, encryptionSecret string) *Signer {
	return &Signer{
		signingKey: []byte(signingSecret),
		cipherKey:  sha256.Sum256([]byte(encryptionSecret)),
	}
}

// CanonicalString joins the signed fields with '|' in a fixed order.
func CanonicalString(tx *domain.ValidatedTransaction) string {
	return strings.Join([]string{
		strconv.FormatInt(tx.Amount, 10),
		tx.ClientIP,
		tx.Nonce,
		tx.OrderNumber,
		tx.ReturnURL,
		tx.SessionID,
		strconv.FormatInt(tx.Timestamp, 10),
		tx.UserAgent,
	}, "|")
}

func (s *Signer) Sign(tx *domain.ValidatedTransaction) string {
	return s.mac([]byte(CanonicalString(tx)))
}

func (s *Signer) Verify(tx *domain.ValidatedTransaction) bool {
	if tx == nil || tx.Signature == "" {
		return false
	}
	expected := s.Sign(tx)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(tx.Signature)))
}

func (s *Signer) mac(data []byte) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Signer) Encrypt(plaintext []byte) (*EncryptedPayload, error) {
	block, err := aes.NewCipher(s.cipherKey[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return &EncryptedPayload{
		Ciphertext: hex.EncodeToString(out),
		IV:         hex.EncodeToString(iv),
	}, nil
}

func (s *Signer) Decrypt(ciphertextHex, ivHex string) ([]byte, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != ivSize {
		return nil, ErrInvalidIV
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	block, err := aes.NewCipher(s.cipherKey[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func (s *Signer) EncryptAndSign(plaintext []byte) (*SealedPayload, error) {
	enc, err := s.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return &SealedPayload{
		Ciphertext: enc.Ciphertext,
		IV:         enc.IV,
		MAC:        s.mac([]byte(enc.Ciphertext + enc.IV)),
	}, nil
}

// VerifyAndDecrypt checks the MAC before touching the ciphertext.
func (s *Signer) VerifyAndDecrypt(p *SealedPayload) ([]byte, error) {
	if p == nil || p.MAC == "" {
		return nil, domain.ErrInvalidSealedPayload
	}
	expected := s.mac([]byte(p.Ciphertext + p.IV))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(p.MAC))) {
		return nil, domain.ErrInvalidSealedPayload
	}
	return s.Decrypt(p.Ciphertext, p.IV)
}

// GenerateNonce returns 16 random bytes, hex encoded.
func GenerateNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
