package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

func sampleTransaction() *domain.ValidatedTransaction {
	return &domain.ValidatedTransaction{
		Amount:      15990,
		OrderNumber: "ABC123",
		ReturnURL:   "https://shop.example.com/checkout/return",
		SessionID:   "sess42",
		Timestamp:   1735689600000,
		Nonce:       "00112233445566778899aabbccddeeff",
		ClientIP:    "203.0.113.7",
		UserAgent:   "Mozilla/5.0",
	}
}

func TestCanonicalStringFieldOrder(t *testing.T) {
	got := CanonicalString(sampleTransaction())
	assert.Equal(t,
		"15990|203.0.113.7|00112233445566778899aabbccddeeff|ABC123|https://shop.example.com/checkout/return|sess42|1735689600000|Mozilla/5.0",
		got)
}

func TestSignVerify(t *testing.T) {
	s := NewSigner("signing-secret", "encryption-secret")
	tx := sampleTransaction()
	tx.Signature = s.Sign(tx)

	require.True(t, s.Verify(tx))

	mutations := map[string]func(*domain.ValidatedTransaction){
		"amount":      func(t *domain.ValidatedTransaction) { t.Amount++ },
		"clientIp":    func(t *domain.ValidatedTransaction) { t.ClientIP = "198.51.100.1" },
		"nonce":       func(t *domain.ValidatedTransaction) { t.Nonce = "ff" + t.Nonce[2:] },
		"orderNumber": func(t *domain.ValidatedTransaction) { t.OrderNumber = "ABC124" },
		"returnUrl":   func(t *domain.ValidatedTransaction) { t.ReturnURL = "https://evil.test/return" },
		"sessionId":   func(t *domain.ValidatedTransaction) { t.SessionID = "sess43" },
		"timestamp":   func(t *domain.ValidatedTransaction) { t.Timestamp++ },
		"userAgent":   func(t *domain.ValidatedTransaction) { t.UserAgent = "curl/8.0" },
	}
	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			cp := *tx
			mutate(&cp)
			assert.False(t, s.Verify(&cp))
		})
	}
}

func TestVerifyRejectsOtherSecretAndEmptySignature(t *testing.T) {
	tx := sampleTransaction()
	tx.Signature = NewSigner("one", "x").Sign(tx)

	assert.False(t, NewSigner("two", "x").Verify(tx))

	tx.Signature = ""
	assert.False(t, NewSigner("one", "x").Verify(tx))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := NewSigner("sig", "enc")
	for _, plain := range []string{"", "a", "exactly16bytes!!", strings.Repeat("course-data ", 20)} {
		enc, err := s.Encrypt([]byte(plain))
		require.NoError(t, err)

		got, err := s.Decrypt(enc.Ciphertext, enc.IV)
		require.NoError(t, err)
		assert.Equal(t, plain, string(got))
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	s := NewSigner("sig", "enc")
	a, err := s.Encrypt([]byte("same input"))
	require.NoError(t, err)
	b, err := s.Encrypt([]byte("same input"))
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptWithWrongIVOrKeyNeverYieldsPlaintext(t *testing.T) {
	plain := []byte("order ABC123 paid 15990 by buyer@example.com")
	s := NewSigner("sig", "enc")
	enc, err := s.Encrypt(plain)
	require.NoError(t, err)

	other, err := s.Encrypt([]byte("something else"))
	require.NoError(t, err)

	got, err := s.Decrypt(enc.Ciphertext, other.IV)
	if err == nil {
		assert.NotEqual(t, plain, got)
	}

	got, err = NewSigner("sig", "another-key").Decrypt(enc.Ciphertext, enc.IV)
	if err == nil {
		assert.NotEqual(t, plain, got)
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	s := NewSigner("sig", "enc")
	enc, err := s.Encrypt([]byte("x"))
	require.NoError(t, err)

	_, err = s.Decrypt("zz", enc.IV)
	assert.Error(t, err)

	_, err = s.Decrypt(enc.Ciphertext, "abcd")
	assert.ErrorIs(t, err, ErrInvalidIV)

	_, err = s.Decrypt(enc.Ciphertext[:10], enc.IV)
	assert.Error(t, err)
}

func TestEncryptAndSign(t *testing.T) {
	s := NewSigner("sig", "enc")
	sealed, err := s.EncryptAndSign([]byte(`{"buy_order":"ABC123"}`))
	require.NoError(t, err)

	got, err := s.VerifyAndDecrypt(sealed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"buy_order":"ABC123"}`, string(got))

	tampered := *sealed
	tampered.IV = strings.Repeat("0", 32)
	_, err = s.VerifyAndDecrypt(&tampered)
	assert.ErrorIs(t, err, domain.ErrInvalidSealedPayload)

	_, err = NewSigner("other", "enc").VerifyAndDecrypt(sealed)
	assert.ErrorIs(t, err, domain.ErrInvalidSealedPayload)
}

func TestGenerateNonce(t *testing.T) {
	a, err := GenerateNonce()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
