package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownKey = errors.New("unknown key id")

// Envelope is the stored form of a sealed value.
type Envelope struct {
	KeyID      string `json:"key_id"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Sealer encrypts with the current key and opens with any known key, so
// keys can be rotated without losing existing sessions.
type Sealer struct {
	currentKeyID string
	aeads        map[string]cipher.AEAD
}

func NewSealer(currentKeyID string, keys map[string][]byte) (*Sealer, error) {
	if currentKeyID == "" {
		return nil, fmt.Errorf("current key id is empty")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys map is empty")
	}
	if _, ok := keys[currentKeyID]; !ok {
		return nil, fmt.Errorf("current key id %q not found", currentKeyID)
	}
	aeads := make(map[string]cipher.AEAD, len(keys))
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("key %q must be 32 bytes", id)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("new cipher %q: %w", id, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("new gcm %q: %w", id, err)
		}
		aeads[id] = aead
	}
	return &Sealer{currentKeyID: currentKeyID, aeads: aeads}, nil
}

func (s *Sealer) CurrentKeyID() string {
	return s.currentKeyID
}

// Seal returns the JSON envelope for value. The additional data binds the
// ciphertext to its storage slot so values cannot be swapped between keys.
func (s *Sealer) Seal(value, slot string) (string, error) {
	aead := s.aeads[s.currentKeyID]
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	env := Envelope{
		KeyID:      s.currentKeyID,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, []byte(value), []byte(slot))),
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}

func (s *Sealer) Open(raw, slot string) (string, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	aead, ok := s.aeads[env.KeyID]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownKey, env.KeyID)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("decode nonce: want %d bytes, got %d", aead.NonceSize(), len(nonce))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(slot))
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Reseal opens raw with whichever key sealed it and seals it again under the
// current key.
func (s *Sealer) Reseal(raw, slot string) (string, error) {
	plain, err := s.Open(raw, slot)
	if err != nil {
		return "", err
	}
	return s.Seal(plain, slot)
}

// NeedsReseal reports whether raw was sealed with a key other than the
// current one.
func (s *Sealer) NeedsReseal(raw string) bool {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return false
	}
	return env.KeyID != "" && env.KeyID != s.currentKeyID
}
