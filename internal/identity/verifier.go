package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Verifier - референсная реализация коллаборатора проверки подписей:
// зарегистрированные ed25519 публичные ключи реагирующих из JSON-файла
// вида {"responder_id": "base64(pubkey)"}.
type Verifier struct {
	keys   map[string]ed25519.PublicKey
	logger *logrus.Logger
}

func NewVerifier(keysFile string, logger *logrus.Logger) (*Verifier, error) {
	v := &Verifier{
		keys:   make(map[string]ed25519.PublicKey),
		logger: logger,
	}

	data, err := os.ReadFile(keysFile)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("file", keysFile).Warn("Responder keys file not found, signature validation will reject everyone")
			return v, nil
		}
		return nil, fmt.Errorf("failed to read responder keys file: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse responder keys file: %w", err)
	}
	for responderID, encoded := range raw {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != ed25519.PublicKeySize {
			logger.WithField("responder_id", responderID).Warn("Skipping malformed responder public key")
			continue
		}
		v.keys[responderID] = ed25519.PublicKey(key)
	}
	logger.WithField("keys", len(v.keys)).Info("Responder public keys loaded")
	return v, nil
}

// ValidateSignature проверяет подпись реагирующего по его зарегистрированному ключу
func (v *Verifier) ValidateSignature(responderID string, signature, payload []byte) bool {
	key, ok := v.keys[responderID]
	if !ok {
		return false
	}
	return ed25519.Verify(key, payload, signature)
}
