package coordinator

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/networkneuron/pkg/crypto"
)

// loadOrCreateIdentity loads a persisted private key from path, or
// generates a new one and saves it, so the node's identity (and therefore
// its NodeID) survives restarts.
func loadOrCreateIdentity(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		raw, herr := hex.DecodeString(strings.TrimSpace(string(data)))
		if herr != nil {
			return nil, fmt.Errorf("decode identity file: %w", herr)
		}
		return crypto.PrivateKeyFromBytes(raw)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key.Serialize())), 0600); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return key, nil
}
