package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Identity is the cryptographic principal owned by a process for its
// lifetime. It is never mutated after creation.
type Identity struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

type serializedKey struct {
	Private string `json:"private"`
	Public  string `json:"public"`
}

// Generate creates a fresh identity.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Identity{PrivateKey: priv, PublicKey: pub}, nil
}

// Hash returns the truncated SHA-256 address hash of the public key.
func (id *Identity) Hash() string {
	return HashPublicKey(id.PublicKey)
}

// HashPublicKey derives the address hash for any public key.
func HashPublicKey(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:16])
}

// Sign signs a message with the identity's private key.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.PrivateKey, message)
}

// Verify checks a signature against the given public key.
func Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(pub, message, signature)
}

// Save writes the keypair to a JSON file, creating parent directories
// as needed. The file is written with owner-only permissions.
func (id *Identity) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data := serializedKey{
		Private: base64.RawURLEncoding.EncodeToString(id.PrivateKey),
		Public:  base64.RawURLEncoding.EncodeToString(id.PublicKey),
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// Load reads a saved keypair from a file.
func Load(path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data serializedKey
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	priv, err := base64.RawURLEncoding.DecodeString(data.Private)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key")
	}
	pub, err := base64.RawURLEncoding.DecodeString(data.Public)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, errors.New("invalid public key")
	}
	return &Identity{
		PrivateKey: ed25519.PrivateKey(priv),
		PublicKey:  ed25519.PublicKey(pub),
	}, nil
}

// GetOrCreate loads the identity at path, or generates and persists a
// new one if none exists.
func GetOrCreate(path string) (*Identity, error) {
	if id, err := Load(path); err == nil {
		return id, nil
	}
	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := id.Save(path); err != nil {
		return nil, err
	}
	return id, nil
}
