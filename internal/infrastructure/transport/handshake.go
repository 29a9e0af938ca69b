package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"adstream/pkg/identity"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/curve25519"
)

// handshakeMsg is the first message on a fresh link connection. Each
// side proves ownership of its signing key and contributes an
// ephemeral key-agreement public key.
type handshakeMsg struct {
	ID    string `json:"id"`    // signing public key
	Enc   string `json:"enc"`   // ephemeral X25519 public key
	Nonce string `json:"nonce"` // anti-replay salad for the signature
	Sig   string `json:"sig"`
}

// performHandshake runs the authenticated key agreement on a newly
// opened connection and returns the per-link AEAD plus the remote
// signing key. The initiator speaks first.
func performHandshake(conn *websocket.Conn, self *identity.Identity, initiator bool) (cipher.AEAD, ed25519.PublicKey, error) {
	var ephPriv [32]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, nil, err
	}
	var ephPub [32]byte
	curve25519.ScalarBaseMult(&ephPub, &ephPriv)

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	signed := append([]byte{}, self.PublicKey...)
	signed = append(signed, ephPub[:]...)
	signed = append(signed, nonce...)

	own := handshakeMsg{
		ID:    base64.RawURLEncoding.EncodeToString(self.PublicKey),
		Enc:   base64.RawURLEncoding.EncodeToString(ephPub[:]),
		Nonce: base64.RawURLEncoding.EncodeToString(nonce),
		Sig:   base64.RawURLEncoding.EncodeToString(self.Sign(signed)),
	}

	if initiator {
		if err := conn.WriteJSON(own); err != nil {
			return nil, nil, err
		}
	}
	var peer handshakeMsg
	if err := conn.ReadJSON(&peer); err != nil {
		return nil, nil, err
	}
	if !initiator {
		if err := conn.WriteJSON(own); err != nil {
			return nil, nil, err
		}
	}

	peerPub, err := base64.RawURLEncoding.DecodeString(peer.ID)
	if err != nil || len(peerPub) != ed25519.PublicKeySize {
		return nil, nil, errors.New("invalid peer signing key")
	}
	peerEnc, err := base64.RawURLEncoding.DecodeString(peer.Enc)
	if err != nil || len(peerEnc) != 32 {
		return nil, nil, errors.New("invalid peer key-agreement key")
	}
	peerNonce, err := base64.RawURLEncoding.DecodeString(peer.Nonce)
	if err != nil {
		return nil, nil, err
	}
	peerSig, err := base64.RawURLEncoding.DecodeString(peer.Sig)
	if err != nil {
		return nil, nil, err
	}

	verify := append([]byte{}, peerPub...)
	verify = append(verify, peerEnc...)
	verify = append(verify, peerNonce...)
	if !identity.Verify(ed25519.PublicKey(peerPub), verify, peerSig) {
		return nil, nil, errors.New("handshake signature verification failed")
	}

	shared, err := curve25519.X25519(ephPriv[:], peerEnc)
	if err != nil {
		return nil, nil, err
	}
	key := sha256.Sum256(shared)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	return aead, ed25519.PublicKey(peerPub), nil
}

// sealFrame encrypts one outbound message: random nonce prefix, then
// ciphertext.
func sealFrame(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// openFrame decrypts one inbound message.
func openFrame(aead cipher.AEAD, frame []byte) ([]byte, error) {
	if len(frame) < aead.NonceSize() {
		return nil, errors.New("frame too short")
	}
	nonce, ciphertext := frame[:aead.NonceSize()], frame[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
