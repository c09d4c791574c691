// ABOUTME: Passphrase encryption for backup snapshots using Argon2id and AES-256-GCM.
// ABOUTME: Layout is magic header, KDF parameters, salt, nonce, then ciphertext with auth tag.
package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// MagicHeader identifies an encrypted snapshot.
const MagicHeader = "MIGRENC2"

const (
	saltLength = 32
	keyLength  = 32

	// magic, time (uint32), memory (uint32), threads (uint8)
	headerLength = len(MagicHeader) + 9

	maxMemoryKiB = 4 << 20
)

var (
	ErrNotEncrypted    = errors.New("not an encrypted snapshot")
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted snapshot")
)

// KDFParams tunes Argon2id.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDF follows the RFC 9106 second recommendation.
var DefaultKDF = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

func (p KDFParams) validate() error {
	if p.Time == 0 || p.Threads == 0 {
		return fmt.Errorf("invalid KDF parameters: time %d, threads %d", p.Time, p.Threads)
	}
	if p.Memory < 8*uint32(p.Threads) || p.Memory > maxMemoryKiB {
		return fmt.Errorf("invalid KDF memory: %d KiB", p.Memory)
	}
	return nil
}

func (p KDFParams) header() []byte {
	h := make([]byte, headerLength)
	copy(h, MagicHeader)
	binary.BigEndian.PutUint32(h[len(MagicHeader):], p.Time)
	binary.BigEndian.PutUint32(h[len(MagicHeader)+4:], p.Memory)
	h[len(MagicHeader)+8] = p.Threads
	return h
}

func deriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Threads, keyLength)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under a key derived from passphrase. The KDF
// parameters are written after the magic header and authenticated with it.
func Encrypt(plaintext []byte, passphrase string, p KDFParams) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase required")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := newGCM(deriveKey(passphrase, salt, p))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	header := p.header()
	out := make([]byte, 0, len(header)+saltLength+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Decrypt opens data produced by Encrypt, using the KDF parameters stored
// in its header.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	if passphrase == "" {
		return nil, errors.New("passphrase required")
	}
	if len(data) < headerLength+saltLength {
		return nil, ErrWrongPassphrase
	}

	header := data[:headerLength]
	p := KDFParams{
		Time:    binary.BigEndian.Uint32(header[len(MagicHeader):]),
		Memory:  binary.BigEndian.Uint32(header[len(MagicHeader)+4:]),
		Threads: header[len(MagicHeader)+8],
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("snapshot header: %w", err)
	}

	salt, rest := data[headerLength:headerLength+saltLength], data[headerLength+saltLength:]
	gcm, err := newGCM(deriveKey(passphrase, salt, p))
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrWrongPassphrase
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// IsEncrypted checks for the magic header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(MagicHeader))
}
