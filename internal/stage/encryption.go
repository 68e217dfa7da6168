package stage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/adapipe/adapipe/internal/apperr"
	"github.com/adapipe/adapipe/internal/domain"

	"golang.org/x/crypto/chacha20poly1305"
)

// encryptionStage implements the Encryption StageType: AEAD only, per-chunk
// nonce prepended to the payload (§4.2). The engine never derives or
// stores keys; it receives an already-derived key from a KeyProvider and
// uses it for every chunk in the run (§6.2).
type encryptionStage struct {
	ps   domain.PipelineStage
	aead cipher.AEAD
}

func newEncryptionStage(ps domain.PipelineStage, keys KeyProvider) (*encryptionStage, error) {
	if keys == nil {
		return nil, apperr.New(apperr.Validation, "encryption stage requires a KeyProvider")
	}
	key, err := keys.KeyFor(ps.Name)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "resolve encryption key", err)
	}

	aead, err := newAEAD(ps.Algorithm, key)
	if err != nil {
		return nil, err
	}
	return &encryptionStage{ps: ps, aead: aead}, nil
}

func newAEAD(tag domain.AlgorithmTag, key []byte) (cipher.AEAD, error) {
	switch tag {
	case domain.EncryptionAES256GCM:
		return newAESGCM(key, 32)
	case domain.EncryptionAES128GCM:
		return newAESGCM(key, 16)
	case domain.EncryptionChaCha:
		if len(key) != chacha20poly1305.KeySize {
			return nil, apperr.New(apperr.Validation, "chacha20-poly1305 requires a 32-byte key")
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, apperr.Wrap(apperr.Encryption, "construct chacha20-poly1305", err)
		}
		return aead, nil
	default:
		return nil, apperr.New(apperr.Validation, "unsupported encryption algorithm "+string(tag))
	}
}

func newAESGCM(key []byte, wantSize int) (cipher.AEAD, error) {
	if len(key) != wantSize {
		return nil, apperr.New(apperr.Validation, "aes-gcm key must be exactly the declared key size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "construct aes cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.Encryption, "construct aes-gcm", err)
	}
	return gcm, nil
}

// Forward seals chunk.Payload and prepends the nonce, so the reverse
// direction can recover it without a side channel.
func (s *encryptionStage) Forward(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.FileChunk{}, apperr.WrapStage(apperr.Encryption, s.ps.Name, chunk.Sequence, "generate nonce", err)
	}
	sealed := s.aead.Seal(nil, nonce, chunk.Payload, nil)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return chunk.WithPayload(out), nil
}

// Reverse splits the nonce back off the payload and opens it. A tampered
// or corrupt payload fails authentication and surfaces as Integrity, never
// a generic decode error (§4.2).
func (s *encryptionStage) Reverse(ctx context.Context, chunk domain.FileChunk) (domain.FileChunk, error) {
	nonceSize := s.aead.NonceSize()
	if len(chunk.Payload) < nonceSize {
		return domain.FileChunk{}, apperr.WrapStage(apperr.Integrity, s.ps.Name, chunk.Sequence, "payload shorter than nonce", nil)
	}
	nonce, sealed := chunk.Payload[:nonceSize], chunk.Payload[nonceSize:]

	plain, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return domain.FileChunk{}, apperr.WrapStage(apperr.Integrity, s.ps.Name, chunk.Sequence, "authentication failed", err)
	}
	return chunk.WithPayload(plain), nil
}

func (s *encryptionStage) EstimateOutputSize(inputSize int) int {
	return inputSize + s.aead.NonceSize() + s.aead.Overhead()
}

func (s *encryptionStage) Descriptor() domain.StageDescriptor { return descriptorFor(s.ps) }
