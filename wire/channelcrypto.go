// Channel cryptography: AES-128-ECB plus a truncated HMAC-SHA256 tag
// (spec.md §4.2). No IV is used and the tag is a deterministic HMAC
// over the ciphertext, so identical plaintexts under one key produce
// identical payloads; the 4-byte timestamp at the head of every
// plaintext is what makes otherwise-equal messages differ.
package wire

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/awnumar/memguard"
	"gitlab.com/yawning/bsaes.git"
)

const (
	macSize  = 2
	aesBlock = 16
	minPlain = 5 // timestamp:4 + txt_type:1
)

// ChannelSecret is a 16-byte channel key held in locked, wipeable
// memory (the teacher's direct memguard dependency; spec.md §3 treats
// the secret as sensitive local state, same category as a device BLE
// PIN).
type ChannelSecret struct {
	buf *memguard.LockedBuffer
}

// NewChannelSecret copies raw into locked memory. The caller's copy of
// raw is not wiped; callers that received it from elsewhere should
// zero it themselves once transferred.
func NewChannelSecret(raw [16]byte) *ChannelSecret {
	return &ChannelSecret{buf: memguard.NewBufferFromBytes(raw[:])}
}

// Destroy wipes the secret. Safe to call multiple times.
func (s *ChannelSecret) Destroy() {
	if s.buf != nil {
		s.buf.Destroy()
	}
}

func (s *ChannelSecret) bytes() []byte { return s.buf.Bytes() }

// DecryptChannelMessage reverses a channel payload
// [mac:2][ciphertext:N] into (timestamp, txt_type, text). Errors are
// one of ErrHMACFailed, ErrDecryptFailed, ErrPayloadTooShort (spec.md
// §7's CryptoError taxonomy); the caller drops the message and logs,
// it never fails the whole frame.
func DecryptChannelMessage(secret *ChannelSecret, payload []byte) (timestamp uint32, txtType uint8, text string, err error) {
	if len(payload) < macSize {
		return 0, 0, "", ErrPayloadTooShort
	}
	tag := payload[:macSize]
	ciphertext := payload[macSize:]
	if len(ciphertext)%aesBlock != 0 {
		return 0, 0, "", ErrDecryptFailed
	}
	if len(ciphertext) == 0 {
		return 0, 0, "", ErrPayloadTooShort
	}

	mac := hmac.New(sha256.New, secret.bytes())
	mac.Write(ciphertext)
	sum := mac.Sum(nil)
	if !hmac.Equal(sum[:macSize], tag) {
		return 0, 0, "", ErrHMACFailed
	}

	block, err2 := bsaes.NewCipher(secret.bytes())
	if err2 != nil {
		return 0, 0, "", ErrDecryptFailed
	}
	plain := ecbDecrypt(block, ciphertext)

	if len(plain) < minPlain {
		return 0, 0, "", ErrDecryptFailed
	}
	ts := binary.LittleEndian.Uint32(plain[0:4])
	tt := plain[4]
	msg := decodeFieldText(plain[5:])
	return ts, tt, msg, nil
}

// EncryptChannelMessage builds a channel payload in the form that
// DecryptChannelMessage reverses. Within this module only the tests
// call it; session.SendChannelMessage sends plain text through
// EncodeSendChannelMessage and leaves encryption to the device.
func EncryptChannelMessage(secret *ChannelSecret, timestamp uint32, txtType uint8, text string) ([]byte, error) {
	plain := make([]byte, minPlain+len(text))
	binary.LittleEndian.PutUint32(plain[0:4], timestamp)
	plain[4] = txtType
	copy(plain[5:], text)
	// Pad to a block boundary with NULs, consistent with the NUL-trim
	// on decode.
	if rem := len(plain) % aesBlock; rem != 0 {
		plain = append(plain, make([]byte, aesBlock-rem)...)
	}

	block, err := bsaes.NewCipher(secret.bytes())
	if err != nil {
		return nil, err
	}
	ciphertext := ecbEncrypt(block, plain)

	mac := hmac.New(sha256.New, secret.bytes())
	mac.Write(ciphertext)
	tag := mac.Sum(nil)[:macSize]

	out := make([]byte, 0, macSize+len(ciphertext))
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// ecbEncrypt/ecbDecrypt apply block in ECB mode: each 16-byte block is
// transformed independently, with no chaining or IV. Go's
// crypto/cipher intentionally ships no ECB mode (it is a footgun for
// general use); this protocol's own 2-byte HMAC tag is what
// authenticates the short, effectively-random-prefixed payloads this
// is used for, per spec.md §4.2's rationale.
func ecbEncrypt(block cipher.Block, plain []byte) []byte {
	out := make([]byte, len(plain))
	for i := 0; i < len(plain); i += aesBlock {
		block.Encrypt(out[i:i+aesBlock], plain[i:i+aesBlock])
	}
	return out
}

func ecbDecrypt(block cipher.Block, ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aesBlock {
		block.Decrypt(out[i:i+aesBlock], ciphertext[i:i+aesBlock])
	}
	return out
}
