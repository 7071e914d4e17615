package steam

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	codeLength   = 5
	codeInterval = 30 // seconds per time bucket
)

// steamChars is the alphabet of Steam Guard codes. It is not the RFC 6238
// digit alphabet, which is why no generic TOTP library fits here.
var steamChars = []byte("23456789BCDFGHJKMNPQRTVWXY")

// CodeGenerator produces Steam Guard one-time codes from a base64-encoded
// shared secret. Codes are time-based and must be regenerated for every
// login attempt.
type CodeGenerator struct {
	now func() time.Time
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{now: time.Now}
}

// NewCodeGeneratorWithClock allows tests to pin the clock.
func NewCodeGeneratorWithClock(now func() time.Time) *CodeGenerator {
	return &CodeGenerator{now: now}
}

// TotpCode implements ports.CodeGenerator.
func (g *CodeGenerator) TotpCode(sharedSecret string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("invalid shared secret: %w", err)
	}

	bucket := uint64(g.now().Unix() / codeInterval)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bucket)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	digest := mac.Sum(nil)

	offset := digest[len(digest)-1] & 0x0f
	fullCode := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	code := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		code[i] = steamChars[fullCode%uint32(len(steamChars))]
		fullCode /= uint32(len(steamChars))
	}
	return string(code), nil
}

// ConfirmationKey derives the mobile-authenticator confirmation key from the
// identity secret for the given time and operation tag.
func ConfirmationKey(identitySecret string, t time.Time, tag string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(identitySecret)
	if err != nil {
		return "", fmt.Errorf("invalid identity secret: %w", err)
	}

	buf := make([]byte, 8, 8+len(tag))
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	buf = append(buf, []byte(tag)...)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
