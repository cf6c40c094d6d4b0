package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
)

type SessionID [16]byte

const (
	refreshTokenRawSize = 52
	refreshSecretSize   = 32
)

// NewSessionID mints a random v4 UUID as the session identifier.
func NewSessionID() (SessionID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(id), nil
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

func ParseSessionID(sessionID string) (SessionID, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(id), nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret is the only form a refresh secret is ever stored in.
func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs session id, generation and secret into the opaque
// wire token: sid[16] || generation[4 big-endian] || secret[32], base64url.
// The generation rides in the token so rotation can compare-and-increment
// without a prior read.
func EncodeRefreshToken(sessionID string, generation uint32, secret [refreshSecretSize]byte) (string, error) {
	sid, err := ParseSessionID(sessionID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:16], sid[:])
	binary.BigEndian.PutUint32(raw[16:20], generation)
	copy(raw[20:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, uint32, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", 0, secret, errors.New("invalid refresh token size")
	}

	var sid SessionID
	copy(sid[:], raw[:16])
	generation := binary.BigEndian.Uint32(raw[16:20])
	copy(secret[:], raw[20:])

	return sid.String(), generation, secret, nil
}
