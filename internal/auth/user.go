// Package auth defines the credential entity shared by client and server,
// together with the password-hashing discipline and the request/response
// vocabulary of the authentication protocol.
//
// A User carries a one-way hash of its password from the moment it is
// constructed; plaintext is discarded immediately after hashing and has no
// field to live in, so it can never persist or serialize.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Access levels. The gap between NormalUser and Administrator leaves room
// for intermediate tiers.
const (
	NormalUser    = 0
	Administrator = 10
)

// UnknownUID is the sentinel carried by a User before the store assigns one.
const UnknownUID int64 = -1

// User is an entry in a credential store: a lowercased identity key matched
// with a SHA-256 password hash, an access level, and a store-assigned uid.
//
// The session id is transient state bound by a session authority at login
// and cleared at logout; it never serializes.
type User struct {
	UserKey      string `json:"user_key"`
	PasswordHash string `json:"password"`
	Level        int    `json:"level"`
	UID          int64  `json:"uid"`
	AuxData      string `json:"aux_user_data,omitempty"`

	sessionID string
}

// NewUser creates a User with the given identity key and plaintext password.
// The key is normalized to lowercase and the password is hashed before it is
// stored; the plaintext is not retained.
func NewUser(userKey string, plaintextPassword []byte) *User {
	return &User{
		UserKey:      strings.ToLower(userKey),
		PasswordHash: HashPassword(plaintextPassword),
		Level:        NormalUser,
		UID:          UnknownUID,
	}
}

// SetUserKey replaces the identity key, normalizing to lowercase.
func (u *User) SetUserKey(userKey string) {
	u.UserKey = strings.ToLower(userKey)
}

// UnmarshalJSON decodes a User and normalizes its identity key. Decoded
// entries (wire requests, snapshot records) must obey the same lowercase
// discipline as constructed ones; key comparisons are case-insensitive
// everywhere.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.UserKey = strings.ToLower(p.UserKey)
	*u = User(p)
	return nil
}

// SetPassword re-hashes and replaces the stored password hash.
func (u *User) SetPassword(plaintextPassword []byte) {
	u.PasswordHash = HashPassword(plaintextPassword)
}

// CompareHash reports whether the given hash matches this user's hash.
// Both sides are trimmed before a constant-time comparison.
func (u *User) CompareHash(candidateHash string) bool {
	a := strings.TrimSpace(u.PasswordHash)
	b := strings.TrimSpace(candidateHash)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ComparePassword hashes the candidate plaintext and compares it to the
// stored hash.
func (u *User) ComparePassword(plaintextPassword []byte) bool {
	return u.CompareHash(HashPassword(plaintextPassword))
}

// SessionID returns the session id bound to this user, or "" when offline.
// The session authority is the owner of record for this value.
func (u *User) SessionID() string {
	return u.sessionID
}

// BindSession records the session id for this user. Called by session
// authorities on successful login.
func (u *User) BindSession(sessionID string) {
	u.sessionID = sessionID
}

// ClearSession drops the bound session id. Called by session authorities on
// logout or invalidation.
func (u *User) ClearSession() {
	u.sessionID = ""
}

// Less orders users lexicographically by identity key, for sorted listings.
func (u *User) Less(other *User) bool {
	return u.UserKey < other.UserKey
}

// HashPassword digests the plaintext with SHA-256 and encodes the result
// with standard base64 so it is printable. The same plaintext always yields
// the same hash, which is what allows stored-hash to candidate-hash
// comparison without ever re-hashing a stored value.
func HashPassword(plaintextPassword []byte) string {
	sum := sha256.Sum256(plaintextPassword)
	return base64.StdEncoding.EncodeToString(sum[:])
}
