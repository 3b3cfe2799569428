package auth

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser_NormalizesKeyAndHashes(t *testing.T) {
	u := NewUser("Alice", []byte("secret1"))

	assert.Equal(t, "alice", u.UserKey)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotContains(t, u.PasswordHash, "secret1")
	assert.Equal(t, NormalUser, u.Level)
	assert.Equal(t, UnknownUID, u.UID)
	assert.Empty(t, u.SessionID())
}

func TestHashPassword_Deterministic(t *testing.T) {
	h1 := HashPassword([]byte("secret1"))
	h2 := HashPassword([]byte("secret1"))
	h3 := HashPassword([]byte("secret2"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestUser_ComparePassword(t *testing.T) {
	u := NewUser("alice", []byte("secret1"))

	assert.True(t, u.ComparePassword([]byte("secret1")))
	assert.False(t, u.ComparePassword([]byte("secret2")))
	assert.False(t, u.ComparePassword([]byte("")))
}

func TestUser_CompareHash_Trims(t *testing.T) {
	u := NewUser("alice", []byte("secret1"))
	h := HashPassword([]byte("secret1"))

	assert.True(t, u.CompareHash(h))
	assert.True(t, u.CompareHash(" "+h+"\n"))
	assert.False(t, u.CompareHash(HashPassword([]byte("secret2"))))
}

func TestUser_SetPassword_Rehashes(t *testing.T) {
	u := NewUser("alice", []byte("secret1"))
	old := u.PasswordHash

	u.SetPassword([]byte("secret2"))

	assert.NotEqual(t, old, u.PasswordHash)
	assert.True(t, u.ComparePassword([]byte("secret2")))
	assert.False(t, u.ComparePassword([]byte("secret1")))
}

func TestUser_SetUserKey_Lowercases(t *testing.T) {
	u := NewUser("alice", []byte("secret1"))
	u.SetUserKey("BOB")
	assert.Equal(t, "bob", u.UserKey)
}

func TestUser_SessionBinding(t *testing.T) {
	u := NewUser("alice", []byte("secret1"))

	u.BindSession("sess-1")
	assert.Equal(t, "sess-1", u.SessionID())

	u.ClearSession()
	assert.Empty(t, u.SessionID())
}

func TestUser_JSONCarriesNoPlaintextOrSession(t *testing.T) {
	u := NewUser("alice", []byte("secret1"))
	u.BindSession("sess-1")

	b, err := json.Marshal(u)
	require.NoError(t, err)

	s := string(b)
	assert.NotContains(t, s, "secret1")
	assert.NotContains(t, s, "sess-1")
	assert.Contains(t, s, `"user_key":"alice"`)
}

func TestUsers_OrderByKey(t *testing.T) {
	users := []*User{
		NewUser("carol", []byte("x")),
		NewUser("alice", []byte("x")),
		NewUser("bob", []byte("x")),
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Less(users[j]) })

	keys := make([]string, 0, len(users))
	for _, u := range users {
		keys = append(keys, u.UserKey)
	}
	assert.Equal(t, "alice,bob,carol", strings.Join(keys, ","))
}

func TestUser_UnmarshalJSON_NormalizesKey(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"user_key":"Alice","password":"h","level":10,"uid":7}`), &u))

	assert.Equal(t, "alice", u.UserKey)
	assert.Equal(t, "h", u.PasswordHash)
	assert.Equal(t, Administrator, u.Level)
	assert.Equal(t, int64(7), u.UID)
}
