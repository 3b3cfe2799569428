package auth

// RequestKind identifies the operation carried by a Request.
type RequestKind string

const (
	KindLogin      RequestKind = "login"
	KindLogout     RequestKind = "logout"
	KindWho        RequestKind = "who"
	KindLevel      RequestKind = "level"
	KindAddUser    RequestKind = "add_user"
	KindRemoveUser RequestKind = "remove_user"
	KindSetPass    RequestKind = "set_password"
)

// Response explanations form a small fixed vocabulary; no internal fault
// detail ever reaches a client.
const (
	LoginSuccessful  = "login successful"
	LoginFailed      = "invalid credentials"
	LogoutSuccessful = "logout successful"
	LogoutFailed     = "session mismatch"
	NotAuthenticated = "not authenticated"
	NotAuthorized    = "not authorized"
	SaveFailed       = "save failed"
	UserExists       = "user already exists"
	OKResponse       = "ok"
)

// Request is one inbound message on either transport. Login, logout, add
// and remove carry the credential entry (with its password already hashed
// client-side); level lookups carry only the target key.
type Request struct {
	ID        int64       `json:"id"`
	Kind      RequestKind `json:"kind"`
	Entry     *User       `json:"entry,omitempty"`
	TargetKey string      `json:"target_key,omitempty"`
}

// Response is the server's reply to a single Request. Explanation is drawn
// from the fixed vocabulary above. SessionToken is only set on a successful
// datagram-transport login; Users only on an authorized online-set query;
// Level only on a level lookup.
type Response struct {
	ID           int64    `json:"id"`
	OK           bool     `json:"ok"`
	Explanation  string   `json:"explanation"`
	SessionToken string   `json:"session_token,omitempty"`
	Users        []string `json:"users,omitempty"`
	Level        int      `json:"level,omitempty"`
}

// IsLogin reports whether the request is login-shaped: the only kind an
// unauthenticated connection is allowed to submit.
func (r *Request) IsLogin() bool {
	return r.Kind == KindLogin
}

// IsLogout reports whether the request tears down the session on completion.
func (r *Request) IsLogout() bool {
	return r.Kind == KindLogout
}
