// Package client is the connection-oriented client of the auth service:
// it opens one Session stream and performs typed operations over it. The
// stream lifetime is the session lifetime, so closing the client without a
// logout makes the server force the session out.
package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// RefusedError is returned for every server refusal; the message carries
// the server's explanation.
type RefusedError struct {
	Explanation string
}

func (e *RefusedError) Error() string {
	return e.Explanation
}

// Client holds one server connection and at most one session stream.
// Passwords are hashed before they reach the wire; the plaintext never
// leaves the process.
type Client struct {
	endpointURL string
	conn        *grpc.ClientConn
	stream      rpc.SessionClient
	entry       *auth.User
	nextID      int64
}

func New(endpointURL string) *Client {
	return &Client{endpointURL: endpointURL}
}

// Connect dials the server and opens the session stream.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := grpc.NewClient(c.endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}

	stream, err := rpc.NewClient(conn).Session(ctx)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.stream = stream
	return nil
}

// Close half-closes the stream and drops the connection. When still logged
// in, the server treats this as an abrupt end and forces the session out.
func (c *Client) Close() error {
	if c.stream != nil {
		_ = c.stream.CloseSend()
		c.stream = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// LoggedIn reports whether the last login on this stream succeeded without
// a logout since.
func (c *Client) LoggedIn() bool {
	return c.entry != nil
}

// UserKey returns the identity key of the logged-in user, or "".
func (c *Client) UserKey() string {
	if c.entry == nil {
		return ""
	}
	return c.entry.UserKey
}

func (c *Client) do(req *auth.Request) (*auth.Response, error) {
	if c.stream == nil {
		return nil, fmt.Errorf("not connected")
	}

	c.nextID++
	req.ID = c.nextID

	if err := c.stream.Send(req); err != nil {
		return nil, err
	}

	resp, err := c.stream.Recv()
	if err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("response id mismatch: got %d want %d", resp.ID, req.ID)
	}

	return resp, nil
}

// Login authenticates this stream's session. The password is hashed here
// and wiped by the caller.
func (c *Client) Login(ctx context.Context, userKey string, password []byte) error {
	entry := auth.NewUser(userKey, password)

	resp, err := c.do(&auth.Request{Kind: auth.KindLogin, Entry: entry})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &RefusedError{Explanation: resp.Explanation}
	}

	c.entry = entry
	return nil
}

// Logout ends the session cleanly. The server closes the stream afterwards.
func (c *Client) Logout(ctx context.Context) error {
	if c.entry == nil {
		return fmt.Errorf("not logged in")
	}

	resp, err := c.do(&auth.Request{Kind: auth.KindLogout, Entry: c.entry})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &RefusedError{Explanation: resp.Explanation}
	}

	c.entry = nil
	return nil
}

// Who returns the set of logged-in identity keys. Administrators only.
func (c *Client) Who(ctx context.Context) ([]string, error) {
	if c.entry == nil {
		return nil, fmt.Errorf("not logged in")
	}

	resp, err := c.do(&auth.Request{Kind: auth.KindWho, Entry: c.entry})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &RefusedError{Explanation: resp.Explanation}
	}

	return resp.Users, nil
}

// Level looks up the access level of an identity key.
func (c *Client) Level(ctx context.Context, userKey string) (int, error) {
	resp, err := c.do(&auth.Request{Kind: auth.KindLevel, TargetKey: userKey})
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, &RefusedError{Explanation: resp.Explanation}
	}

	return resp.Level, nil
}

// AddUser registers a new identity. Administrators only.
func (c *Client) AddUser(ctx context.Context, userKey string, password []byte, level int) error {
	entry := auth.NewUser(userKey, password)
	entry.Level = level

	resp, err := c.do(&auth.Request{Kind: auth.KindAddUser, Entry: entry})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &RefusedError{Explanation: resp.Explanation}
	}

	return nil
}

// RemoveUser deletes an identity. Administrators only; the target's
// credentials are still required.
func (c *Client) RemoveUser(ctx context.Context, userKey string, password []byte) error {
	resp, err := c.do(&auth.Request{Kind: auth.KindRemoveUser, Entry: auth.NewUser(userKey, password)})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &RefusedError{Explanation: resp.Explanation}
	}

	return nil
}

// SetPassword resets an identity's password. Administrators only.
func (c *Client) SetPassword(ctx context.Context, userKey string, newPassword []byte) error {
	resp, err := c.do(&auth.Request{Kind: auth.KindSetPass, Entry: auth.NewUser(userKey, newPassword)})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &RefusedError{Explanation: resp.Explanation}
	}

	return nil
}
