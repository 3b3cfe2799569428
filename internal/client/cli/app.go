// Package cli implements the interactive authctl shell: login/logout and
// the administrative operations over one server session.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/authgate/internal/client"
	"github.com/dmitrijs2005/authgate/internal/client/config"
)

// service is the slice of *client.Client the commands need; a test double
// stands in for it in tests.
type service interface {
	Login(ctx context.Context, userKey string, password []byte) error
	Logout(ctx context.Context) error
	Who(ctx context.Context) ([]string, error)
	Level(ctx context.Context, userKey string) (int, error)
	AddUser(ctx context.Context, userKey string, password []byte, level int) error
	RemoveUser(ctx context.Context, userKey string, password []byte) error
	SetPassword(ctx context.Context, userKey string, newPassword []byte) error
	LoggedIn() bool
	UserKey() string
}

type App struct {
	config *config.Config
	client service
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{config: c, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// Run connects to the server, opens the session stream and enters the
// command loop. Closing the stream without a logout makes the server force
// the session out, so an abrupt exit never leaves the identity online.
func (a *App) Run(ctx context.Context) error {
	api := client.New(a.config.ServerEndpointAddr)
	if err := api.Connect(ctx); err != nil {
		return err
	}
	defer api.Close()

	a.client = api
	a.Root(ctx)
	return nil
}
