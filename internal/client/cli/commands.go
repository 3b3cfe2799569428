package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/authgate/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) userKeyArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return getSimpleText(a.reader, "Enter user key", a.out)
}

// Login prompts for credentials and authenticates the session. The
// password is hashed inside the client and wiped before returning.
func (a *App) Login(ctx context.Context, args []string) error {
	userKey, err := a.userKeyArg(args)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, userKey, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Logout successful")
	return nil
}

// Who prints the online set. Administrators only.
func (a *App) Who(ctx context.Context) error {
	users, err := a.client.Who(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Online (%d): %s\n", len(users), strings.Join(users, ", "))
	return nil
}

// LevelCmd looks up and prints the access level of an identity key.
func (a *App) LevelCmd(ctx context.Context, args []string) error {
	userKey, err := a.userKeyArg(args)
	if err != nil {
		return err
	}

	level, err := a.client.Level(ctx, userKey)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Level of %s: %d\n", strings.ToLower(userKey), level)
	return nil
}

// AddUser registers a new identity. Administrators only.
func (a *App) AddUser(ctx context.Context, args []string) error {
	userKey, err := a.userKeyArg(args)
	if err != nil {
		return err
	}

	levelText, err := getSimpleText(a.reader, "Enter level (0 user, 10 admin)", a.out)
	if err != nil {
		return err
	}
	level, err := strconv.Atoi(levelText)
	if err != nil {
		return fmt.Errorf("invalid level: %s", levelText)
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.AddUser(ctx, userKey, password, level); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "User added")
	return nil
}

// RemoveUser deletes an identity; the target's own password is required.
func (a *App) RemoveUser(ctx context.Context, args []string) error {
	userKey, err := a.userKeyArg(args)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter the user's password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.RemoveUser(ctx, userKey, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "User removed")
	return nil
}

// SetPassword resets an identity's password. Administrators only.
func (a *App) SetPassword(ctx context.Context, args []string) error {
	userKey, err := a.userKeyArg(args)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.SetPassword(ctx, userKey, password); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Password updated")
	return nil
}
