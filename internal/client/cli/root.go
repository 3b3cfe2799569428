package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

func (a *App) prompt() string {
	if a.client.LoggedIn() {
		return fmt.Sprintf("authctl %s> ", a.client.UserKey())
	}
	return "authctl> "
}

// Root runs the interactive command loop until exit or EOF.
func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "authctl (type 'help' for commands)")
	scanner := bufio.NewScanner(a.reader)

	for {
		fmt.Fprint(a.out, a.prompt())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		var err error

		switch cmd {
		case "help":
			if a.client.LoggedIn() {
				fmt.Fprintln(a.out, "Available commands: logout, who, level, adduser, removeuser, setpass, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: login, level, exit")
			}
		case "login":
			err = a.Login(ctx, args)
		case "logout":
			err = a.Logout(ctx)
		case "who":
			err = a.Who(ctx)
		case "level":
			err = a.LevelCmd(ctx, args)
		case "adduser":
			err = a.AddUser(ctx, args)
		case "removeuser":
			err = a.RemoveUser(ctx, args)
		case "setpass":
			err = a.SetPassword(ctx, args)
		case "exit", "quit":
			return
		default:
			fmt.Fprintf(a.out, "Unknown command: %s\n", cmd)
		}

		if err != nil {
			fmt.Fprintf(a.out, "Error: %s\n", err.Error())
		}
	}
}
