// Command folioctl is a terminal client for the folio API: register and
// log in, inspect the current identity, and manage the account. The
// session persists under the user config directory, so identity survives
// between invocations.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"foliocms.org/internal/auth"
	"foliocms.org/internal/client"
)

func main() {
	log.SetFlags(0)
	var (
		server      = flag.String("server", envOr("FOLIO_SERVER", "http://localhost:8080"), "API base URL")
		sessionPath = flag.String("session", "", "Session file path (default: user config dir)")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		usage()
	}

	path := *sessionPath
	if path == "" {
		var err error
		path, err = client.DefaultSessionPath()
		if err != nil {
			log.Fatalf("session path: %v", err)
		}
	}

	c, err := client.New(*server, client.NewFileStore(path))
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch flag.Arg(0) {
	case "register":
		err = runRegister(ctx, c)
	case "login":
		err = runLogin(ctx, c)
	case "whoami":
		err = runWhoami(ctx, c)
	case "logout":
		err = c.Logout(ctx)
		if err == nil {
			fmt.Println("logged out")
		}
	case "change-password":
		err = runChangePassword(ctx, c)
	case "delete-account":
		err = runDeleteAccount(ctx, c)
	case "accounts":
		err = runAccounts(ctx, c)
	default:
		usage()
	}
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			log.Fatal("not logged in (or the session expired); run: folioctl login")
		}
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: folioctl [-server URL] [-session FILE] <command>")
	fmt.Fprintln(os.Stderr, "commands: register, login, whoami, logout, change-password, delete-account, accounts")
	os.Exit(2)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func runRegister(ctx context.Context, c *client.Client) error {
	name, err := promptLine("Name: ")
	if err != nil {
		return err
	}
	email, err := promptLine("Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	if err := c.Register(ctx, name, email, password); err != nil {
		return err
	}
	fmt.Println("account created, please log in")
	return nil
}

func runLogin(ctx context.Context, c *client.Client) error {
	email, err := promptLine("Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	sess, err := c.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", sess.User.Email, sess.User.Role)
	return nil
}

func runWhoami(ctx context.Context, c *client.Client) error {
	view, err := c.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("id:    %s\n", view.ID)
	fmt.Printf("name:  %s\n", view.Name)
	fmt.Printf("email: %s\n", view.Email)
	fmt.Printf("role:  %s\n", view.Role)
	if view.LastLogin != nil {
		fmt.Printf("last login: %s\n", view.LastLogin.Format(time.RFC3339))
	}
	return nil
}

func runChangePassword(ctx context.Context, c *client.Client) error {
	current, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := promptPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Repeat new password: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return errors.New("passwords do not match")
	}
	if err := c.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Println("password updated")
	return nil
}

func runDeleteAccount(ctx context.Context, c *client.Client) error {
	answer, err := promptLine("Delete this account permanently? Type 'yes' to confirm: ")
	if err != nil {
		return err
	}
	if answer != "yes" {
		return errors.New("aborted")
	}
	if err := c.DeleteAccount(ctx); err != nil {
		return err
	}
	fmt.Println("account deleted")
	return nil
}

func runAccounts(ctx context.Context, c *client.Client) error {
	views, err := c.Accounts(ctx)
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			return errors.New("admin role required")
		}
		return err
	}
	for _, v := range views {
		marker := " "
		if v.Role == auth.RoleAdmin {
			marker = "*"
		}
		fmt.Printf("%s %-24s %-32s %s\n", marker, v.ID, v.Email, v.Role)
	}
	return nil
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo when stdin is a terminal and falls
// back to a plain line read when it is a pipe.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLineRaw()
	}
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func promptLineRaw() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
