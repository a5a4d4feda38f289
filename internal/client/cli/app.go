// Package cli implements the kitchensink command-line client: one
// subcommand per API operation, printing responses as JSON.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/kitchensink/internal/client/api"
	"github.com/dmitrijs2005/kitchensink/internal/client/config"
)

// Client is the subset of the API client the commands use.
type Client interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.RefreshResponse, error)
	Logout(ctx context.Context, refreshToken string) (string, error)
	Me(ctx context.Context) (*api.Identity, error)
	ListMembers(ctx context.Context, opts api.ListOptions) (*api.MemberPage, error)
	GetMember(ctx context.Context, id string) (*api.Member, error)
	CreateMember(ctx context.Context, m api.Member) (*api.Member, error)
	UpdateMember(ctx context.Context, id string, m api.Member) (*api.Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// errUsage marks argument errors; Run prints usage for them.
var errUsage = errors.New("usage")

type App struct {
	config *config.Config
	client Client
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer

	// test seams
	getSimpleText func(*bufio.Reader, string, io.Writer) (string, error)
	getPassword   func(io.Writer) (string, error)
}

func NewApp(c *config.Config) *App {
	client := api.NewClient(c.ServerURL, c.Timeout).WithToken(c.AccessToken)
	return newApp(c, client, os.Stdin, os.Stdout, os.Stderr)
}

func newApp(c *config.Config, client Client, in io.Reader, out, errOut io.Writer) *App {
	return &App{
		config:        c,
		client:        client,
		reader:        bufio.NewReader(in),
		out:           out,
		errOut:        errOut,
		getSimpleText: GetSimpleText,
		getPassword:   GetPassword,
	}
}

// Run executes the command named by args[0] and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return 2
	}

	var err error
	switch args[0] {
	case "register":
		err = a.register(ctx, args[1:])
	case "login":
		err = a.login(ctx, args[1:])
	case "refresh":
		err = a.refresh(ctx, args[1:])
	case "logout":
		err = a.logout(ctx, args[1:])
	case "me":
		err = a.me(ctx)
	case "members":
		err = a.members(ctx, args[1:])
	case "help", "-h", "--help":
		a.usage()
		return 0
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	if err == nil {
		return 0
	}

	fmt.Fprintln(a.errOut, "error:", err)
	if errors.Is(err, errUsage) {
		a.usage()
		return 2
	}
	return 1
}

func (a *App) usage() {
	fmt.Fprint(a.errOut, `usage: kitchensink-cli [-a url] [-c file] [-timeout d] [-token t] <command> [flags]

commands:
  register [-u username] [-e email] [-p password]
  login    [-u username|email] [-p password]
  refresh  -r refresh-token
  logout   -r refresh-token
  me
  members list [-page n] [-size n] [-sort name|email|phoneNumber] [-dir asc|desc]
  members get <id>
  members create -name n -email e -phone p
  members update <id> -name n -email e -phone p
  members delete <id>

The access token is taken from -token or $`+config.TokenEnv+`.
`)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// prompt returns value, or asks for it when empty.
func (a *App) prompt(value, question string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.getSimpleText(a.reader, question, a.errOut)
}

func (a *App) password(value string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.getPassword(a.errOut)
}
