package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/kitchensink/internal/client/api"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("u", "", "username")
	email := fs.String("e", "", "email")
	password := fs.String("p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}

	var err error
	if *username, err = a.prompt(*username, "Enter user name"); err != nil {
		return err
	}
	if *email, err = a.prompt(*email, "Enter email"); err != nil {
		return err
	}
	if *password, err = a.password(*password); err != nil {
		return err
	}

	msg, err := a.client.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	return a.print(map[string]string{"message": msg})
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	identifier := fs.String("u", "", "username or email")
	password := fs.String("p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}

	var err error
	if *identifier, err = a.prompt(*identifier, "Enter user name or email"); err != nil {
		return err
	}
	if *password, err = a.password(*password); err != nil {
		return err
	}

	res, err := a.client.Login(ctx, *identifier, *password)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *App) refreshTokenArg(name string, args []string) (string, error) {
	fs := newFlagSet(name)
	token := fs.String("r", "", "refresh token")
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if *token == "" {
		return "", fmt.Errorf("%w: %s needs -r", errUsage, name)
	}
	return *token, nil
}

func (a *App) refresh(ctx context.Context, args []string) error {
	token, err := a.refreshTokenArg("refresh", args)
	if err != nil {
		return err
	}
	res, err := a.client.Refresh(ctx, token)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *App) logout(ctx context.Context, args []string) error {
	token, err := a.refreshTokenArg("logout", args)
	if err != nil {
		return err
	}
	msg, err := a.client.Logout(ctx, token)
	if err != nil {
		return err
	}
	return a.print(map[string]string{"message": msg})
}

func (a *App) me(ctx context.Context) error {
	id, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	return a.print(id)
}

func (a *App) members(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: members needs a subcommand", errUsage)
	}

	switch args[0] {
	case "list":
		fs := newFlagSet("members list")
		var opts api.ListOptions
		fs.IntVar(&opts.Page, "page", 0, "page number, from 0")
		fs.IntVar(&opts.Size, "size", 0, "page size")
		fs.StringVar(&opts.SortBy, "sort", "", "sort field")
		fs.StringVar(&opts.Direction, "dir", "", "asc or desc")
		if err := parse(fs, args[1:]); err != nil {
			return err
		}
		page, err := a.client.ListMembers(ctx, opts)
		if err != nil {
			return err
		}
		return a.print(page)

	case "get":
		id, err := memberID(args)
		if err != nil {
			return err
		}
		m, err := a.client.GetMember(ctx, id)
		if err != nil {
			return err
		}
		return a.print(m)

	case "create":
		m, err := memberFlags("members create", args[1:])
		if err != nil {
			return err
		}
		created, err := a.client.CreateMember(ctx, m)
		if err != nil {
			return err
		}
		return a.print(created)

	case "update":
		id, err := memberID(args)
		if err != nil {
			return err
		}
		m, err := memberFlags("members update", args[2:])
		if err != nil {
			return err
		}
		updated, err := a.client.UpdateMember(ctx, id, m)
		if err != nil {
			return err
		}
		return a.print(updated)

	case "delete":
		id, err := memberID(args)
		if err != nil {
			return err
		}
		if err := a.client.DeleteMember(ctx, id); err != nil {
			return err
		}
		return a.print(map[string]string{"deleted": id})
	}

	return fmt.Errorf("%w: unknown members subcommand %q", errUsage, args[0])
}

func memberID(args []string) (string, error) {
	if len(args) < 2 || args[1] == "" {
		return "", fmt.Errorf("%w: members %s needs an id", errUsage, args[0])
	}
	return args[1], nil
}

func memberFlags(name string, args []string) (api.Member, error) {
	fs := newFlagSet(name)
	var m api.Member
	fs.StringVar(&m.Name, "name", "", "member name")
	fs.StringVar(&m.Email, "email", "", "member email")
	fs.StringVar(&m.PhoneNumber, "phone", "", "member phone number")
	if err := parse(fs, args); err != nil {
		return api.Member{}, err
	}
	return m, nil
}
