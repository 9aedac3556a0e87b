package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/hay-kot/storefront/internal/api"
	"github.com/hay-kot/storefront/internal/cartsync"
	"github.com/hay-kot/storefront/internal/core/session"
	"github.com/hay-kot/storefront/internal/printer"
	"github.com/hay-kot/storefront/internal/styles"
	"github.com/urfave/cli/v3"
)

type AuthCmd struct {
	flags *Flags
	creds api.Credentials
}

// NewAuthCmd creates the login, register, logout and whoami commands
func NewAuthCmd(flags *Flags) *AuthCmd {
	return &AuthCmd{flags: flags}
}

// Register adds the auth commands to the application
func (cmd *AuthCmd) Register(app *cli.Command) *cli.Command {
	credFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Usage:       "account username",
				Sources:     cli.EnvVars("STOREFRONT_USERNAME"),
				Destination: &cmd.creds.Username,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "account password (prompted when omitted)",
				Sources:     cli.EnvVars("STOREFRONT_PASSWORD"),
				Destination: &cmd.creds.Password,
			},
		}
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in to your account",
			UsageText: "storefront login [-u USERNAME]",
			Description: `Signs in and reconciles the local cart with your account: an empty local
cart loads the saved one, otherwise the local cart is saved to your account.`,
			Flags:  credFlags(),
			Action: cmd.runLogin,
		},
		&cli.Command{
			Name:      "register",
			Usage:     "Create an account and sign in",
			UsageText: "storefront register [-u USERNAME]",
			Flags:     credFlags(),
			Action:    cmd.runRegister,
		},
		&cli.Command{
			Name:        "logout",
			Usage:       "Sign out",
			UsageText:   "storefront logout",
			Description: "Forgets the session. The local cart is kept.",
			Action:      cmd.runLogout,
		},
		&cli.Command{
			Name:      "whoami",
			Usage:     "Show the signed-in account",
			UsageText: "storefront whoami",
			Action:    cmd.runWhoami,
		},
	)

	return app
}

func (cmd *AuthCmd) credentials(title string) (api.Credentials, error) {
	creds := api.Credentials{
		Username: strings.TrimSpace(cmd.creds.Username),
		Password: cmd.creds.Password,
	}
	if creds.Username != "" && creds.Password != "" {
		return creds, nil
	}
	if !interactive() {
		return api.Credentials{}, fmt.Errorf("--username and --password are required")
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Description("Username").
				Value(&creds.Username).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("username is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	).WithTheme(styles.FormTheme()).Run()
	if err != nil {
		return api.Credentials{}, err
	}

	creds.Username = strings.TrimSpace(creds.Username)
	return creds, nil
}

func (cmd *AuthCmd) runLogin(ctx context.Context, _ *cli.Command) error {
	creds, err := cmd.credentials("Sign in")
	if err != nil {
		return err
	}
	return cmd.signIn(ctx, creds)
}

func (cmd *AuthCmd) runRegister(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	creds, err := cmd.credentials("Create account")
	if err != nil {
		return err
	}

	user, err := cmd.flags.Services.API.Register(ctx, creds)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	p.Successf("Account %s created", user.Username)

	return cmd.signIn(ctx, creds)
}

// signIn saves the session, reconciles the cart with the account and follows
// a pending login redirect.
func (cmd *AuthCmd) signIn(ctx context.Context, creds api.Credentials) error {
	p := printer.Ctx(ctx)
	svc := cmd.flags.Services

	sess, err := svc.API.Login(ctx, creds)
	if err != nil {
		if api.IsUnauthorized(err) {
			return fmt.Errorf("login: invalid username or password")
		}
		return fmt.Errorf("login: %w", err)
	}

	if err := svc.Sessions.Save(ctx, sess); err != nil {
		return err
	}
	p.Successf("Signed in as %s", sess.User.Username)

	out := svc.StartSync(ctx)
	switch out.Action {
	case cartsync.ActionAdoptedServer:
		p.Infof("Loaded %d item(s) from your saved cart", out.Items)
	case cartsync.ActionPushedLocal:
		p.Infof("Saved %d cart item(s) to your account", out.Items)
	case cartsync.ActionFailed:
		p.Warnf("Cart sync failed: %v", out.Err)
	}

	if target, ok := svc.Sessions.ConsumeRedirect(ctx); ok && target == session.RedirectCheckout {
		p.Printf("")
		p.Printf("Continue your order with 'storefront checkout'")
	}

	return nil
}

func (cmd *AuthCmd) runLogout(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	if _, ok := cmd.flags.Services.Sessions.Current(ctx); !ok {
		p.Infof("Not signed in")
		return nil
	}

	if err := cmd.flags.Services.Sessions.Logout(ctx); err != nil {
		return err
	}

	p.Successf("Signed out")
	return nil
}

func (cmd *AuthCmd) runWhoami(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, ok := cmd.flags.Services.Sessions.Current(ctx)
	if !ok {
		p.Infof("Not signed in")
		return cli.Exit("", 1)
	}

	name := sess.User.Username
	if name == "" {
		name = "unknown user"
	}
	p.Printf("%s (id %d)", p.Bold(name), sess.User.ID)

	if exp, ok := sess.ExpiresAt(); ok {
		if left := time.Until(exp); left > 0 {
			p.Printf("Session expires %s (in %s)", exp.Local().Format("Jan 2 15:04"), left.Round(time.Minute))
		} else {
			p.Warnf("Session expired %s. Run 'storefront login' again", exp.Local().Format("Jan 2 15:04"))
		}
	}

	return nil
}
