package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/hay-kot/storefront/internal/checkout"
	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/core/session"
	"github.com/hay-kot/storefront/internal/printer"
	"github.com/hay-kot/storefront/internal/tui"
	"github.com/urfave/cli/v3"
)

type CheckoutCmd struct {
	flags *Flags
	form  checkout.ShippingForm
}

// NewCheckoutCmd creates a new checkout command
func NewCheckoutCmd(flags *Flags) *CheckoutCmd {
	return &CheckoutCmd{flags: flags}
}

// Register adds the checkout command to the application
func (cmd *CheckoutCmd) Register(app *cli.Command) *cli.Command {
	field := func(name, usage string, dst *string) cli.Flag {
		return &cli.StringFlag{Name: name, Usage: usage, Destination: dst}
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "checkout",
		Usage:     "Place an order for the selected cart items",
		UsageText: "storefront checkout [--name --email --phone --address --city --state --zip --country]",
		Description: `Places an order for the selected cart items and removes them from the cart.

Shipping details missing from the flags are asked for interactively when
running in a terminal. You must be signed in.`,
		Flags: []cli.Flag{
			field("name", "full name", &cmd.form.FullName),
			field("email", "email address", &cmd.form.Email),
			field("phone", "phone number", &cmd.form.Phone),
			field("address", "street address", &cmd.form.Address),
			field("city", "city", &cmd.form.City),
			field("state", "state or region", &cmd.form.State),
			field("zip", "postal code", &cmd.form.Zip),
			field("country", "country", &cmd.form.Country),
		},
		Action: cmd.run,
		Commands: []*cli.Command{
			{
				Name:      "last",
				Usage:     "Show the most recent order confirmation",
				UsageText: "storefront checkout last",
				Action:    cmd.runLast,
			},
		},
	})

	return app
}

func (cmd *CheckoutCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	svc := cmd.flags.Services

	if out := svc.StartSync(ctx); out.Err != nil {
		p.Warnf("Cart sync unavailable: %v", out.Err)
	}

	if _, ok := svc.Sessions.Token(ctx); !ok {
		if err := svc.Sessions.SetRedirect(ctx, session.RedirectCheckout); err != nil {
			return err
		}
		p.Printf("Run 'storefront login' and you will be sent back to checkout.")
		return checkout.ErrNotAuthenticated
	}

	selected := svc.Cart.SelectedItems(ctx)
	if len(selected) == 0 {
		return checkout.ErrNothingSelected
	}

	form := cmd.form.Trimmed()
	if err := form.Validate(); err != nil {
		if !interactive() {
			return err
		}

		form, err = tui.NewCheckoutForm(form, cmd.summary(selected)).Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				p.Infof("Checkout canceled")
				return nil
			}
			return err
		}
	}

	conf, err := svc.Checkout.PlaceOrder(ctx, form)
	if err != nil {
		if errors.Is(err, checkout.ErrNotAuthenticated) {
			p.Printf("Your session has expired. Run 'storefront login' to continue.")
		}
		return err
	}

	if err := renderMarkdown(c.Root().Writer, conf.Markdown(cmd.flags.currency())); err != nil {
		return err
	}
	if conf.CartNotCleared {
		p.Warnf("Order %s was placed, but the purchased items are still in your cart. Remove them with 'storefront cart rm' before ordering again.", conf.OrderNumber)
	}
	return nil
}

func (cmd *CheckoutCmd) summary(items []cart.CartItem) string {
	currency := cmd.flags.currency()

	var (
		b     strings.Builder
		total = cart.State{Items: items}.Totals().OverallTotal
	)
	for _, it := range items {
		fmt.Fprintf(&b, "%s × %d  %s\n", it.Name, it.Quantity, printer.Money(currency, it.Subtotal()))
	}
	fmt.Fprintf(&b, "\nTotal: %s", printer.Money(currency, total))
	return b.String()
}

func (cmd *CheckoutCmd) runLast(ctx context.Context, c *cli.Command) error {
	conf, ok := cmd.flags.Services.Checkout.LastConfirmation(ctx)
	if !ok {
		printer.Ctx(ctx).Infof("No recent order")
		return nil
	}
	return renderMarkdown(c.Root().Writer, conf.Markdown(cmd.flags.currency()))
}
