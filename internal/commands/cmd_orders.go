package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/huh"
	"github.com/hay-kot/storefront/internal/api"
	"github.com/hay-kot/storefront/internal/printer"
	"github.com/hay-kot/storefront/internal/styles"
	"github.com/urfave/cli/v3"
)

type OrdersCmd struct {
	flags *Flags

	sort      string
	cancelYes bool
}

// NewOrdersCmd creates a new orders command
func NewOrdersCmd(flags *Flags) *OrdersCmd {
	return &OrdersCmd{flags: flags}
}

// Register adds the orders command to the application
func (cmd *OrdersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "orders",
		Usage: "View and cancel your orders",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List your orders",
				UsageText: "storefront orders ls [--sort KEY]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "sort",
						Usage:       "sort order (" + strings.Join(api.SortKeys, ", ") + ")",
						Value:       api.SortDateDesc,
						Destination: &cmd.sort,
						Validator: func(s string) error {
							if !slices.Contains(api.SortKeys, s) {
								return fmt.Errorf("unknown sort %q", s)
							}
							return nil
						},
					},
				},
				Action: cmd.runList,
			},
			{
				Name:      "show",
				Usage:     "Show an order",
				UsageText: "storefront orders show ORDER_NUMBER",
				Action:    cmd.runShow,
			},
			{
				Name:        "cancel",
				Usage:       "Cancel an order",
				UsageText:   "storefront orders cancel ORDER_NUMBER [--yes]",
				Description: "Only pending and processing orders can be canceled.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "yes",
						Aliases:     []string{"y"},
						Usage:       "skip confirmation",
						Destination: &cmd.cancelYes,
					},
				},
				Action: cmd.runCancel,
			},
		},
	})

	return app
}

func orderNumberArg(c *cli.Command) (string, error) {
	n := strings.TrimSpace(c.Args().First())
	if n == "" {
		return "", fmt.Errorf("order number is required")
	}
	return n, nil
}

func (cmd *OrdersCmd) runList(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	orders, err := cmd.flags.Services.API.ListOrders(ctx)
	if err != nil {
		return ordersError("list orders", err)
	}

	if len(orders) == 0 {
		p.Infof("No orders found")
		return nil
	}

	api.SortOrders(orders, cmd.sort)

	currency := cmd.flags.currency()
	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ORDER\tDATE\tSTATUS\tITEMS\tTOTAL")
	for _, o := range orders {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			o.OrderNumber,
			o.OrderDate.Format("2006-01-02 15:04"),
			styles.Status(string(o.Status)),
			len(o.Items),
			printer.Money(currency, o.TotalAmount),
		)
	}
	_ = w.Flush()

	return nil
}

func (cmd *OrdersCmd) runShow(ctx context.Context, c *cli.Command) error {
	number, err := orderNumberArg(c)
	if err != nil {
		return err
	}

	order, err := cmd.flags.Services.API.GetOrder(ctx, number)
	if err != nil {
		return ordersError("get order", err)
	}

	return renderMarkdown(c.Root().Writer, orderMarkdown(order, cmd.flags.currency()))
}

func orderMarkdown(o api.Order, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Order %s\n\n", o.OrderNumber)
	fmt.Fprintf(&b, "**Status:** %s  \n", o.Status)
	if !o.OrderDate.IsZero() {
		fmt.Fprintf(&b, "**Placed:** %s  \n", o.OrderDate.Format("Jan 2, 2006 15:04"))
	}
	fmt.Fprintf(&b, "**Total:** %s\n\n", printer.Money(currency, o.TotalAmount))

	if o.ShippingAddress != "" {
		b.WriteString("## Shipping address\n\n")
		for _, line := range strings.Split(o.ShippingAddress, "\n") {
			b.WriteString(line + "  \n")
		}
		b.WriteString("\n")
	}

	if len(o.Items) > 0 {
		b.WriteString("| Item | Price | Qty | Subtotal |\n|---|---:|---:|---:|\n")
		for _, it := range o.Items {
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n",
				it.ProductName,
				printer.Money(currency, it.ProductPrice),
				it.Quantity,
				printer.Money(currency, it.Subtotal),
			)
		}
	}
	return b.String()
}

func (cmd *OrdersCmd) runCancel(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	client := cmd.flags.Services.API

	number, err := orderNumberArg(c)
	if err != nil {
		return err
	}

	order, err := client.GetOrder(ctx, number)
	if err != nil {
		return ordersError("get order", err)
	}
	if !order.Cancellable() {
		return fmt.Errorf("order %s is %s and can no longer be canceled", number, strings.ToLower(string(order.Status)))
	}

	if !cmd.cancelYes && interactive() {
		confirmed := false
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Cancel order %s?", number)).
			Affirmative("Cancel order").
			Negative("Keep it").
			Value(&confirmed).
			WithTheme(styles.FormTheme()).
			Run()
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return err
		}
		if !confirmed {
			return nil
		}
	}

	canceled, err := client.CancelOrder(ctx, number)
	if err != nil {
		return ordersError("cancel order", err)
	}

	p.Successf("Order %s is now %s", canceled.OrderNumber, canceled.Status)
	return nil
}

func ordersError(action string, err error) error {
	switch {
	case api.IsUnauthorized(err):
		return fmt.Errorf("%s: not signed in. Run 'storefront login' first", action)
	case api.IsNotFound(err):
		return fmt.Errorf("%s: order not found", action)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}
