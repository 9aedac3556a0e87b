package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/hay-kot/storefront/internal/api"
	"github.com/hay-kot/storefront/internal/cartsync"
	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/printer"
	"github.com/hay-kot/storefront/internal/styles"
	"github.com/hay-kot/storefront/internal/tui"
	"github.com/urfave/cli/v3"
)

type CartCmd struct {
	flags *Flags

	// add flags
	addQty int

	// select flags
	selectAll  bool
	selectNone bool

	// clear flags
	clearYes bool
}

// NewCartCmd creates a new cart command
func NewCartCmd(flags *Flags) *CartCmd {
	return &CartCmd{flags: flags}
}

// Register adds the cart command to the application
func (cmd *CartCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "cart",
		Usage: "Manage the shopping cart",
		Description: `The cart lives on this machine and is shared by every storefront command.
When signed in, local changes are pushed to your account's server cart.

Items are selected for checkout when added. Use 'cart select' and
'cart unselect' to choose which items the next checkout buys.`,
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List cart items",
				UsageText: "storefront cart ls",
				Action:    cmd.runList,
			},
			{
				Name:      "add",
				Usage:     "Add a product to the cart",
				UsageText: "storefront cart add ID [-q N]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "quantity",
						Aliases:     []string{"q"},
						Usage:       "quantity to add",
						Value:       1,
						Destination: &cmd.addQty,
					},
				},
				Action: cmd.runAdd,
			},
			{
				Name:        "set",
				Usage:       "Set the quantity of a cart item",
				UsageText:   "storefront cart set ID N",
				Description: "Sets the quantity of an item. A quantity of 0 removes it.",
				Action:      cmd.runSet,
			},
			{
				Name:      "rm",
				Usage:     "Remove an item from the cart",
				UsageText: "storefront cart rm ID",
				Action:    cmd.runRemove,
			},
			{
				Name:      "select",
				Usage:     "Select items for checkout",
				UsageText: "storefront cart select ID... | --all",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "all",
						Usage:       "select every item",
						Destination: &cmd.selectAll,
					},
				},
				Action: cmd.runSelect(true),
			},
			{
				Name:      "unselect",
				Usage:     "Exclude items from checkout",
				UsageText: "storefront cart unselect ID... | --none",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "none",
						Usage:       "unselect every item",
						Destination: &cmd.selectNone,
					},
				},
				Action: cmd.runSelect(false),
			},
			{
				Name:      "totals",
				Usage:     "Show cart totals",
				UsageText: "storefront cart totals",
				Action:    cmd.runTotals,
			},
			{
				Name:      "clear",
				Usage:     "Remove every item from the cart",
				UsageText: "storefront cart clear [--yes]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "yes",
						Aliases:     []string{"y"},
						Usage:       "skip confirmation",
						Destination: &cmd.clearYes,
					},
				},
				Action: cmd.runClear,
			},
			{
				Name:        "sync",
				Usage:       "Reconcile the cart with your account",
				UsageText:   "storefront cart sync",
				Description: "Fetches the server cart. An empty local cart adopts it, otherwise the local cart replaces it.",
				Action:      cmd.runSync,
			},
			{
				Name:      "tui",
				Usage:     "Open the interactive cart",
				UsageText: "storefront cart tui",
				Action:    cmd.runTUI,
			},
		},
	})

	return app
}

// Run opens the interactive cart. Exported for use as default command.
func (cmd *CartCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.runTUI(ctx, c)
}

func (cmd *CartCmd) start(ctx context.Context) *cart.Store {
	svc := cmd.flags.Services
	if out := svc.StartSync(ctx); out.Err != nil {
		printer.Ctx(ctx).Warnf("Cart sync unavailable: %v", out.Err)
	}
	return svc.Cart
}

func (cmd *CartCmd) runList(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	st := cmd.start(ctx).Snapshot(ctx)

	if st.Len() == 0 {
		p.Infof("Your cart is empty")
		return nil
	}

	currency := cmd.flags.currency()
	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tID\tNAME\tPRICE\tQTY\tSUBTOTAL")
	for _, it := range st.Items {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\n",
			printer.Checkbox(st.IsSelected(it.ID)),
			it.ID,
			it.Name,
			printer.Money(currency, it.Price),
			it.Quantity,
			printer.Money(currency, it.Subtotal()),
		)
	}
	_ = w.Flush()

	p.Printf("")
	cmd.printTotals(p, st.Totals())
	return nil
}

func (cmd *CartCmd) printTotals(p *printer.Printer, t cart.Totals) {
	currency := cmd.flags.currency()
	p.Printf("Cart total:     %s", printer.Money(currency, t.OverallTotal))
	p.Printf("Selected total: %s (%d item(s))", p.Bold(printer.Money(currency, t.SelectedTotal)), t.SelectedCount)
}

func (cmd *CartCmd) runAdd(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	id, err := parseProductID(c.Args().First())
	if err != nil {
		return err
	}

	prod, err := cmd.flags.Services.API.GetProduct(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			return fmt.Errorf("product %d not found", id)
		}
		return fmt.Errorf("get product: %w", err)
	}
	if !prod.Active {
		return fmt.Errorf("product %d is not available", id)
	}

	item, err := cmd.start(ctx).AddItem(ctx, prod, cmd.addQty)
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	p.Success("Added to cart", fmt.Sprintf("%s × %d", item.Name, item.Quantity))
	return nil
}

func (cmd *CartCmd) runSet(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: storefront cart set ID N")
	}
	id, err := parseProductID(c.Args().Get(0))
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid quantity %q", c.Args().Get(1))
	}

	st, err := cmd.start(ctx).SetQuantity(ctx, id, qty)
	switch {
	case errors.Is(err, cart.ErrNotInCart):
		p.Warnf("Product %d is not in your cart", id)
		return nil
	case err != nil:
		return fmt.Errorf("update cart: %w", err)
	}

	if it, ok := st.Item(id); ok {
		p.Successf("%s quantity set to %d", it.Name, it.Quantity)
	} else {
		p.Successf("Removed product %d", id)
	}
	return nil
}

func (cmd *CartCmd) runRemove(ctx context.Context, c *cli.Command) error {
	id, err := parseProductID(c.Args().First())
	if err != nil {
		return err
	}

	if _, err := cmd.start(ctx).RemoveItem(ctx, id); err != nil {
		return fmt.Errorf("update cart: %w", err)
	}

	printer.Ctx(ctx).Successf("Removed product %d", id)
	return nil
}

func (cmd *CartCmd) runSelect(selected bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		p := printer.Ctx(ctx)
		store := cmd.start(ctx)

		bulk := cmd.selectAll
		if !selected {
			bulk = cmd.selectNone
		}

		if bulk {
			st, err := store.SetAllSelected(ctx, selected)
			if err != nil {
				return fmt.Errorf("update selection: %w", err)
			}
			cmd.printTotals(p, st.Totals())
			return nil
		}

		ids, err := parseProductIDs(c.Args().Slice())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("at least one product ID is required")
		}

		var st cart.State
		for _, id := range ids {
			st, err = store.SetSelected(ctx, id, selected)
			if err != nil {
				return fmt.Errorf("update selection: %w", err)
			}
			if _, ok := st.Item(id); !ok {
				p.Warnf("Product %d is not in your cart", id)
			}
		}

		cmd.printTotals(p, st.Totals())
		return nil
	}
}

func (cmd *CartCmd) runTotals(ctx context.Context, _ *cli.Command) error {
	cmd.printTotals(printer.Ctx(ctx), cmd.start(ctx).Totals(ctx))
	return nil
}

func (cmd *CartCmd) runClear(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)
	store := cmd.start(ctx)

	if store.Snapshot(ctx).Len() == 0 {
		p.Infof("Your cart is already empty")
		return nil
	}

	if !cmd.clearYes && interactive() {
		confirmed := false
		err := huh.NewConfirm().
			Title("Remove every item from your cart?").
			Affirmative("Clear").
			Negative("Cancel").
			Value(&confirmed).
			WithTheme(styles.FormTheme()).
			Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		if !confirmed {
			return nil
		}
	}

	if _, err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	p.Successf("Cart cleared")
	return nil
}

func (cmd *CartCmd) runSync(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)
	svc := cmd.flags.Services

	if _, ok := svc.Sessions.Token(ctx); !ok {
		p.Warnf("Not signed in. Run 'storefront login' to sync your cart")
		return nil
	}

	svc.Cart.Load(ctx)
	out := svc.Syncer.PullAndReconcile(ctx)

	switch out.Action {
	case cartsync.ActionAdoptedServer:
		p.Successf("Loaded %d item(s) from your account", out.Items)
	case cartsync.ActionPushedLocal:
		p.Successf("Saved %d item(s) to your account", out.Items)
	case cartsync.ActionNone:
		p.Infof("Nothing to sync")
	case cartsync.ActionFailed:
		return fmt.Errorf("sync cart: %w", out.Err)
	}
	return nil
}

func (cmd *CartCmd) runTUI(ctx context.Context, _ *cli.Command) error {
	store := cmd.start(ctx)

	m := tui.New(ctx, store, tui.Options{CurrencySymbol: cmd.flags.currency()})
	defer m.Close()

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	return nil
}
