package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/hay-kot/storefront/internal/api"
	"github.com/hay-kot/storefront/internal/printer"
	"github.com/urfave/cli/v3"
)

type ProductsCmd struct {
	flags *Flags
	page  int
	size  int
}

// NewProductsCmd creates a new products command
func NewProductsCmd(flags *Flags) *ProductsCmd {
	return &ProductsCmd{flags: flags}
}

// Register adds the products command to the application
func (cmd *ProductsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "products",
		Usage: "Browse the catalog",
		Commands: []*cli.Command{
			{
				Name:        "ls",
				Usage:       "List active products",
				UsageText:   "storefront products ls [--page N] [--size N]",
				Description: "Lists one page of the active catalog.",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "page",
						Usage:       "page number, starting at 1",
						Value:       1,
						Destination: &cmd.page,
					},
					&cli.IntFlag{
						Name:        "size",
						Usage:       "products per page",
						Value:       api.DefaultPageSize,
						Destination: &cmd.size,
					},
				},
				Action: cmd.runList,
			},
			{
				Name:      "show",
				Usage:     "Show a product",
				UsageText: "storefront products show ID",
				Action:    cmd.runShow,
			},
		},
	})

	return app
}

func (cmd *ProductsCmd) runList(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	currency := cmd.flags.currency()

	page, err := cmd.flags.Services.API.ListProducts(ctx, api.Page{Number: cmd.page, Size: cmd.size})
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	if len(page.Items) == 0 {
		p.Infof("No products found")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPRICE")
	for _, prod := range page.Items {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", prod.ID, prod.Name, printer.Money(currency, prod.Price))
	}
	_ = w.Flush()

	p.Printf("")
	p.Printf("Page %d of %d (%d products)", page.Page, page.Pages, page.Total)
	return nil
}

func (cmd *ProductsCmd) runShow(ctx context.Context, c *cli.Command) error {
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

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", prod.Name)
	fmt.Fprintf(&b, "**Price:** %s  \n", printer.Money(cmd.flags.currency(), prod.Price))
	fmt.Fprintf(&b, "**Product ID:** %d\n\n", prod.ID)
	if prod.Description != "" {
		b.WriteString(prod.Description + "\n")
	}
	if !prod.Active {
		b.WriteString("\n> This product is no longer available.\n")
	}

	return renderMarkdown(c.Root().Writer, b.String())
}
