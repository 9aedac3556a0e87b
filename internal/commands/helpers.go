package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hay-kot/storefront/internal/core/cart"
	"golang.org/x/term"
)

func parseProductID(arg string) (cart.ProductID, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, fmt.Errorf("product ID is required")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product ID %q", arg)
	}
	return cart.ProductID(id), nil
}

func parseProductIDs(args []string) ([]cart.ProductID, error) {
	ids := make([]cart.ProductID, 0, len(args))
	for _, arg := range args {
		id, err := parseProductID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// interactive reports whether stdin and stdout are both terminals.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// renderMarkdown writes md to w, styled when w is a terminal.
func renderMarkdown(w io.Writer, md string) error {
	style := glamour.WithStandardStyle("notty")
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		style = glamour.WithAutoStyle()
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	_, err = io.WriteString(w, out)
	return err
}
