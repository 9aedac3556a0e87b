package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/hay-kot/storefront/internal/checkout"
	"github.com/hay-kot/storefront/internal/styles"
)

// CheckoutForm wraps a huh.Form collecting shipping information.
type CheckoutForm struct {
	form   *huh.Form
	values checkout.ShippingForm
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(label + " is required")
		}
		return nil
	}
}

// NewCheckoutForm creates a checkout form prefilled with initial. summary is
// shown above the fields.
func NewCheckoutForm(initial checkout.ShippingForm, summary string) *CheckoutForm {
	f := &CheckoutForm{values: initial}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Order summary").
				Description(summary),
			huh.NewInput().
				Title("Full name").
				Value(&f.values.FullName).
				Validate(required("full name")),
			huh.NewInput().
				Title("Email").
				Value(&f.values.Email).
				Validate(checkout.ValidateEmail),
			huh.NewInput().
				Title("Phone").
				Value(&f.values.Phone).
				Validate(required("phone")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Address").
				Value(&f.values.Address).
				Validate(required("address")),
			huh.NewInput().
				Title("City").
				Value(&f.values.City).
				Validate(required("city")),
			huh.NewInput().
				Title("State").
				Value(&f.values.State).
				Validate(required("state")),
			huh.NewInput().
				Title("ZIP").
				Value(&f.values.Zip).
				Validate(required("zip")),
			huh.NewInput().
				Title("Country").
				Value(&f.values.Country).
				Validate(required("country")),
		),
	).WithTheme(styles.FormTheme())

	return f
}

// Form returns the underlying huh.Form.
func (f *CheckoutForm) Form() *huh.Form {
	return f.form
}

// Run shows the form and blocks until it is submitted or aborted.
// huh.ErrUserAborted is returned when the shopper cancels.
func (f *CheckoutForm) Run() (checkout.ShippingForm, error) {
	if err := f.form.Run(); err != nil {
		return checkout.ShippingForm{}, err
	}
	return f.values.Trimmed(), nil
}
