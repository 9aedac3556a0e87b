package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hay-kot/criterio"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ShippingForm is the shipping information collected at checkout.
type ShippingForm struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (f ShippingForm) Trimmed() ShippingForm {
	return ShippingForm{
		FullName: strings.TrimSpace(f.FullName),
		Email:    strings.TrimSpace(f.Email),
		Phone:    strings.TrimSpace(f.Phone),
		Address:  strings.TrimSpace(f.Address),
		City:     strings.TrimSpace(f.City),
		State:    strings.TrimSpace(f.State),
		Zip:      strings.TrimSpace(f.Zip),
		Country:  strings.TrimSpace(f.Country),
	}
}

var errRequired = errors.New("is required")

// Validate checks every field is present and the email is well formed.
func (f ShippingForm) Validate() error {
	f = f.Trimmed()

	var errs criterio.FieldErrorsBuilder
	for _, field := range []struct {
		name  string
		value string
	}{
		{"fullName", f.FullName},
		{"email", f.Email},
		{"phone", f.Phone},
		{"address", f.Address},
		{"city", f.City},
		{"state", f.State},
		{"zip", f.Zip},
		{"country", f.Country},
	} {
		if field.value == "" {
			errs = errs.Append(field.name, errRequired)
		}
	}

	if f.Email != "" && !emailRe.MatchString(f.Email) {
		errs = errs.Append("email", fmt.Errorf("%q is not a valid email address", f.Email))
	}

	return errs.ToError()
}

// ValidateEmail is the email rule on its own, for interactive inputs.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errRequired
	}
	if !emailRe.MatchString(s) {
		return fmt.Errorf("%q is not a valid email address", s)
	}
	return nil
}

// FormatAddress renders the form as the multi-line address sent with the order.
func (f ShippingForm) FormatAddress() string {
	f = f.Trimmed()
	return fmt.Sprintf("%s\n%s\n%s, %s %s\n%s\nPhone: %s\nEmail: %s",
		f.FullName, f.Address, f.City, f.State, f.Zip, f.Country, f.Phone, f.Email)
}
