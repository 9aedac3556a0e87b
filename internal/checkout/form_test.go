package checkout

import (
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() ShippingForm {
	return ShippingForm{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "555-0100",
		Address:  "12 Analytical Way",
		City:     "London",
		State:    "LDN",
		Zip:      "N1 9GU",
		Country:  "UK",
	}
}

func TestShippingForm_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(f *ShippingForm)
		wantFields []string
	}{
		{
			name:   "valid",
			mutate: func(*ShippingForm) {},
		},
		{
			name:       "missing name",
			mutate:     func(f *ShippingForm) { f.FullName = "  " },
			wantFields: []string{"fullName"},
		},
		{
			name: "several missing",
			mutate: func(f *ShippingForm) {
				f.City = ""
				f.Zip = ""
			},
			wantFields: []string{"city", "zip"},
		},
		{
			name:       "bad email",
			mutate:     func(f *ShippingForm) { f.Email = "ada@example" },
			wantFields: []string{"email"},
		},
		{
			name:       "email with spaces",
			mutate:     func(f *ShippingForm) { f.Email = "ada lovelace@example.com" },
			wantFields: []string{"email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			err := f.Validate()
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			fields := make([]string, len(fieldErrs))
			for i, fe := range fieldErrs {
				fields[i] = fe.Field
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail(" a@b.co "))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("a@b"))
}

func TestShippingForm_FormatAddress(t *testing.T) {
	want := "Ada Lovelace\n12 Analytical Way\nLondon, LDN N1 9GU\nUK\nPhone: 555-0100\nEmail: ada@example.com"
	assert.Equal(t, want, validForm().FormatAddress())
}
