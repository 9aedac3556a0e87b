package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/hay-kot/storefront/internal/api"
)

// Catalog is the part of the API client the backend check needs.
type Catalog interface {
	BaseURL() string
	ListProducts(ctx context.Context, page api.Page) (api.ProductPage, error)
}

// BackendCheck verifies the backend answers catalog requests.
type BackendCheck struct {
	catalog Catalog
	timeout time.Duration
}

// NewBackendCheck creates a new backend check. A zero timeout defaults to
// five seconds.
func NewBackendCheck(catalog Catalog, timeout time.Duration) *BackendCheck {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BackendCheck{catalog: catalog, timeout: timeout}
}

func (c *BackendCheck) Name() string {
	return "Backend"
}

func (c *BackendCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	page, err := c.catalog.ListProducts(ctx, api.Page{Number: 1, Size: 1})
	if err != nil {
		result.add(CheckItem{Label: "Reachable", Status: StatusFail, Detail: fmt.Sprintf("%s: %v", c.catalog.BaseURL(), err)})
		return result
	}

	result.add(CheckItem{
		Label:  "Reachable",
		Status: StatusPass,
		Detail: fmt.Sprintf("%s (%s)", c.catalog.BaseURL(), time.Since(start).Round(time.Millisecond)),
	})

	if page.Total == 0 {
		result.add(CheckItem{Label: "Catalog", Status: StatusWarn, Detail: "no active products"})
	} else {
		result.add(CheckItem{Label: "Catalog", Status: StatusPass, Detail: fmt.Sprintf("%d active product(s)", page.Total)})
	}

	return result
}
