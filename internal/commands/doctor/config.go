package doctor

import (
	"context"
	"errors"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/hay-kot/storefront/internal/core/config"
)

// ConfigCheck validates the loaded configuration.
type ConfigCheck struct {
	config     *config.Config
	configPath string
}

// NewConfigCheck creates a new configuration check.
func NewConfigCheck(cfg *config.Config, configPath string) *ConfigCheck {
	return &ConfigCheck{
		config:     cfg,
		configPath: configPath,
	}
}

func (c *ConfigCheck) Name() string {
	return "Configuration"
}

func (c *ConfigCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if c.config == nil {
		result.add(CheckItem{Label: "Config loaded", Status: StatusFail, Detail: "configuration not loaded"})
		return result
	}

	if c.configPath != "" {
		if _, err := os.Stat(c.configPath); err != nil {
			result.add(CheckItem{Label: "Config file", Status: StatusPass, Detail: "not found, using defaults"})
		} else {
			result.add(CheckItem{Label: "Config file", Status: StatusPass, Detail: c.configPath})
		}
	}

	err := c.config.ValidateDeep(c.configPath)
	warnings := c.config.Warnings()

	if err == nil && len(warnings) == 0 {
		result.add(CheckItem{Label: "Config valid", Status: StatusPass})
		return result
	}

	if err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			fieldErrs = criterio.FieldErrors{{Err: err}}
		}
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "validation"
			}
			result.add(CheckItem{Label: label, Status: StatusFail, Detail: fe.Err.Error()})
		}
	}

	for _, w := range warnings {
		label := w.Category
		if w.Item != "" {
			label += " (" + w.Item + ")"
		}
		result.add(CheckItem{Label: label, Status: StatusWarn, Detail: w.Message})
	}

	return result
}
