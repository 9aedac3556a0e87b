// Package store selects the key/value backend named by the configuration.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hay-kot/storefront/internal/core/config"
	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/hay-kot/storefront/internal/store/jsonfile"
	"github.com/hay-kot/storefront/internal/store/sqlite"
	"github.com/rs/zerolog"
)

// Opened is a ready kv.Store together with its release function.
type Opened struct {
	kv.Store
	Driver string
	Path   string
	close  func() error
}

// Close releases the backend. It is safe to call on a zero Opened.
func (o Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Open opens the backend configured in cfg.Storage.
func Open(cfg *config.Config, log zerolog.Logger) (Opened, error) {
	path := cfg.StorageFile()

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Opened{}, fmt.Errorf("create data directory: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return Opened{}, err
		}
		log.Debug().Str("path", path).Msg("opened sqlite storage")
		return Opened{Store: db, Driver: config.DriverSQLite, Path: path, close: db.Close}, nil

	case config.DriverJSONFile, "":
		return Opened{Store: jsonfile.NewKVStore(path, log), Driver: config.DriverJSONFile, Path: path}, nil

	default:
		return Opened{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
