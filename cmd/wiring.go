package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/store"
	"github.com/kozaktomas/facefind/internal/store/postgres"
)

// openStore opens the embedding store selected by STORE_BACKEND.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		st, err := store.Open(cfg.Store.FilePath)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return st, nil
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for the postgres backend")
		}
		st, err := postgres.Open(&cfg.Store, cfg.Embedding.Dim)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (expected \"file\" or \"postgres\")", cfg.Store.Backend)
	}
}

func newProvider(cfg *config.Config) embedding.Provider {
	return embedding.NewHTTPProvider(cfg.Embedding.URL, cfg.Embedding.Dim, cfg.Embedding.Timeout)
}
