// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/persistence/postgresql"
	"github.com/dukex/autoflow/pkg/persistence/redisstore"
)

// ErrUnsupportedProvider is returned for URLs whose scheme has no backend.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// NewPersistence opens the store behind databaseURL (file:// or postgres://).
// When resumeStoreURL is set, scheduled resumes are kept in that Redis instead.
func NewPersistence(
	ctx context.Context,
	logger *slog.Logger,
	databaseURL string,
	resumeStoreURL string,
) (persistence.Persistence, error) {
	base, err := newBasePersistence(ctx, logger, databaseURL)
	if err != nil {
		return nil, err
	}

	if resumeStoreURL == "" {
		return base, nil
	}

	if scheme(resumeStoreURL) != "redis" && scheme(resumeStoreURL) != "rediss" {
		_ = base.Close(ctx)

		return nil, fmt.Errorf("%w: resume store %s", ErrUnsupportedProvider, scheme(resumeStoreURL))
	}

	resumes, closer, err := redisstore.Connect(ctx, logger, resumeStoreURL)
	if err != nil {
		_ = base.Close(ctx)

		return nil, err
	}

	return persistence.WithResumeRepository(base, resumes, closer), nil
}

func newBasePersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch scheme(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file", "":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("%w: database %s", ErrUnsupportedProvider, scheme(databaseURL))
	}
}

func scheme(url string) string {
	name, _, found := strings.Cut(url, "://")
	if !found {
		return ""
	}

	return strings.ToLower(name)
}
