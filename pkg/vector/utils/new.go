// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector/chroma"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector/sqlitevec"
)

// Provider names accepted by NewVectorDriver.
const (
	ProviderChroma    = "chroma"
	ProviderSQLiteVec = "sqlite-vec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is the Chroma URL, or the database path for sqlite-vec.
	TargetURL string

	// Dimensions is required by sqlite-vec.
	Dimensions uint

	Logger *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{URL: o.TargetURL}, o.Logger)
	case ProviderSQLiteVec:
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %q", o.ProviderType)
	}
}
