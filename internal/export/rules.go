package export

import (
	"github.com/hupe1980/fieldexport/internal/config"
	"github.com/hupe1980/fieldexport/internal/layer"
)

// Attribute names every plot layer must carry.
const (
	AttrPlotID   = "Plot-ID"
	AttrComments = "Comments"
)

// RequiredCRS is the only CRS accepted for export.
const RequiredCRS = "EPSG:4326"

// Rules holds the configurable parts of validation.
type Rules struct {
	// Extent is the rectangle the layer extent must lie within.
	Extent layer.Rect
	// ExtentName is used in messages, e.g. "The Netherlands".
	ExtentName string
	// AllowDuplicatePlotIDs exempts features sharing a Plot-ID from the
	// intersection test instead of rejecting them.
	AllowDuplicatePlotIDs bool
}

// DefaultRules returns the rules for plots in the Netherlands.
func DefaultRules() Rules {
	return RulesFromConfig(config.Default())
}

// RulesFromConfig derives the rules from the loaded configuration.
func RulesFromConfig(cfg *config.Config) Rules {
	name := "the configured extent"
	if cfg.Extent == config.NetherlandsExtent {
		name = "The Netherlands"
	}

	return Rules{
		Extent: layer.Rect{
			MinX: cfg.Extent.MinLon,
			MinY: cfg.Extent.MinLat,
			MaxX: cfg.Extent.MaxLon,
			MaxY: cfg.Extent.MaxLat,
		},
		ExtentName:            name,
		AllowDuplicatePlotIDs: cfg.AllowDuplicatePlotIDs,
	}
}
