package era

import (
	"errors"
	"sort"
)

// Config describes one playable era. These three fields, together with the
// account's entitlement rows, are the entire input access resolution needs.
type Config struct {
	Identifier     string `json:"identifier"`
	PassesRequired int    `json:"passes_required"`
	Exclusive      bool   `json:"exclusive"`
	ExclusiveLabel string `json:"exclusive_label,omitempty"`
}

var ErrUnknownEra = errors.New("unknown_era")

// Catalog is the read-only registry of playable eras.
type Catalog struct {
	byIdentifier map[string]Config
}

func NewCatalog(configs []Config) *Catalog {
	byID := make(map[string]Config, len(configs))
	for _, cfg := range configs {
		byID[cfg.Identifier] = cfg
	}
	return &Catalog{byIdentifier: byID}
}

func (c *Catalog) Get(identifier string) (Config, error) {
	cfg, ok := c.byIdentifier[identifier]
	if !ok {
		return Config{}, ErrUnknownEra
	}
	return cfg, nil
}

func (c *Catalog) List() []Config {
	out := make([]Config, 0, len(c.byIdentifier))
	for _, cfg := range c.byIdentifier {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// defaultConfigs mirrors the launch-era lineup. Exclusive eras cannot be
// bought piecemeal with passes; they need a purchase or a matching voucher.
func defaultConfigs() []Config {
	return []Config{
		{Identifier: "wooden-ships", PassesRequired: 0},
		{Identifier: "ironclads", PassesRequired: 1},
		{Identifier: "dreadnoughts", PassesRequired: 2},
		{Identifier: "midway-island", PassesRequired: 3},
		{Identifier: "pirates", Exclusive: true, ExclusiveLabel: "Pirate Fleet Pack"},
	}
}
