package crop

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Catalog maps crop name to profile. It is read-only reference data once loaded.
type Catalog map[string]Profile

// Names returns the crop names in catalog iteration order (ascending by name).
// Ranking ties are broken by this order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the profile for a crop name.
func (c Catalog) Get(name string) (Profile, bool) {
	p, ok := c[name]
	return p, ok
}

// Len returns the number of crops in the catalog.
func (c Catalog) Len() int {
	return len(c)
}

// Validate checks the catalog is non-empty and that every profile is well formed.
// Profile names default to their map key.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCatalog
	}

	var errs []error
	for _, name := range c.Names() {
		p := c[name]
		if p.Name == "" {
			p.Name = name
			c[name] = p
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of the catalog.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for name, p := range c {
		cp := p
		cp.TemperatureRange = cloneRange(p.TemperatureRange)
		cp.PHRange = cloneRange(p.PHRange)
		cp.RainfallRange = cloneRange(p.RainfallRange)
		cp.Seasons = append([]string(nil), p.Seasons...)
		out[name] = cp
	}
	return out
}

// Decode parses a JSON-encoded catalog and validates it.
// Both a bare name→profile object and the {"crops": {...}} envelope are accepted.
func Decode(data []byte) (Catalog, error) {
	var envelope struct {
		Crops Catalog `json:"crops"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Crops) > 0 {
		if err := envelope.Crops.Validate(); err != nil {
			return nil, err
		}
		return envelope.Crops, nil
	}

	var bare Catalog
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	delete(bare, "crops")
	if err := bare.Validate(); err != nil {
		return nil, err
	}
	return bare, nil
}

// SeasonList formats a profile's seasons for display.
func (p *Profile) SeasonList() string {
	if len(p.Seasons) == 0 {
		return ""
	}
	return strings.Join(p.Seasons, ", ")
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
