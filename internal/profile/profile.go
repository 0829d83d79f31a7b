package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// Spec is the persisted form of one profile, keyed by id in a profiles map.
type Spec struct {
	MaxBudget     uint64       `yaml:"max_budget" json:"max_budget"`
	WarningRatio  float64      `yaml:"warning_ratio" json:"warning_ratio"`
	CriticalRatio float64      `yaml:"critical_ratio" json:"critical_ratio"`
	Tiers         []model.Tier `yaml:"tiers" json:"tiers"`
}

// file is the on-disk layout of a profiles document.
type file struct {
	Profiles map[string]Spec `yaml:"profiles"`
}

// Catalog holds validated, immutable profiles. Safe for concurrent reads;
// nothing mutates it after NewCatalog returns.
type Catalog struct {
	profiles map[string]model.Profile
	ids      []string
	hash     string
}

// NewCatalog validates every spec and builds the catalog.
// Any invalid profile fails the whole construction; there is no partial catalog.
func NewCatalog(specs map[string]Spec) (*Catalog, error) {
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	profiles := make(map[string]model.Profile, len(specs))
	ordered := make([]model.Profile, 0, len(specs))
	for _, id := range ids {
		p, err := build(id, specs[id])
		if err != nil {
			return nil, err
		}
		profiles[id] = p
		ordered = append(ordered, p)
	}

	data, err := json.Marshal(ordered)
	if err != nil {
		return nil, fmt.Errorf("profile: hash catalog: %w", err)
	}
	h := sha256.Sum256(data)

	return &Catalog{
		profiles: profiles,
		ids:      ids,
		hash:     "sha256:" + hex.EncodeToString(h[:]),
	}, nil
}

// Resolve returns the profile with the given id.
func (c *Catalog) Resolve(id string) (model.Profile, error) {
	p, ok := c.profiles[id]
	if !ok {
		return model.Profile{}, fmt.Errorf("%w: %q", model.ErrUnknownProfile, id)
	}
	// Tiers is the only reference field; hand out a copy so callers cannot
	// reach into the catalog.
	p.Tiers = append([]model.Tier(nil), p.Tiers...)
	return p, nil
}

// IDs returns the sorted profile ids.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Len returns the number of profiles.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Hash identifies the exact profile set: "sha256:<hex>" over the canonical JSON.
func (c *Catalog) Hash() string {
	return c.hash
}

// Parse decodes a profiles YAML document (root key "profiles").
func Parse(data []byte) (map[string]Spec, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if f.Profiles == nil {
		f.Profiles = make(map[string]Spec)
	}
	return f.Profiles, nil
}

// Merge overlays override onto base by id and returns base.
func Merge(base, override map[string]Spec) map[string]Spec {
	if base == nil {
		base = make(map[string]Spec, len(override))
	}
	for id, s := range override {
		base[id] = s
	}
	return base
}

// LoadFile builds a catalog from the built-ins overlaid with the profiles in path.
// Empty path yields the built-ins alone. A missing file is an error: callers
// that want defaults pass an empty path.
func LoadFile(path string) (*Catalog, error) {
	specs := Builtins()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles: %w", err)
		}
		user, err := Parse(data)
		if err != nil {
			return nil, err
		}
		Merge(specs, user)
	}
	return NewCatalog(specs)
}
