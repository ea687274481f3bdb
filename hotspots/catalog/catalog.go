package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"

	"hearth-and-harm/server/stats"
)

// Categories a definition may filter on. The set is closed; the simulation
// resolves these names to its own entity categories at spawn time.
var knownCategories = map[string]struct{}{
	"player":   {},
	"npc":      {},
	"creature": {},
	"item":     {},
}

var entryIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Entry is a resolved, validated catalog entry.
type Entry struct {
	ID         string
	Definition HotspotDefinition
}

// Catalog holds the validated entries in a stable order.
type Catalog struct {
	entries map[string]Entry
	order   []string
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return cat, nil
}

// Parse accepts either the canonical array format or an object keyed by entry
// ID. Every entry is validated up front; a misconfigured definition fails the
// whole load rather than surfacing mid-simulation.
func Parse(data []byte) (*Catalog, error) {
	var docs []EntryDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		keyed := map[string]EntryDocument{}
		if objErr := json.Unmarshal(data, &keyed); objErr != nil {
			return nil, fmt.Errorf("not an entry array or keyed object: %w", err)
		}
		ids := make([]string, 0, len(keyed))
		for id := range keyed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			doc := keyed[id]
			if doc.ID == "" {
				doc.ID = id
			}
			docs = append(docs, doc)
		}
	}

	cat := &Catalog{entries: make(map[string]Entry, len(docs))}
	for i, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if !entryIDPattern.MatchString(doc.ID) {
			return nil, fmt.Errorf("entry %q: id must match %s", doc.ID, entryIDPattern)
		}
		if _, dup := cat.entries[doc.ID]; dup {
			return nil, fmt.Errorf("entry %q: duplicate id", doc.ID)
		}
		if err := ValidateDefinition(doc.Definition); err != nil {
			return nil, fmt.Errorf("entry %q: %w", doc.ID, err)
		}
		cat.entries[doc.ID] = Entry{ID: doc.ID, Definition: doc.Definition}
		cat.order = append(cat.order, doc.ID)
	}
	return cat, nil
}

// ValidateDefinition enforces the authoring-time bounds. This is the one
// place the magnitude range is checked; the simulation trusts loaded entries.
func ValidateDefinition(def HotspotDefinition) error {
	if def.InitialDelayMs < 0 {
		return fmt.Errorf("initialDelayMs %d must not be negative", def.InitialDelayMs)
	}
	if def.RepeatIntervalMs < 0 {
		return fmt.Errorf("repeatIntervalMs %d must not be negative", def.RepeatIntervalMs)
	}
	if def.RepeatCount < -1 {
		return fmt.Errorf("repeatCount %d must be -1, 0, or positive", def.RepeatCount)
	}
	if def.RepeatCount != 0 && def.RepeatIntervalMs == 0 {
		return fmt.Errorf("repeatIntervalMs must be positive when the affect repeats")
	}
	if def.MinAmount > def.MaxAmount {
		return fmt.Errorf("minAmount %d exceeds maxAmount %d", def.MinAmount, def.MaxAmount)
	}
	if _, err := stats.ParseChannel(def.Channel); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(def.TargetCategories))
	for _, category := range def.TargetCategories {
		if _, ok := knownCategories[category]; !ok {
			return fmt.Errorf("unknown target category %q", category)
		}
		if _, dup := seen[category]; dup {
			return fmt.Errorf("duplicate target category %q", category)
		}
		seen[category] = struct{}{}
	}
	if def.Width <= 0 || def.Height <= 0 {
		return fmt.Errorf("zone extents %gx%g must be positive", def.Width, def.Height)
	}
	return nil
}

// Get returns the entry for the ID.
func (c *Catalog) Get(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	entry, ok := c.entries[id]
	return entry, ok
}

// IDs returns entry IDs in file order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Entries returns all entries in file order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	entries := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		entries = append(entries, c.entries[id])
	}
	return entries
}
