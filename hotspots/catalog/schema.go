package catalog

// HotspotDefinition is the designer-facing configuration of a periodic
// area-effect zone. All durations are expressed in milliseconds, matching the
// server's on-wire time unit.
type HotspotDefinition struct {
	InitialDelayMs   int64    `json:"initialDelayMs" jsonschema:"title=Initial delay,description=Milliseconds from first contact to the first affect.,minimum=0"`
	RepeatIntervalMs int64    `json:"repeatIntervalMs,omitempty" jsonschema:"title=Repeat interval,description=Milliseconds between subsequent affects.,minimum=0"`
	MinAmount        int      `json:"minAmount" jsonschema:"title=Minimum amount,description=Inclusive lower bound of the per-affect magnitude; negative values heal."`
	MaxAmount        int      `json:"maxAmount" jsonschema:"title=Maximum amount,description=Inclusive upper bound of the per-affect magnitude; negative values heal."`
	RepeatCount      int      `json:"repeatCount" jsonschema:"title=Repeat count,description=-1 repeats while touching; 0 affects exactly once; n affects up to n+1 times.,minimum=-1"`
	Channel          string   `json:"channel" jsonschema:"title=Stat channel,description=Stat pool the affect targets.,enum=health,enum=stamina,enum=mana"`
	TargetCategories []string `json:"targetCategories,omitempty" jsonschema:"title=Target categories,description=Entity categories the hotspot affects; empty accepts all."`
	X                float64  `json:"x" jsonschema:"title=X,description=World-space left edge of the zone."`
	Y                float64  `json:"y" jsonschema:"title=Y,description=World-space top edge of the zone."`
	Width            float64  `json:"width" jsonschema:"title=Width,minimum=1"`
	Height           float64  `json:"height" jsonschema:"title=Height,minimum=1"`
}

// EntryDocument represents a single catalog entry as it appears on disk. The
// struct is exported so tooling (e.g. schema generators) can reflect over the
// configuration contract shared with designers.
type EntryDocument struct {
	ID         string            `json:"id" jsonschema:"title=Catalog entry id,description=Designer-facing identifier for the hotspot placement.,pattern=^[a-z0-9-]+$,minLength=1,required"`
	Definition HotspotDefinition `json:"definition" jsonschema:"title=Hotspot definition,description=Authoritative zone configuration resolved at spawn time.,required"`
}

// FileDefinitions represents the canonical array format of
// config/hotspots.json; the loader also accepts an object keyed by entry ID.
type FileDefinitions []EntryDocument
