package stats

import "fmt"

// Channel identifies a stat pool an affect can target.
type Channel string

const (
	ChannelHealth  Channel = "health"
	ChannelStamina Channel = "stamina"
	ChannelMana    Channel = "mana"
)

// ParseChannel resolves a designer-authored channel name.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(raw) {
	case ChannelHealth, ChannelStamina, ChannelMana:
		return Channel(raw), nil
	}
	return "", fmt.Errorf("stats: unknown channel %q", raw)
}

// Block holds the stat pools an entity actually carries. Channels absent from
// the block are unsupported for that entity; Apply reports that instead of
// inventing a pool, so callers never special-case entity kinds themselves.
type Block struct {
	values   map[Channel]int
	maximums map[Channel]int
}

// NewBlock builds a block with each listed channel at its maximum.
func NewBlock(maximums map[Channel]int) *Block {
	values := make(map[Channel]int, len(maximums))
	caps := make(map[Channel]int, len(maximums))
	for ch, max := range maximums {
		if max < 0 {
			max = 0
		}
		caps[ch] = max
		values[ch] = max
	}
	return &Block{values: values, maximums: caps}
}

// Supports reports whether the block carries the channel.
func (b *Block) Supports(ch Channel) bool {
	if b == nil {
		return false
	}
	_, ok := b.maximums[ch]
	return ok
}

// Apply subtracts amount from the channel (negative amounts heal), clamped to
// [0, max]. Returns the resulting value and whether the channel is supported.
func (b *Block) Apply(ch Channel, amount int) (int, bool) {
	if b == nil {
		return 0, false
	}
	max, ok := b.maximums[ch]
	if !ok {
		return 0, false
	}
	value := b.values[ch] - amount
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	b.values[ch] = value
	return value, true
}

// Get returns the current value of the channel, zero when unsupported.
func (b *Block) Get(ch Channel) int {
	if b == nil {
		return 0
	}
	return b.values[ch]
}

// Max returns the channel's maximum, zero when unsupported.
func (b *Block) Max(ch Channel) int {
	if b == nil {
		return 0
	}
	return b.maximums[ch]
}

// Snapshot copies the current values keyed by channel name for wire payloads.
func (b *Block) Snapshot() map[string]int {
	if b == nil || len(b.values) == 0 {
		return nil
	}
	out := make(map[string]int, len(b.values))
	for ch, v := range b.values {
		out[string(ch)] = v
	}
	return out
}
