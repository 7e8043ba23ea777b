package game

import (
	"time"

	"github.com/cb-v4s/ghoulies/internal/iso"
)

// Config collects the tunables that used to be magic numbers scattered
// through the room code. Zero values are filled in from DefaultConfig.
type Config struct {
	GridSize int
	Geometry iso.Geometry

	// DebounceWindow is the quiet period before a movement intent goes
	// out on the wire.
	DebounceWindow time.Duration

	// ChatTTL is how long a message stays in the chat log; BubbleTTL is
	// the shorter time it floats above the sender's head.
	ChatTTL   time.Duration
	BubbleTTL time.Duration

	// PurgeInterval is the cadence of the expired-message sweep.
	PurgeInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		GridSize: 10,
		Geometry: iso.Geometry{
			TileWidth:     74,
			TileHeight:    44,
			OverlapWidth:  2,
			OverlapHeight: 2,
		},
		DebounceWindow: 200 * time.Millisecond,
		ChatTTL:        20 * time.Second,
		BubbleTTL:      7 * time.Second,
		PurgeInterval:  time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.GridSize == 0 {
		c.GridSize = def.GridSize
	}
	if c.Geometry == (iso.Geometry{}) {
		c.Geometry = def.Geometry
	}
	if c.DebounceWindow == 0 {
		c.DebounceWindow = def.DebounceWindow
	}
	if c.ChatTTL == 0 {
		c.ChatTTL = def.ChatTTL
	}
	if c.BubbleTTL == 0 {
		c.BubbleTTL = def.BubbleTTL
	}
	if c.PurgeInterval == 0 {
		c.PurgeInterval = def.PurgeInterval
	}
	return c
}
