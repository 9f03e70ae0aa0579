package config

// EventsConfig controls lifecycle event publishing.
type EventsConfig struct {
	// Enabled turns on Redis pub/sub publishing. When false every event is
	// discarded.
	Enabled bool `env:"ENABLED" envDefault:"false"`

	// Channel is the pub/sub channel events are published on.
	Channel string `env:"CHANNEL" envDefault:"jobkeeper:events"`
}
