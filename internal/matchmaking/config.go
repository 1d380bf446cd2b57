package matchmaking

import "time"

// Default timings, used for any Config field left at zero.
const (
	DefaultQueueStaleTimeout     = 300 * time.Second
	DefaultMatchStaleTimeout     = 600 * time.Second
	DefaultDisconnectGraceWindow = 20 * time.Second
	DefaultHeartbeatTimeout      = 15 * time.Second
	DefaultLivenessProbeInterval = 30 * time.Second
	DefaultSweepInterval         = 60 * time.Second
)

// Config holds the timing policy of the matchmaking core.
type Config struct {
	QueueStaleTimeout     time.Duration `mapstructure:"queue_stale_timeout"`
	MatchStaleTimeout     time.Duration `mapstructure:"match_stale_timeout"`
	DisconnectGraceWindow time.Duration `mapstructure:"disconnect_grace_window"`
	HeartbeatTimeout      time.Duration `mapstructure:"heartbeat_timeout"`
	LivenessProbeInterval time.Duration `mapstructure:"liveness_probe_interval"`
	SweepInterval         time.Duration `mapstructure:"sweep_interval"`
}

func DefaultConfig() Config {
	return Config{
		QueueStaleTimeout:     DefaultQueueStaleTimeout,
		MatchStaleTimeout:     DefaultMatchStaleTimeout,
		DisconnectGraceWindow: DefaultDisconnectGraceWindow,
		HeartbeatTimeout:      DefaultHeartbeatTimeout,
		LivenessProbeInterval: DefaultLivenessProbeInterval,
		SweepInterval:         DefaultSweepInterval,
	}
}

// WithDefaults returns c with every non-positive field replaced by its default.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.QueueStaleTimeout <= 0 {
		c.QueueStaleTimeout = d.QueueStaleTimeout
	}
	if c.MatchStaleTimeout <= 0 {
		c.MatchStaleTimeout = d.MatchStaleTimeout
	}
	if c.DisconnectGraceWindow <= 0 {
		c.DisconnectGraceWindow = d.DisconnectGraceWindow
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.LivenessProbeInterval <= 0 {
		c.LivenessProbeInterval = d.LivenessProbeInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	return c
}
