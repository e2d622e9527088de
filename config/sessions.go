package config

import (
	"strings"
	"time"
)

const defaultSessionKeyPrefix = "authsession:"

// SessionConfig controls the device session store.
type SessionConfig struct {
	// KeyPrefix namespaces session keys in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"authsession:"`

	// ReaperEnabled runs the background pruning of expired entries from per-user session indexes.
	ReaperEnabled  bool          `env:"SESSION_REAPER_ENABLED"  envDefault:"true"`
	ReaperInterval time.Duration `env:"SESSION_REAPER_INTERVAL" envDefault:"10m"`
	ReaperBatch    int           `env:"SESSION_REAPER_BATCH"    envDefault:"500"`
}

// Sanitize applies defaults.
func (c *SessionConfig) Sanitize() {
	if c.KeyPrefix = strings.TrimSpace(c.KeyPrefix); c.KeyPrefix == "" {
		c.KeyPrefix = defaultSessionKeyPrefix
	}
	if c.ReaperInterval < time.Minute {
		c.ReaperInterval = time.Minute
	}
	if c.ReaperBatch <= 0 {
		c.ReaperBatch = 500
	}
}

// AuditConfig controls the asynchronous audit logger.
type AuditConfig struct {
	QueueSize    int           `env:"AUDIT_QUEUE_SIZE"    envDefault:"1024"`
	WriteTimeout time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"5s"`
}

// Sanitize clamps the queue to a sane range.
func (c *AuditConfig) Sanitize() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.QueueSize > 1<<16 {
		c.QueueSize = 1 << 16
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}
