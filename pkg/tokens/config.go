package tokens

import (
	"bytes"
	"fmt"
	"time"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 14 * 24 * time.Hour
)

// Config holds the process-wide signing material. It is immutable after startup.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

func (c Config) withDefaults() Config {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	return c
}

// Validate reports ErrSigning when the secrets cannot be used to sign tokens.
func (c Config) Validate() error {
	if len(c.AccessSecret) == 0 {
		return fmt.Errorf("%w: access secret is empty", ErrSigning)
	}
	if len(c.RefreshSecret) == 0 {
		return fmt.Errorf("%w: refresh secret is empty", ErrSigning)
	}
	if bytes.Equal(c.AccessSecret, c.RefreshSecret) {
		return fmt.Errorf("%w: access and refresh secrets must differ", ErrSigning)
	}
	return nil
}
