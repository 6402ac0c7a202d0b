package config

import (
	"os"

	pkgconfig "github.com/Skotchmaster/school_admin/pkg/config"
	"github.com/Skotchmaster/school_admin/pkg/tokens"
)

type Config struct {
	ListenAddr  string
	LogLevel    string
	AuthURL     string
	UpstreamURL string

	JWTSecret     []byte
	RefreshSecret []byte
	Issuer        string
}

func Load() *Config {
	cfg := &Config{
		ListenAddr:    pkgconfig.EnvDefault("GATEWAY_ADDR", ":8080"),
		LogLevel:      pkgconfig.EnvDefault("LOG_LEVEL", "info"),
		AuthURL:       pkgconfig.MustNonEmpty(os.Getenv("AUTH_URL"), "AUTH_URL"),
		UpstreamURL:   pkgconfig.MustNonEmpty(os.Getenv("UPSTREAM_URL"), "UPSTREAM_URL"),
		JWTSecret:     pkgconfig.MustNonEmptyBytes([]byte(os.Getenv("JWT_SECRET")), "JWT_SECRET"),
		RefreshSecret: pkgconfig.MustNonEmptyBytes([]byte(os.Getenv("JWT_REFRESH_SECRET")), "JWT_REFRESH_SECRET"),
		Issuer:        os.Getenv("JWT_ISSUER"),
	}
	return cfg
}

func (c *Config) Tokens() tokens.Config {
	return tokens.Config{
		AccessSecret:  c.JWTSecret,
		RefreshSecret: c.RefreshSecret,
		Issuer:        c.Issuer,
	}
}
