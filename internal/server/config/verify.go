package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/memkv/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Redis.Host == "" {
		return errors.New("server.redis.host is required")
	}
	if cfg.Redis.Port < 0 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("server.redis.port %d out of range", cfg.Redis.Port)
	}
	if cfg.Redis.ReadTimeout <= 0 {
		return errors.New("server.redis.read_timeout must be positive")
	}
	if cfg.Redis.WriteTimeout <= 0 {
		return errors.New("server.redis.write_timeout must be positive")
	}
	if cfg.Redis.RateLimit < 0 {
		return errors.New("server.redis.rate_limit must not be negative")
	}

	if cfg.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("server.http.addr: %w", err)
		}
		if cfg.HTTP.Addr == net.JoinHostPort(cfg.Redis.Host, fmt.Sprint(cfg.Redis.Port)) {
			return errors.New("server.http.addr conflicts with the redis listener")
		}
		for _, entry := range cfg.HTTP.AllowList {
			if !validACLEntry(entry) {
				return fmt.Errorf("server.http.allow_list: %q is not an IP or CIDR", entry)
			}
		}
	}
	return nil
}

func validACLEntry(entry string) bool {
	if strings.Contains(entry, "/") {
		_, _, err := net.ParseCIDR(entry)
		return err == nil
	}
	return net.ParseIP(entry) != nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.SweepInterval <= 0 {
		return errors.New("storage.sweep_interval must be positive")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
}

// RedisAddr returns the host:port the RESP listener binds.
func (c *ServerConfig) RedisAddr() string {
	return net.JoinHostPort(c.Server.Redis.Host, fmt.Sprint(c.Server.Redis.Port))
}
