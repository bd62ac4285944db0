package app

import (
	"github.com/charlesng35/mediacache/internal/eviction"
	"github.com/charlesng35/mediacache/internal/upstream"
)

// ClientConfig converts the origin section into upstream.ClientConfig.
func (c OriginConfig) ClientConfig() upstream.ClientConfig {
	return upstream.ClientConfig{
		BaseURL:       c.BaseURL,
		Referer:       c.Referer,
		HeaderTimeout: c.Timeout,
	}
}

// TokenPolicy converts cooldown settings into upstream.TokenPolicy.
func (c OriginConfig) TokenPolicy() upstream.TokenPolicy {
	return upstream.TokenPolicy{
		Cooldown:          c.Cooldown,
		RateLimitCooldown: c.RateLimitCooldown,
		AuthCooldown:      c.AuthCooldown,
		MaxFailures:       c.MaxFailures,
		FailureWindow:     c.FailureWindow,
	}
}

// Policy parses the raw eviction knobs.
func (c EvictionConfig) Policy() eviction.Policy {
	return eviction.ParsePolicy(c.TTLDays, c.BatchSize)
}

// Defaults returns the settings used until an operator overrides them.
func (c SettingsConfig) Defaults() upstream.Settings {
	headers := make(map[string]string, len(c.ExtraHeaders))
	for name, value := range c.ExtraHeaders {
		headers[name] = value
	}
	return upstream.Settings{
		ImageMaxSizeMB: c.ImageMaxSizeMB,
		VideoMaxSizeMB: c.VideoMaxSizeMB,
		CFClearance:    c.CFClearance,
		UserAgent:      c.UserAgent,
		ExtraHeaders:   headers,
	}
}
