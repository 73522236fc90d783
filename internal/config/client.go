package config

import (
	"fmt"
	"strings"
	"time"
)

// ClientConfig configures the ad delivery client.
type ClientConfig struct {
	APIURL               string        `yaml:"api_url"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	HostPollInterval     time.Duration `yaml:"host_poll_interval"`
	RotationInterval     time.Duration `yaml:"rotation_interval"`
	InterstitialDuration time.Duration `yaml:"interstitial_duration"`
	GameOverThreshold    int           `yaml:"game_over_threshold"`
	RetryAttempts        int           `yaml:"retry_attempts"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
	ClickDebounce        time.Duration `yaml:"click_debounce"`
	Ads                  AdsConfig     `yaml:"ads"`
	Log                  LogConfig     `yaml:"log"`
}

// DefaultClient returns the built-in client configuration.
func DefaultClient() *ClientConfig {
	return &ClientConfig{
		APIURL:               "http://localhost:5000",
		RequestTimeout:       5 * time.Second,
		HostPollInterval:     100 * time.Millisecond,
		RotationInterval:     7 * time.Second,
		InterstitialDuration: 5 * time.Second,
		GameOverThreshold:    5,
		RetryAttempts:        3,
		RetryDelay:           3 * time.Second,
		ClickDebounce:        500 * time.Millisecond,
		Ads:                  Default().Ads,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadClient builds the client configuration from defaults and
// GAMEADS_CLIENT_* environment variables.
func LoadClient() (*ClientConfig, error) {
	c := DefaultClient()

	c.APIURL = strings.TrimRight(getEnv("GAMEADS_CLIENT_API_URL", c.APIURL), "/")
	c.RequestTimeout = getDurationEnv("GAMEADS_CLIENT_REQUEST_TIMEOUT", c.RequestTimeout)
	c.HostPollInterval = getDurationEnv("GAMEADS_CLIENT_HOST_POLL_INTERVAL", c.HostPollInterval)
	c.RotationInterval = getDurationEnv("GAMEADS_CLIENT_ROTATION_INTERVAL", c.RotationInterval)
	c.InterstitialDuration = getDurationEnv("GAMEADS_CLIENT_INTERSTITIAL_DURATION", c.InterstitialDuration)
	c.GameOverThreshold = getIntEnv("GAMEADS_CLIENT_GAME_OVER_THRESHOLD", c.GameOverThreshold)
	c.RetryAttempts = getIntEnv("GAMEADS_CLIENT_RETRY_ATTEMPTS", c.RetryAttempts)
	c.RetryDelay = getDurationEnv("GAMEADS_CLIENT_RETRY_DELAY", c.RetryDelay)
	c.ClickDebounce = getDurationEnv("GAMEADS_CLIENT_CLICK_DEBOUNCE", c.ClickDebounce)

	c.Ads.FallbackBannerImage = getEnv("GAMEADS_FALLBACK_BANNER_IMAGE", c.Ads.FallbackBannerImage)
	c.Ads.FallbackFullscreenImage = getEnv("GAMEADS_FALLBACK_FULLSCREEN_IMAGE", c.Ads.FallbackFullscreenImage)
	c.Ads.FallbackTargetURL = getEnv("GAMEADS_FALLBACK_TARGET_URL", c.Ads.FallbackTargetURL)

	c.Log.Level = getEnv("GAMEADS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("GAMEADS_LOG_FORMAT", c.Log.Format)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the client configuration is usable.
func (c *ClientConfig) Validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("GAMEADS_CLIENT_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	for name, d := range map[string]time.Duration{
		"request timeout":       c.RequestTimeout,
		"host poll interval":    c.HostPollInterval,
		"rotation interval":     c.RotationInterval,
		"interstitial duration": c.InterstitialDuration,
	} {
		if d <= 0 {
			return fmt.Errorf("client %s must be positive", name)
		}
	}
	if c.GameOverThreshold < 1 {
		return fmt.Errorf("GAMEADS_CLIENT_GAME_OVER_THRESHOLD must be at least 1")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("GAMEADS_CLIENT_RETRY_ATTEMPTS must be at least 1")
	}
	return nil
}
