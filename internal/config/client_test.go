package config

import (
	"testing"
	"time"
)

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("GAMEADS_CLIENT_API_URL", "")

	c, err := LoadClient()
	if err != nil {
		t.Fatal(err)
	}
	if c.RotationInterval != 7*time.Second || c.InterstitialDuration != 5*time.Second {
		t.Errorf("intervals = %v/%v, want 7s/5s", c.RotationInterval, c.InterstitialDuration)
	}
	if c.GameOverThreshold != 5 || c.RetryAttempts != 3 || c.RetryDelay != 3*time.Second {
		t.Errorf("threshold/retries = %d/%d/%v", c.GameOverThreshold, c.RetryAttempts, c.RetryDelay)
	}
	if c.Ads.FallbackTargetURL == "" {
		t.Error("fallback target url is empty")
	}
}

func TestLoadClientEnv(t *testing.T) {
	t.Setenv("GAMEADS_CLIENT_API_URL", "https://ads.example.com/")
	t.Setenv("GAMEADS_CLIENT_ROTATION_INTERVAL", "5s")
	t.Setenv("GAMEADS_CLIENT_GAME_OVER_THRESHOLD", "3")

	c, err := LoadClient()
	if err != nil {
		t.Fatal(err)
	}
	if c.APIURL != "https://ads.example.com" {
		t.Errorf("api url = %q, want trailing slash trimmed", c.APIURL)
	}
	if c.RotationInterval != 5*time.Second {
		t.Errorf("rotation = %v, want 5s", c.RotationInterval)
	}
	if c.GameOverThreshold != 3 {
		t.Errorf("threshold = %d, want 3", c.GameOverThreshold)
	}
}

func TestClientValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{"bad url", func(c *ClientConfig) { c.APIURL = "ftp://x" }},
		{"zero rotation", func(c *ClientConfig) { c.RotationInterval = 0 }},
		{"zero threshold", func(c *ClientConfig) { c.GameOverThreshold = 0 }},
		{"zero attempts", func(c *ClientConfig) { c.RetryAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultClient()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
