package config

import "time"

// TimeoutsConfig bounds every UI wait. Values are Go duration strings.
type TimeoutsConfig struct {
	LocateAttempt string `yaml:"locate_attempt"` // one locator strategy
	NoMatchProbe  string `yaml:"no_match_probe"` // looking for the "no results" indicator
	Navigation    string `yaml:"navigation"`
	Health        string `yaml:"health"`
	Login         string `yaml:"login"`      // total wait for the post-login marker
	LoginPoll     string `yaml:"login_poll"` // interval between marker probes
	Settle        string `yaml:"settle"`     // pause after opening a menu or clicking
	FilterRefresh string `yaml:"filter_refresh"`
}

// RetryConfig holds the fixed retry budgets.
type RetryConfig struct {
	BindRetries     int     `yaml:"bind_retries"`
	RetryWaitFactor float64 `yaml:"retry_wait_factor"`
}

// DefaultTimeouts returns the timeouts tuned against the live portal.
func DefaultTimeouts() TimeoutsConfig {
	return TimeoutsConfig{
		LocateAttempt: "3s",
		NoMatchProbe:  "1s",
		Navigation:    "30s",
		Health:        "5s",
		Login:         "2m",
		LoginPoll:     "2s",
		Settle:        "1s",
		FilterRefresh: "2s",
	}
}

func parseOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetLocateAttempt returns the per-strategy locator timeout.
func (t TimeoutsConfig) GetLocateAttempt() time.Duration { return parseOr(t.LocateAttempt, 3*time.Second) }

// GetNoMatchProbe returns the timeout for the "no results" probe.
func (t TimeoutsConfig) GetNoMatchProbe() time.Duration { return parseOr(t.NoMatchProbe, time.Second) }

// GetNavigation returns the navigation timeout.
func (t TimeoutsConfig) GetNavigation() time.Duration { return parseOr(t.Navigation, 30*time.Second) }

// GetHealth returns the health-check timeout.
func (t TimeoutsConfig) GetHealth() time.Duration { return parseOr(t.Health, 5*time.Second) }

// GetLogin returns the total login wait.
func (t TimeoutsConfig) GetLogin() time.Duration { return parseOr(t.Login, 2*time.Minute) }

// GetLoginPoll returns the login marker poll interval.
func (t TimeoutsConfig) GetLoginPoll() time.Duration { return parseOr(t.LoginPoll, 2*time.Second) }

// GetSettle returns the settle pause.
func (t TimeoutsConfig) GetSettle() time.Duration { return parseOr(t.Settle, time.Second) }

// GetFilterRefresh returns the wait for a filterable list to refresh.
func (t TimeoutsConfig) GetFilterRefresh() time.Duration {
	return parseOr(t.FilterRefresh, 2*time.Second)
}
