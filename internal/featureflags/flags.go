package featureflags

import (
	"os"
	"strings"
)

// Known flags.
const (
	// EmailDryRun logs invitation registration links instead of sending
	// mail. For development against a fake or absent SMTP host.
	EmailDryRun = "EMAIL_DRY_RUN"
	// RedisRateLimit moves rate-limit windows to redis so replicas share
	// one budget. Requires REDIS_URL.
	RedisRateLimit = "REDIS_RATELIMIT"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
