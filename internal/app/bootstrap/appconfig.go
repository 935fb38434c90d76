// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from COLLABHUB_* environment variables, config files or
// command-line flags (see appConfigKeys). Framework settings such as ports,
// TLS and log level live in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session cookies
	SessionKey    string // signing key; generated per process in dev when blank
	SessionName   string
	SessionDomain string // blank means current host
	SessionMaxAge time.Duration

	// Invites
	InviteTTL          time.Duration // zero: tokens never expire
	InviteRedeemLimit  int
	InviteRedeemWindow time.Duration

	// Redis for the shared redeem limiter (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Membership mutations
	MutationMaxAttempts int

	// Background jobs
	DeletionSweepInterval  time.Duration
	DeletionStallThreshold time.Duration
	InvitePurgeInterval    time.Duration
	DocumentStatsInterval  time.Duration

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth       string
	AuditLogMembership string

	// Context deadlines
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
