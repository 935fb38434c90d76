// internal/app/bootstrap/config.go
package bootstrap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for CollabHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: COLLABHUB_MONGO_URI, COLLABHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "collabhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "", Desc: "Session signing key, 32+ chars (required in prod; generated per process otherwise)"},
	{Name: "session_name", Default: "collabhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "168h", Desc: "Session cookie lifetime"},

	{Name: "invite_ttl", Default: "0s", Desc: "Invite token lifetime (0 means tokens never expire)"},
	{Name: "invite_redeem_limit", Default: 10, Desc: "Invite redemptions allowed per user per window"},
	{Name: "invite_redeem_window", Default: "1m", Desc: "Window for invite_redeem_limit"},

	{Name: "redis_addr", Default: "", Desc: "Redis address for shared rate limits (blank keeps limits in memory)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	{Name: "mutation_max_attempts", Default: 5, Desc: "Reload-and-retry attempts after a concurrent membership change"},

	{Name: "deletion_sweep_interval", Default: "5m", Desc: "How often stalled project deletes are finished"},
	{Name: "deletion_stall_threshold", Default: "2m", Desc: "Age after which a started project delete counts as stalled"},
	{Name: "invite_purge_interval", Default: "1h", Desc: "How often expired invite tokens are deleted"},
	{Name: "document_stats_interval", Default: "5m", Desc: "How often collection size gauges are refreshed"},

	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_membership", Default: "all", Desc: "Membership event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "timeout_ping", Default: "2s", Desc: "Deadline for health pings"},
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for lists and membership mutations"},
	{Name: "timeout_long", Default: "30s", Desc: "Deadline for cascade deletes and sweeps"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// WAFFLE_* / COLLABHUB_* environment variables and flags, with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COLLABHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 7*24*time.Hour),

		InviteTTL:          appValues.Duration("invite_ttl", 0),
		InviteRedeemLimit:  appValues.Int("invite_redeem_limit"),
		InviteRedeemWindow: appValues.Duration("invite_redeem_window", time.Minute),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		MutationMaxAttempts: appValues.Int("mutation_max_attempts"),

		DeletionSweepInterval:  appValues.Duration("deletion_sweep_interval", 5*time.Minute),
		DeletionStallThreshold: appValues.Duration("deletion_stall_threshold", 2*time.Minute),
		InvitePurgeInterval:    appValues.Duration("invite_purge_interval", time.Hour),
		DocumentStatsInterval:  appValues.Duration("document_stats_interval", 5*time.Minute),

		AuditLogAuth:       appValues.String("audit_log_auth"),
		AuditLogMembership: appValues.String("audit_log_membership"),

		TimeoutPing:   appValues.Duration("timeout_ping", 2*time.Second),
		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 30*time.Second),
	}

	if appCfg.SessionKey == "" && coreCfg.Env != "prod" {
		appCfg.SessionKey = hex.EncodeToString(securecookie.GenerateRandomKey(32))
		logger.Warn("session_key not set; generated an ephemeral key, sessions end on restart")
	}

	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation so bad settings
// abort startup before anything connects.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return errors.New("mongo_database must be set")
	}
	if appCfg.SessionKey == "" {
		return errors.New("session_key is required in prod")
	}
	if appCfg.InviteTTL < 0 {
		return errors.New("invite_ttl must not be negative")
	}
	if appCfg.InviteRedeemLimit < 1 || appCfg.InviteRedeemWindow <= 0 {
		return errors.New("invite_redeem_limit and invite_redeem_window must be positive")
	}
	if appCfg.MutationMaxAttempts < 1 {
		return errors.New("mutation_max_attempts must be at least 1")
	}
	for name, d := range map[string]time.Duration{
		"deletion_sweep_interval":  appCfg.DeletionSweepInterval,
		"deletion_stall_threshold": appCfg.DeletionStallThreshold,
		"invite_purge_interval":    appCfg.InvitePurgeInterval,
		"document_stats_interval":  appCfg.DocumentStatsInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if !auditModes[appCfg.AuditLogAuth] {
		return fmt.Errorf("audit_log_auth: unknown mode %q", appCfg.AuditLogAuth)
	}
	if !auditModes[appCfg.AuditLogMembership] {
		return fmt.Errorf("audit_log_membership: unknown mode %q", appCfg.AuditLogMembership)
	}
	return nil
}
