package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
)

type Config struct {
	NodeURL     string   // chain node speaking the condenser JSON-RPC API
	HTTPAddr    string   // listen address for the audit/sync API
	DBDialect   string   // postgres only
	DBDsn       string   // DSN string passed to GORM driver
	Debug       bool     // if true: verbose logs
	AppVersion  string   // reported in generated vote payloads
	DefaultTags []string // tags attached to generated vote payloads
	TeamMembers []string // usernames excluded from leaderboard queries
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	cfg := Config{
		NodeURL:     getenv("NODE_URL", "https://blurtd.privex.io"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8000"),
		Debug:       getenvBool("DEBUG", false),
		AppVersion:  getenv("APP_VERSION", "0.0.1"),
		DefaultTags: getenvList("DEFAULT_TAGS", []string{"dpoll", "poll"}),
		TeamMembers: getenvList("TEAM_MEMBERS", nil),
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

func (c Config) String() string {
	return fmt.Sprintf("node=%s http=%s db=%s", c.NodeURL, c.HTTPAddr, c.DBDialect)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"node=%s http=%s db=%s dsn=%s",
		c.NodeURL,
		c.HTTPAddr,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
