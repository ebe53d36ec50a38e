package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LocalUser is one entry of the household user directory, seeded into the
// database at startup. This replaces the identity provider with a fixed
// allow-list of people.
type LocalUser struct {
	Username string
	Email    string
	FullName string
}

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Display
	CurrencySymbol string

	// Recurrence
	RecurrenceLeadDays int

	// Budget
	HistoryMonths int

	// Access control
	LocalUsers  []LocalUser
	AdminEmails []string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/homie.db"),

		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "$"),

		RecurrenceLeadDays: getEnvInt("RECURRENCE_LEAD_DAYS", 5),
		HistoryMonths:      getEnvInt("HISTORY_MONTHS", 6),

		LocalUsers:  parseLocalUsers(getEnv("LOCAL_USERS", "")),
		AdminEmails: splitList(getEnv("ADMIN_EMAILS", "")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	if c.RecurrenceLeadDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid recurrence lead days %d: must not be negative", c.RecurrenceLeadDays))
	} else if c.RecurrenceLeadDays > 31 {
		errors = append(errors, fmt.Sprintf("invalid recurrence lead days %d: must be at most 31", c.RecurrenceLeadDays))
	}

	if c.HistoryMonths < 1 {
		errors = append(errors, fmt.Sprintf("invalid history months %d: must be at least 1", c.HistoryMonths))
	} else if c.HistoryMonths > 120 {
		errors = append(errors, fmt.Sprintf("invalid history months %d: must be at most 120", c.HistoryMonths))
	}

	seen := make(map[string]bool)
	for _, u := range c.LocalUsers {
		if u.Username == "" || u.Email == "" {
			errors = append(errors, "local user entries need at least username:email")
			continue
		}
		if seen[u.Username] {
			errors = append(errors, fmt.Sprintf("duplicate local user '%s'", u.Username))
		}
		seen[u.Username] = true
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// IsAdminEmail reports whether the email is on the admin allow-list.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// parseLocalUsers parses "username:email[:Full Name]" entries separated by
// commas, e.g. "ana:ana@example.com:Ana Silva,ben:ben@example.com".
func parseLocalUsers(s string) []LocalUser {
	var users []LocalUser
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		u := LocalUser{Username: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			u.Email = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			u.FullName = strings.TrimSpace(parts[2])
		} else {
			u.FullName = u.Username
		}
		users = append(users, u)
	}
	return users
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
