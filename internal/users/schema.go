package users

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	colID        = "user_id"
	colUsername  = "username"
	colPassword  = "password_hash"
	colToken     = "token"
	colExpiresAt = "token_expires_at"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func validateTable(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// createTableSQL returns the user table DDL using the dialect's key column definition.
func createTableSQL(table, autoIncrementKey string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id %s,
			username VARCHAR(64) NOT NULL,
			password_hash VARCHAR(2048) NOT NULL,
			token VARCHAR(2048),
			token_expires_at BIGINT DEFAULT 0
		)`, table, autoIncrementKey)
}

func indexSQL(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_username_uindex ON %s (username)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_token_index ON %s (token)`, table, table),
	}
}

// queries holds the statements bound to one table name.
type queries struct {
	exists       string
	insert       string
	byID         string
	byUsername   string
	byToken      string
	refreshToken string
}

func newQueries(table string) queries {
	selectUser := "SELECT " + strings.Join([]string{colID, colUsername, colPassword, colToken, colExpiresAt}, ", ") + " FROM " + table
	return queries{
		exists:       fmt.Sprintf(`SELECT user_id FROM %s WHERE username = ?`, table),
		insert:       fmt.Sprintf(`INSERT INTO %s (username, password_hash, token, token_expires_at) VALUES (?, ?, ?, ?) RETURNING user_id`, table),
		byID:         selectUser + ` WHERE user_id = ?`,
		byUsername:   selectUser + ` WHERE username = ?`,
		byToken:      selectUser + ` WHERE token = ?`,
		refreshToken: fmt.Sprintf(`UPDATE %s SET token = ?, token_expires_at = ? WHERE user_id = ?`, table),
	}
}
