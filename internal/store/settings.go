package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/erazemk/popis/internal/db"
)

// GetTokenSecret retrieves the WebApp token signing secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses insert-if-absent + re-SELECT so concurrent startups agree on one value.
func GetTokenSecret(ctx context.Context, d *db.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	insert := `INSERT INTO settings (name, value) VALUES ('token_secret', ?) ON CONFLICT (name) DO NOTHING`
	if d.Dialect == db.DialectMySQL {
		insert = `INSERT IGNORE INTO settings (name, value) VALUES ('token_secret', ?)`
	}
	if _, err := d.ExecContext(ctx, d.Rebind(insert), candidate); err != nil {
		return "", fmt.Errorf("storing token secret: %w", err)
	}

	// Always read back (either our insert or the existing value).
	var secret string
	err := d.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = 'token_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying token secret: %w", err)
	}

	return secret, nil
}
