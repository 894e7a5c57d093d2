package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
)

// classify marks connection-class failures as transient for the datastore
// retry policy. Everything else is returned untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return datastore.MarkTransient(err)
	}
	var ce *pgconn.ConnectError
	if errors.As(err, &ce) {
		return datastore.MarkTransient(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		// connection exception, insufficient resources, operator intervention
		case "08", "53", "57":
			return datastore.MarkTransient(err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
