package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCustomerNotFound is returned by ToggleCustomerPaused when customerID
// does not exist in the tenant's clientes table.
var ErrCustomerNotFound = fmt.Errorf("customer not found")

// ToggleCustomerPaused flips the paused flag of one clientes row and
// returns its new value. This is a bearer-level operation (not admin-gated,
// unlike manageTable/manageGraph), since it toggles a single customer's
// status rather than editing metadata.
func ToggleCustomerPaused(ctx context.Context, pool *pgxpool.Pool, customerID int64) (bool, error) {
	row := pool.QueryRow(ctx, `
		UPDATE clientes
		SET paused = NOT paused
		WHERE id = $1
		RETURNING paused
	`, customerID)

	var paused bool
	if err := row.Scan(&paused); err != nil {
		if err == pgx.ErrNoRows {
			return false, ErrCustomerNotFound
		}
		return false, fmt.Errorf("toggle customer %d: %w", customerID, err)
	}
	return paused, nil
}
