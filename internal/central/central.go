// Package central implements the C2 tenant directory: principal id to
// tenant database coordinates, backed by the central registry's db_info
// table.
package central

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no db_info row exists for a principal.
var ErrNotFound = errors.New("tenant coordinates not found")

// Coordinates is the TenantCoordinates data-model entity: connection
// parameters for one tenant's isolated database, plus its display name.
type Coordinates struct {
	Host        string
	Port        int
	DBName      string
	DBUser      string
	DBPassword  string
	CompanyName string
}

// Directory reads tenant coordinates from the central registry. It holds
// no cache of its own; C3 is where pooled connections are cached.
type Directory struct {
	pool        *pgxpool.Pool
	defaultPort int
}

// New wraps a pool already connected to the central registry database.
func New(pool *pgxpool.Pool, defaultPort int) *Directory {
	return &Directory{pool: pool, defaultPort: defaultPort}
}

// LookupTenant reads exactly one row from db_info keyed by principal id.
func (d *Directory) LookupTenant(ctx context.Context, principalID string) (*Coordinates, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT db_host, db_name, db_user, db_password, company_name
		FROM db_info
		WHERE id_user = $1
	`, principalID)

	var c Coordinates
	var host, dbName, dbUser, dbPassword, companyName string
	if err := row.Scan(&host, &dbName, &dbUser, &dbPassword, &companyName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup tenant %s: %w", principalID, err)
	}

	c.Host = host
	c.DBName = dbName
	c.DBUser = dbUser
	c.DBPassword = dbPassword
	c.CompanyName = companyName
	c.Port = d.defaultPort
	return &c, nil
}

// InsertTenant persists a new db_info row for principalID. Called once after
// the identity provider has provisioned the corresponding user; the caller
// is responsible for rolling that user back if this fails.
func (d *Directory) InsertTenant(ctx context.Context, principalID string, c Coordinates) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO db_info (id_user, db_host, db_name, db_user, db_password, company_name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, principalID, c.Host, c.DBName, c.DBUser, c.DBPassword, c.CompanyName)
	if err != nil {
		return fmt.Errorf("insert tenant %s: %w", principalID, err)
	}
	return nil
}

// CompanyInfo is one row of the listCompanies response: a tenant's
// identifying details without its credentials.
type CompanyInfo struct {
	PrincipalID string
	CompanyName string
	DBHost      string
	DBName      string
}

// ListCompanies returns every tenant registered under principalID. A single
// admin account may own more than one company's db_info row.
func (d *Directory) ListCompanies(ctx context.Context, principalID string) ([]CompanyInfo, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id_user, company_name, db_host, db_name
		FROM db_info
		WHERE id_user = $1
		ORDER BY company_name
	`, principalID)
	if err != nil {
		return nil, fmt.Errorf("list companies for %s: %w", principalID, err)
	}
	defer rows.Close()

	var out []CompanyInfo
	for rows.Next() {
		var ci CompanyInfo
		if err := rows.Scan(&ci.PrincipalID, &ci.CompanyName, &ci.DBHost, &ci.DBName); err != nil {
			return nil, fmt.Errorf("scan company row: %w", err)
		}
		out = append(out, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list companies rows: %w", err)
	}
	return out, nil
}
