// Package deviceapproval implements the C4 device-approval store and its
// state machine: device records keyed by (principal, device id), one-shot
// confirmation tokens, and the login-event audit trail.
package deviceapproval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no device record matches a lookup.
var ErrNotFound = errors.New("device record not found")

// Status is the device record's approval state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// DeviceRecord mirrors the data model's DeviceRecord entity.
type DeviceRecord struct {
	ID            string
	PrincipalID   string
	DeviceID      string
	DeviceName    string
	UserAgent     string
	IP            string
	Locale        string
	Timezone      string
	Screen        string
	Status        Status
	ApprovalToken *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ConfirmedAt   *time.Time
	LastSeenAt    time.Time
}

// LoginEvent mirrors the data model's LoginEvent entity: an append-only
// audit row per login or confirmation.
type LoginEvent struct {
	ID          string
	PrincipalID string
	DeviceID    string
	DeviceName  string
	IP          string
	UserAgent   string
	Locale      string
	Timezone    string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Store persists DeviceRecord and LoginEvent rows against the central
// registry database (devices are keyed by identity-provider principal,
// independent of which tenant database the principal's company owns).
type Store struct {
	pool *pgxpool.Pool
}

// New wraps a pool connected to the central registry database.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanDevice(row pgx.Row) (*DeviceRecord, error) {
	var d DeviceRecord
	var status string
	err := row.Scan(
		&d.ID, &d.PrincipalID, &d.DeviceID, &d.DeviceName, &d.UserAgent, &d.IP,
		&d.Locale, &d.Timezone, &d.Screen, &status, &d.ApprovalToken,
		&d.CreatedAt, &d.UpdatedAt, &d.ConfirmedAt, &d.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return &d, nil
}

const deviceColumns = `
	id, user_id, device_id, device_name, user_agent, ip_address,
	locale, timezone, screen, status, approval_token,
	created_at, updated_at, confirmed_at, last_seen_at
`

// GetByUserDevice reads the device record keyed by (principal, device id).
func (s *Store) GetByUserDevice(ctx context.Context, principalID, deviceID string) (*DeviceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM security_user_devices
		WHERE user_id = $1 AND device_id = $2
	`, principalID, deviceID)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device by user/device: %w", err)
	}
	return d, nil
}

// GetByToken resolves a device record by its current approval token. The
// token is cleared on confirmation, so a stale or already-consumed token
// returns ErrNotFound.
func (s *Store) GetByToken(ctx context.Context, token string) (*DeviceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM security_user_devices
		WHERE approval_token = $1
	`, token)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device by token: %w", err)
	}
	return d, nil
}

// Upsert inserts a new device record or, on a (user_id, device_id)
// conflict, overwrites it in place. A record without an ID gets a fresh
// UUID, and one with a zero CreatedAt gets the current time.
func (s *Store) Upsert(ctx context.Context, d *DeviceRecord) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_user_devices (
			id, user_id, device_id, device_name, user_agent, ip_address,
			locale, timezone, screen, status, approval_token,
			created_at, updated_at, confirmed_at, last_seen_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			user_agent = EXCLUDED.user_agent,
			ip_address = EXCLUDED.ip_address,
			locale = EXCLUDED.locale,
			timezone = EXCLUDED.timezone,
			screen = EXCLUDED.screen,
			status = EXCLUDED.status,
			approval_token = EXCLUDED.approval_token,
			updated_at = EXCLUDED.updated_at,
			confirmed_at = EXCLUDED.confirmed_at,
			last_seen_at = EXCLUDED.last_seen_at
	`,
		d.ID, d.PrincipalID, d.DeviceID, d.DeviceName, d.UserAgent, d.IP,
		d.Locale, d.Timezone, d.Screen, string(d.Status), d.ApprovalToken,
		d.CreatedAt, d.UpdatedAt, d.ConfirmedAt, d.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// Update applies a partial patch by surrogate id.
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	set, args := patch.build()
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE security_user_devices SET %s WHERE id = $%d`, joinSet(set), len(args))
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update device %s: %w", id, err)
	}
	return nil
}

// RecordLoginEvent appends an audit row. At-most-once semantics: callers do
// not retry automatically on failure.
func (s *Store) RecordLoginEvent(ctx context.Context, evt *LoginEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO security_login_events (
			id, user_id, device_id, device_name, ip_address, user_agent,
			locale, timezone, metadata, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, evt.ID, evt.PrincipalID, evt.DeviceID, evt.DeviceName, evt.IP, evt.UserAgent,
		evt.Locale, evt.Timezone, evt.Metadata, evt.CreatedAt)
	if err != nil {
		return fmt.Errorf("record login event: %w", err)
	}
	return nil
}
