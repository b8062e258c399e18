// Package admin implements the thin metadata-CRUD endpoints used by
// administrators: creating/updating chart and table metadata rows,
// registering a new tenant user, and listing a principal's companies.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"dashboard-gateway/internal/central"
	"dashboard-gateway/internal/dashboard"
	"dashboard-gateway/internal/identity"
)

// ChartInput is the manageGraph/manageTable request body: a chart/table
// metadata row. Table-only fields are ignored by ManageChart.
type ChartInput struct {
	Slug          string                    `json:"slug"`
	Title         string                    `json:"title"`
	Description   string                    `json:"description"`
	QueryTemplate string                    `json:"query_template"`
	ParamSchema   map[string]json.RawMessage `json:"param_schema"`
	DefaultParams map[string]any            `json:"default_params"`
	ResultShape   any                       `json:"result_shape"`
	AllowedRoles  []string                  `json:"allowed_roles"`
	IsActive      bool                      `json:"is_active"`
	ColumnConfig  []dashboard.ColumnConfig  `json:"column_config"`
	PrimaryKey    string                    `json:"primary_key"`
}

// Result is the manageTable/manageGraph response body.
type Result struct {
	Message     string `json:"message"`
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	CompanyName string `json:"company_name"`
}

func validateChartInput(in ChartInput) error {
	if in.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// ManageGraph upserts a chart metadata row into the tenant's
// graficos_dashboard table, keyed by slug.
func ManageGraph(ctx context.Context, pool *pgxpool.Pool, companyName string, in ChartInput) (*Result, error) {
	if err := validateChartInput(in); err != nil {
		return nil, err
	}

	schemaJSON, err := json.Marshal(in.ParamSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal param_schema: %w", err)
	}
	defaultsJSON, err := json.Marshal(in.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("marshal default_params: %w", err)
	}
	shapeJSON, err := json.Marshal(in.ResultShape)
	if err != nil {
		return nil, fmt.Errorf("marshal result_shape: %w", err)
	}

	var id int64
	row := pool.QueryRow(ctx, `
		INSERT INTO graficos_dashboard
			(slug, title, description, query_template, param_schema, default_params, result_shape, allowed_roles, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			query_template = EXCLUDED.query_template,
			param_schema = EXCLUDED.param_schema,
			default_params = EXCLUDED.default_params,
			result_shape = EXCLUDED.result_shape,
			allowed_roles = EXCLUDED.allowed_roles,
			is_active = EXCLUDED.is_active
		RETURNING id
	`, in.Slug, in.Title, in.Description, in.QueryTemplate, schemaJSON, defaultsJSON, shapeJSON, in.AllowedRoles, in.IsActive)
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("upsert chart %s: %w", in.Slug, err)
	}

	return &Result{Message: "Gráfico salvo.", ID: id, Slug: in.Slug, CompanyName: companyName}, nil
}

// ManageTable upserts a table metadata row into the tenant's
// dashboard_tables table, keyed by slug.
func ManageTable(ctx context.Context, pool *pgxpool.Pool, companyName string, in ChartInput) (*Result, error) {
	if err := validateChartInput(in); err != nil {
		return nil, err
	}

	schemaJSON, err := json.Marshal(in.ParamSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal param_schema: %w", err)
	}
	defaultsJSON, err := json.Marshal(in.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("marshal default_params: %w", err)
	}
	shapeJSON, err := json.Marshal(in.ResultShape)
	if err != nil {
		return nil, fmt.Errorf("marshal result_shape: %w", err)
	}
	columnsJSON, err := json.Marshal(in.ColumnConfig)
	if err != nil {
		return nil, fmt.Errorf("marshal column_config: %w", err)
	}

	var id int64
	row := pool.QueryRow(ctx, `
		INSERT INTO dashboard_tables
			(slug, title, description, query_template, param_schema, default_params, result_shape, allowed_roles, is_active, column_config, primary_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			query_template = EXCLUDED.query_template,
			param_schema = EXCLUDED.param_schema,
			default_params = EXCLUDED.default_params,
			result_shape = EXCLUDED.result_shape,
			allowed_roles = EXCLUDED.allowed_roles,
			is_active = EXCLUDED.is_active,
			column_config = EXCLUDED.column_config,
			primary_key = EXCLUDED.primary_key
		RETURNING id
	`, in.Slug, in.Title, in.Description, in.QueryTemplate, schemaJSON, defaultsJSON, shapeJSON, in.AllowedRoles, in.IsActive, columnsJSON, in.PrimaryKey)
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("upsert table %s: %w", in.Slug, err)
	}

	return &Result{Message: "Tabela salva.", ID: id, Slug: in.Slug, CompanyName: companyName}, nil
}

// RegisterUserInput is the registerUser request body.
type RegisterUserInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DBHost      string `json:"db_host"`
	DBName      string `json:"db_name"`
	DBUser      string `json:"db_user"`
	DBPassword  string `json:"db_password"`
	CompanyName string `json:"company_name"`
}

type idempotencyEntry struct {
	passwordHash []byte
	userID       string
}

// userProvisioner is the subset of identity.Resolver registerUser needs.
type userProvisioner interface {
	CreateUser(ctx context.Context, email, password string) (string, error)
	DeleteUser(ctx context.Context, userID string) error
}

// tenantDirectory is the subset of central.Directory registerUser and
// listCompanies need.
type tenantDirectory interface {
	InsertTenant(ctx context.Context, principalID string, c central.Coordinates) error
	ListCompanies(ctx context.Context, principalID string) ([]central.CompanyInfo, error)
}

// Service hosts the registerUser/listCompanies operations, which need the
// identity provider and the central tenant directory rather than a tenant
// pool.
type Service struct {
	central  tenantDirectory
	identity userProvisioner

	mu    sync.Mutex
	cache map[string]idempotencyEntry
}

// NewService constructs a Service against the live identity provider and
// central directory.
func NewService(central *central.Directory, identity *identity.Resolver) *Service {
	return newService(central, identity)
}

func newService(central tenantDirectory, identity userProvisioner) *Service {
	return &Service{central: central, identity: identity, cache: make(map[string]idempotencyEntry)}
}

// RegisterUser provisions a new identity-provider user and persists its
// tenant coordinates in the central directory. A retry with the same email
// and password short-circuits to the cached result instead of creating a
// second identity-provider account; this is checked via bcrypt rather than
// storing the password itself.
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (string, error) {
	if in.Email == "" || in.Password == "" {
		return "", fmt.Errorf("email and password are required")
	}

	if userID, ok := s.cachedUserID(in.Email, in.Password); ok {
		return userID, nil
	}

	userID, err := s.identity.CreateUser(ctx, in.Email, in.Password)
	if err != nil {
		return "", fmt.Errorf("create identity user: %w", err)
	}

	coords := central.Coordinates{
		Host:        in.DBHost,
		DBName:      in.DBName,
		DBUser:      in.DBUser,
		DBPassword:  in.DBPassword,
		CompanyName: in.CompanyName,
	}
	if err := s.central.InsertTenant(ctx, userID, coords); err != nil {
		if delErr := s.identity.DeleteUser(ctx, userID); delErr != nil {
			log.Printf("admin: rollback delete user %s after failed tenant insert: %v", userID, delErr)
		}
		return "", fmt.Errorf("persist tenant metadata: %w", err)
	}

	s.rememberUserID(in.Email, in.Password, userID)
	return userID, nil
}

func (s *Service) cachedUserID(email, password string) (string, bool) {
	s.mu.Lock()
	entry, ok := s.cache[email]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	if bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(password)) != nil {
		return "", false
	}
	return entry.userID, true
}

func (s *Service) rememberUserID(email, password, userID string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.cache[email] = idempotencyEntry{passwordHash: hash, userID: userID}
	s.mu.Unlock()
}

// ListCompanies returns every tenant registered under principalID.
func (s *Service) ListCompanies(ctx context.Context, principalID string) ([]central.CompanyInfo, error) {
	return s.central.ListCompanies(ctx, principalID)
}
