package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadCharts reads active rows from graficos_dashboard, ordered by id,
// optionally filtered to the given slugs: pool.Query -> scan JSON column ->
// unmarshal, warn-and-skip on bad JSON rather than aborting the whole load.
func LoadCharts(ctx context.Context, pool *pgxpool.Pool, slugs []string) ([]ChartMetadata, error) {
	sql := `
		SELECT id, slug, title, description, query_template, param_schema,
		       default_params, result_shape, allowed_roles, is_active
		FROM graficos_dashboard
		WHERE is_active = TRUE
	`
	args := []any{}
	if len(slugs) > 0 {
		sql += " AND slug = ANY($1)"
		args = append(args, slugs)
	}
	sql += " ORDER BY id ASC"

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load charts: %w", err)
	}
	defer rows.Close()

	var out []ChartMetadata
	for rows.Next() {
		cm, err := scanChartRow(rows)
		if err != nil {
			log.Printf("dashboard: WARN skipping malformed chart row: %v", err)
			continue
		}
		out = append(out, *cm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load charts: rows: %w", err)
	}
	return out, nil
}

func scanChartRow(rows pgx.Rows) (*ChartMetadata, error) {
	var (
		cm                                         ChartMetadata
		paramSchemaRaw, defaultParamsRaw, resultShapeRaw []byte
	)
	if err := rows.Scan(
		&cm.ID, &cm.Slug, &cm.Title, &cm.Description, &cm.QueryTemplate,
		&paramSchemaRaw, &defaultParamsRaw, &resultShapeRaw, &cm.AllowedRoles, &cm.IsActive,
	); err != nil {
		return nil, err
	}

	if len(paramSchemaRaw) > 0 {
		if err := json.Unmarshal(paramSchemaRaw, &cm.ParamSchema); err != nil {
			return nil, fmt.Errorf("slug %s: param_schema: %w", cm.Slug, err)
		}
	}
	if len(defaultParamsRaw) > 0 {
		if err := json.Unmarshal(defaultParamsRaw, &cm.DefaultParams); err != nil {
			return nil, fmt.Errorf("slug %s: default_params: %w", cm.Slug, err)
		}
	}
	if len(resultShapeRaw) > 0 {
		if err := json.Unmarshal(resultShapeRaw, &cm.ResultShape); err != nil {
			return nil, fmt.Errorf("slug %s: result_shape: %w", cm.Slug, err)
		}
	}
	return &cm, nil
}

// LoadTables reads active rows from dashboard_tables, ordered by id,
// optionally filtered to the given slugs.
func LoadTables(ctx context.Context, pool *pgxpool.Pool, slugs []string) ([]TableMetadata, error) {
	sql := `
		SELECT id, slug, title, description, query_template, param_schema,
		       default_params, result_shape, allowed_roles, is_active,
		       column_config, primary_key
		FROM dashboard_tables
		WHERE is_active = TRUE
	`
	args := []any{}
	if len(slugs) > 0 {
		sql += " AND slug = ANY($1)"
		args = append(args, slugs)
	}
	sql += " ORDER BY id ASC"

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	defer rows.Close()

	var out []TableMetadata
	for rows.Next() {
		tm, err := scanTableRow(rows)
		if err != nil {
			log.Printf("dashboard: WARN skipping malformed table row: %v", err)
			continue
		}
		out = append(out, *tm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tables: rows: %w", err)
	}
	return out, nil
}

func scanTableRow(rows pgx.Rows) (*TableMetadata, error) {
	var (
		tm                                                TableMetadata
		paramSchemaRaw, defaultParamsRaw, resultShapeRaw []byte
		columnConfigRaw                                   []byte
		primaryKey                                        *string
	)
	if err := rows.Scan(
		&tm.ID, &tm.Slug, &tm.Title, &tm.Description, &tm.QueryTemplate,
		&paramSchemaRaw, &defaultParamsRaw, &resultShapeRaw, &tm.AllowedRoles, &tm.IsActive,
		&columnConfigRaw, &primaryKey,
	); err != nil {
		return nil, err
	}

	if len(paramSchemaRaw) > 0 {
		if err := json.Unmarshal(paramSchemaRaw, &tm.ParamSchema); err != nil {
			return nil, fmt.Errorf("slug %s: param_schema: %w", tm.Slug, err)
		}
	}
	if len(defaultParamsRaw) > 0 {
		if err := json.Unmarshal(defaultParamsRaw, &tm.DefaultParams); err != nil {
			return nil, fmt.Errorf("slug %s: default_params: %w", tm.Slug, err)
		}
	}
	if len(resultShapeRaw) > 0 {
		if err := json.Unmarshal(resultShapeRaw, &tm.ResultShape); err != nil {
			return nil, fmt.Errorf("slug %s: result_shape: %w", tm.Slug, err)
		}
	}
	if len(columnConfigRaw) > 0 {
		if err := json.Unmarshal(columnConfigRaw, &tm.ColumnConfig); err != nil {
			return nil, fmt.Errorf("slug %s: column_config: %w", tm.Slug, err)
		}
	}
	if primaryKey != nil {
		tm.PrimaryKey = *primaryKey
	}
	return &tm, nil
}
