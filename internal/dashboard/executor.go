package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"dashboard-gateway/internal/central"
	"dashboard-gateway/internal/identity"
	"dashboard-gateway/internal/paramschema"
	"dashboard-gateway/internal/querytemplate"
)

// Executor runs the C8 batch algorithm against one tenant pool.
type Executor struct {
	probe clientesProbe
}

// NewExecutor constructs an Executor. probe supplies the cached
// clientes-baseline-table presence check (tenantdb.Registry satisfies it).
func NewExecutor(probe clientesProbe) *Executor {
	return &Executor{probe: probe}
}

// Run executes the full batch: it loads chart/table metadata, gates by
// role, resolves and compiles parameters per slug, executes, and sanitises
// rows. Per-slug failures never abort the batch; only infrastructure
// failures (propagated as an error return) do.
func (e *Executor) Run(ctx context.Context, pool *pgxpool.Pool, coords *central.Coordinates, principal *identity.Principal, req Request) (*Response, error) {
	resp := newResponse(coords.CompanyName)

	graphSlugs := slugsOf(req.Graphs)
	charts, err := LoadCharts(ctx, pool, graphSlugs)
	if err != nil {
		return nil, err
	}
	e.runCharts(ctx, pool, principal, charts, req.Graphs, resp)

	tableSlugs := slugsOf(req.Tables)
	tables, err := LoadTables(ctx, pool, tableSlugs)
	if err != nil {
		return nil, err
	}

	includeClientes := len(req.Tables) == 0 || containsSlug(tableSlugs, clientesSlug)
	if includeClientes {
		if cm, ok := synthesizeClientes(ctx, e.probe, coords); ok {
			tables = insertSorted(tables, *cm)
		}
	}

	e.runTables(ctx, pool, principal, tables, req.Tables, resp)

	reportMissing(req.Graphs, chartSlugs(charts), resp.Errors)
	reportMissing(req.Tables, tableMetaSlugs(tables), resp.TableErrors)

	return resp, nil
}

func (e *Executor) runCharts(ctx context.Context, pool *pgxpool.Pool, principal *identity.Principal, charts []ChartMetadata, requested []SlugParams, resp *Response) {
	providedBySlug := indexParams(requested)
	roles := chartRoleSet(principal)

	for _, cm := range charts {
		resp.Graphics = append(resp.Graphics, GraphResponse{
			ID: cm.ID, Slug: cm.Slug, Title: cm.Title, Description: cm.Description, ResultShape: cm.ResultShape,
		})
		id := idKey(cm.ID)

		if cm.QueryTemplate == "" {
			resp.Errors[cm.Slug] = "Query template vazio."
			continue
		}
		if len(cm.AllowedRoles) > 0 && disjoint(cm.AllowedRoles, roles) {
			resp.Errors[cm.Slug] = "Usuário não possui permissão para acessar este gráfico."
			continue
		}

		params, err := paramschema.ResolveParams(cm.ParamSchema, cm.DefaultParams, providedBySlug[cm.Slug])
		if err != nil {
			resp.Errors[cm.Slug] = err.Error()
			continue
		}

		compiled, err := querytemplate.Compile(cm.QueryTemplate, params, cm.ParamSchema)
		if err != nil {
			resp.Errors[cm.Slug] = err.Error()
			continue
		}

		rows, err := queryRows(ctx, pool, compiled.Text, compiled.Args)
		if err != nil {
			resp.Errors[cm.Slug] = err.Error()
			continue
		}

		resp.Datasets[id] = rows
		resp.Debug[id] = DebugInfo{
			Slug: cm.Slug, Params: params, Query: compiled.Text, Args: compiled.Args,
			RowCount: len(rows), Sample: sample(rows),
		}
	}
}

func (e *Executor) runTables(ctx context.Context, pool *pgxpool.Pool, principal *identity.Principal, tables []TableMetadata, requested []SlugParams, resp *Response) {
	providedBySlug := indexParams(requested)
	roles := tableRoleSet(principal)

	for _, tm := range tables {
		resp.Tables = append(resp.Tables, TableResponse{
			ID: tm.ID, Slug: tm.Slug, Title: tm.Title, Description: tm.Description,
			ColumnConfig: tm.ColumnConfig, PrimaryKey: tm.PrimaryKey,
		})
		id := idKey(tm.ID)
		if tm.Slug == clientesSlug {
			id = clientesSlug
		}

		if tm.QueryTemplate == "" {
			resp.TableErrors[tm.Slug] = "Query template vazio."
			continue
		}
		if len(tm.AllowedRoles) > 0 && disjoint(tm.AllowedRoles, roles) {
			resp.TableErrors[tm.Slug] = "Usuário não possui permissão para acessar esta tabela."
			continue
		}

		params, err := paramschema.ResolveParams(tm.ParamSchema, tm.DefaultParams, providedBySlug[tm.Slug])
		if err != nil {
			resp.TableErrors[tm.Slug] = err.Error()
			continue
		}

		compiled, err := querytemplate.Compile(tm.QueryTemplate, params, tm.ParamSchema)
		if err != nil {
			resp.TableErrors[tm.Slug] = err.Error()
			continue
		}

		rows, err := queryRows(ctx, pool, compiled.Text, compiled.Args)
		if err != nil {
			resp.TableErrors[tm.Slug] = err.Error()
			continue
		}

		resp.TableRows[id] = rows
		resp.TableDebug[id] = DebugInfo{
			Slug: tm.Slug, Params: params, Query: compiled.Text, Args: compiled.Args,
			RowCount: len(rows), Sample: sample(rows),
		}
	}
}

// chartRoleSet is the chart-serving path's own role extraction: it seeds
// "user" and "authenticated" in addition to the principal's derived roles.
// This is deliberately distinct from tableRoleSet below, which reuses the
// shared extraction as-is.
func chartRoleSet(p *identity.Principal) map[string]struct{} {
	set := map[string]struct{}{"user": {}, "authenticated": {}}
	for r := range p.Roles {
		set[r] = struct{}{}
	}
	return set
}

// tableRoleSet uses the principal's role set as resolved by the shared
// identity helper (seeded with "authenticated" only).
func tableRoleSet(p *identity.Principal) map[string]struct{} {
	return p.Roles
}

// disjoint reports whether none of the allowed roles is in have. An empty
// allowed list means unrestricted access and is never disjoint.
func disjoint(allowed []string, have map[string]struct{}) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, role := range allowed {
		if _, ok := have[role]; ok {
			return false
		}
	}
	return true
}
