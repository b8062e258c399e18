package dashboard

import (
	"context"

	"dashboard-gateway/internal/central"
)

const clientesSlug = "clientes"

// clientesProbe is the subset of tenantdb.Registry the baseline-table
// synthesis needs: a cached presence/column probe, so repeat batches skip
// the information_schema round trip.
type clientesProbe interface {
	ClientesColumn(ctx context.Context, coords *central.Coordinates) (column string, exists bool, err error)
}

// synthesizeClientes builds the hard-coded "clientes" baseline table
// metadata row, when the underlying table exists in the tenant database.
// It is included when requested explicitly or when no explicit table
// slugs were given at all.
func synthesizeClientes(ctx context.Context, probe clientesProbe, coords *central.Coordinates) (*TableMetadata, bool) {
	col, exists, err := probe.ClientesColumn(ctx, coords)
	if err != nil || !exists {
		return nil, false
	}

	tmpl := `
		SELECT id, uuid, nome, nome_recebido, whatsapp, paused, created_at, updated_at, ` + col + ` AS ultimo_acesso
		FROM clientes
		ORDER BY id ASC
	`
	return &TableMetadata{
		ChartMetadata: ChartMetadata{
			ID:            0,
			Slug:          clientesSlug,
			Title:         "Clientes",
			Description:   "Baseline customer table.",
			QueryTemplate: tmpl,
			ParamSchema:   nil,
			DefaultParams: nil,
			IsActive:      true,
		},
		ColumnConfig: []ColumnConfig{
			{Key: "id", Label: "ID", Type: "number"},
			{Key: "nome", Label: "Nome", Type: "string"},
			{Key: "whatsapp", Label: "WhatsApp", Type: "string"},
			{Key: "paused", Label: "Pausado", Type: "boolean"},
			{Key: "ultimo_acesso", Label: "Último acesso", Type: "date"},
		},
		PrimaryKey: "id",
	}, true
}
