package dashboard

import "strconv"

func slugsOf(items []SlugParams) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, i := range items {
		out = append(out, i.Slug)
	}
	return out
}

func indexParams(items []SlugParams) map[string]map[string]any {
	out := make(map[string]map[string]any, len(items))
	for _, i := range items {
		out[i.Slug] = i.Params
	}
	return out
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// sample returns a small head of rows, for the debug payload.
func sample(rows []map[string]any) []map[string]any {
	const max = 3
	if len(rows) <= max {
		return rows
	}
	return rows[:max]
}

func containsSlug(slugs []string, target string) bool {
	for _, s := range slugs {
		if s == target {
			return true
		}
	}
	return false
}

func chartSlugs(charts []ChartMetadata) []string {
	out := make([]string, len(charts))
	for i, c := range charts {
		out[i] = c.Slug
	}
	return out
}

func tableMetaSlugs(tables []TableMetadata) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Slug
	}
	return out
}

// reportMissing records "not found or inactive" for any requested slug
// absent from the found set, unless that slug already has an error
// recorded (e.g. an empty template or role-gate failure — those are more
// specific than a blanket not-found).
func reportMissing(requested []SlugParams, found []string, errs map[string]string) {
	foundSet := make(map[string]struct{}, len(found))
	for _, s := range found {
		foundSet[s] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := foundSet[r.Slug]; ok {
			continue
		}
		if _, already := errs[r.Slug]; already {
			continue
		}
		errs[r.Slug] = "Gráfico/Tabela não encontrado ou inativo."
	}
}

// insertSorted inserts tm into tables keeping ascending-id ordering; used
// only for the synthesized clientes row, whose ID is always 0 so it sorts
// first among real metadata ids.
func insertSorted(tables []TableMetadata, tm TableMetadata) []TableMetadata {
	out := make([]TableMetadata, 0, len(tables)+1)
	inserted := false
	for _, t := range tables {
		if !inserted && tm.ID < t.ID {
			out = append(out, tm)
			inserted = true
		}
		out = append(out, t)
	}
	if !inserted {
		out = append(out, tm)
	}
	return out
}
