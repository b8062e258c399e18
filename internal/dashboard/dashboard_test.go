package dashboard

import (
	"testing"

	"dashboard-gateway/internal/identity"
)

func TestChartRoleSet_SeedsUserAndAuthenticated(t *testing.T) {
	p := &identity.Principal{Roles: map[string]struct{}{"authenticated": {}}}
	set := chartRoleSet(p)
	for _, want := range []string{"user", "authenticated"} {
		if _, ok := set[want]; !ok {
			t.Fatalf("chart role set %v missing %q", set, want)
		}
	}
}

func TestTableRoleSet_DoesNotAddUser(t *testing.T) {
	p := &identity.Principal{Roles: map[string]struct{}{"authenticated": {}}}
	set := tableRoleSet(p)
	if _, ok := set["user"]; ok {
		t.Fatal("table role set should not implicitly contain user")
	}
}

func TestDisjoint_RoleGate(t *testing.T) {
	have := map[string]struct{}{"authenticated": {}}
	if !disjoint([]string{"admin"}, have) {
		t.Fatal("expected disjoint true: principal lacks admin")
	}
	if disjoint([]string{"admin", "authenticated"}, have) {
		t.Fatal("expected disjoint false: authenticated is shared")
	}
	if disjoint(nil, have) {
		t.Fatal("empty allowed_roles means unrestricted, never disjoint")
	}
}

func TestReportMissing_FlagsOnlyAbsentSlugs(t *testing.T) {
	requested := []SlugParams{{Slug: "a"}, {Slug: "b"}, {Slug: "c"}}
	found := []string{"a", "c"}
	errs := map[string]string{}

	reportMissing(requested, found, errs)

	if _, ok := errs["a"]; ok {
		t.Fatal("a was found, should not be flagged missing")
	}
	if _, ok := errs["c"]; ok {
		t.Fatal("c was found, should not be flagged missing")
	}
	if errs["b"] == "" {
		t.Fatal("b was not found, should be flagged missing")
	}
}

func TestReportMissing_DoesNotOverwriteExistingError(t *testing.T) {
	requested := []SlugParams{{Slug: "a"}}
	errs := map[string]string{"a": "Parâmetro obrigatório ausente: x"}

	reportMissing(requested, nil, errs)

	if errs["a"] != "Parâmetro obrigatório ausente: x" {
		t.Fatalf("existing error should not be overwritten, got %q", errs["a"])
	}
}

func TestInsertSorted_KeepsAscendingOrder(t *testing.T) {
	tables := []TableMetadata{
		{ChartMetadata: ChartMetadata{ID: 5}},
		{ChartMetadata: ChartMetadata{ID: 10}},
	}
	out := insertSorted(tables, TableMetadata{ChartMetadata: ChartMetadata{ID: 0}})
	if len(out) != 3 || out[0].ID != 0 || out[1].ID != 5 || out[2].ID != 10 {
		t.Fatalf("insertSorted produced %v", out)
	}
}

func TestSample_TruncatesToThree(t *testing.T) {
	rows := []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}, {"a": 4}}
	got := sample(rows)
	if len(got) != 3 {
		t.Fatalf("sample len = %d, want 3", len(got))
	}
}

func TestSample_PassesThroughSmallSets(t *testing.T) {
	rows := []map[string]any{{"a": 1}}
	got := sample(rows)
	if len(got) != 1 {
		t.Fatalf("sample len = %d, want 1", len(got))
	}
}
