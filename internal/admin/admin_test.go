package admin

import (
	"context"
	"errors"
	"testing"

	"dashboard-gateway/internal/central"
)

type fakeProvisioner struct {
	nextID      string
	createCalls int
	deleteCalls int
	failDelete  bool
}

func (f *fakeProvisioner) CreateUser(ctx context.Context, email, password string) (string, error) {
	f.createCalls++
	return f.nextID, nil
}

func (f *fakeProvisioner) DeleteUser(ctx context.Context, userID string) error {
	f.deleteCalls++
	if f.failDelete {
		return errors.New("boom")
	}
	return nil
}

type fakeDirectory struct {
	insertErr error
	inserted  []string
	companies []central.CompanyInfo
}

func (f *fakeDirectory) InsertTenant(ctx context.Context, principalID string, c central.Coordinates) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, principalID)
	return nil
}

func (f *fakeDirectory) ListCompanies(ctx context.Context, principalID string) ([]central.CompanyInfo, error) {
	return f.companies, nil
}

func TestValidateChartInput_RequiresSlugAndTitle(t *testing.T) {
	if err := validateChartInput(ChartInput{}); err == nil {
		t.Fatal("expected error for empty slug/title")
	}
	if err := validateChartInput(ChartInput{Slug: "a"}); err == nil {
		t.Fatal("expected error for missing title")
	}
	if err := validateChartInput(ChartInput{Slug: "a", Title: "A"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterUser_CreatesAndPersists(t *testing.T) {
	prov := &fakeProvisioner{nextID: "user-1"}
	dir := &fakeDirectory{}
	s := newService(dir, prov)

	id, err := s.RegisterUser(context.Background(), RegisterUserInput{
		Email: "ana@example.com", Password: "hunter2", CompanyName: "Acme",
	})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if id != "user-1" {
		t.Fatalf("id = %q, want user-1", id)
	}
	if prov.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", prov.createCalls)
	}
	if len(dir.inserted) != 1 {
		t.Fatalf("inserted = %v, want one row", dir.inserted)
	}
}

func TestRegisterUser_RetryWithSameCredentialsIsIdempotent(t *testing.T) {
	prov := &fakeProvisioner{nextID: "user-1"}
	dir := &fakeDirectory{}
	s := newService(dir, prov)

	in := RegisterUserInput{Email: "ana@example.com", Password: "hunter2", CompanyName: "Acme"}
	if _, err := s.RegisterUser(context.Background(), in); err != nil {
		t.Fatalf("first RegisterUser: %v", err)
	}
	if _, err := s.RegisterUser(context.Background(), in); err != nil {
		t.Fatalf("second RegisterUser: %v", err)
	}

	if prov.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1 (second call should hit the idempotency cache)", prov.createCalls)
	}
	if len(dir.inserted) != 1 {
		t.Fatalf("inserted = %v, want one row (no duplicate insert)", dir.inserted)
	}
}

func TestRegisterUser_DifferentPasswordBypassesCache(t *testing.T) {
	prov := &fakeProvisioner{nextID: "user-1"}
	dir := &fakeDirectory{}
	s := newService(dir, prov)

	email := "ana@example.com"
	if _, err := s.RegisterUser(context.Background(), RegisterUserInput{Email: email, Password: "first"}); err != nil {
		t.Fatalf("first RegisterUser: %v", err)
	}
	if _, err := s.RegisterUser(context.Background(), RegisterUserInput{Email: email, Password: "second"}); err != nil {
		t.Fatalf("second RegisterUser: %v", err)
	}

	if prov.createCalls != 2 {
		t.Fatalf("createCalls = %d, want 2 (different password should not hit cache)", prov.createCalls)
	}
}

func TestRegisterUser_RollsBackIdentityUserOnPersistFailure(t *testing.T) {
	prov := &fakeProvisioner{nextID: "user-1"}
	dir := &fakeDirectory{insertErr: errors.New("db down")}
	s := newService(dir, prov)

	_, err := s.RegisterUser(context.Background(), RegisterUserInput{Email: "ana@example.com", Password: "hunter2"})
	if err == nil {
		t.Fatal("expected error when tenant persistence fails")
	}
	if prov.deleteCalls != 1 {
		t.Fatalf("deleteCalls = %d, want 1 (rollback should delete the identity-provider user)", prov.deleteCalls)
	}
}

func TestRegisterUser_RequiresEmailAndPassword(t *testing.T) {
	s := newService(&fakeDirectory{}, &fakeProvisioner{})
	if _, err := s.RegisterUser(context.Background(), RegisterUserInput{}); err == nil {
		t.Fatal("expected error for missing email/password")
	}
}

func TestListCompanies_DelegatesToDirectory(t *testing.T) {
	dir := &fakeDirectory{companies: []central.CompanyInfo{{PrincipalID: "p1", CompanyName: "Acme"}}}
	s := newService(dir, &fakeProvisioner{})

	got, err := s.ListCompanies(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListCompanies: %v", err)
	}
	if len(got) != 1 || got[0].CompanyName != "Acme" {
		t.Fatalf("got %v", got)
	}
}
