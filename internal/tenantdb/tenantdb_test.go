package tenantdb

import (
	"strings"
	"testing"

	"dashboard-gateway/internal/central"
)

func TestConnString_URLEncodesCredentials(t *testing.T) {
	coords := central.Coordinates{
		Host:       "db.example.com",
		Port:       5432,
		DBName:     "tenant_one",
		DBUser:     "user name",
		DBPassword: "p@ss/word",
	}
	got := ConnString(coords)
	if strings.Contains(got, "p@ss/word") {
		t.Fatalf("raw password leaked into dsn: %q", got)
	}
	if !strings.Contains(got, "db.example.com:5432/tenant_one") {
		t.Fatalf("dsn missing host/db: %q", got)
	}
}

func TestConnString_StableForSameCoordinates(t *testing.T) {
	coords := central.Coordinates{Host: "h", Port: 5432, DBName: "d", DBUser: "u", DBPassword: "p"}
	a := ConnString(coords)
	b := ConnString(coords)
	if a != b {
		t.Fatalf("ConnString not stable: %q vs %q", a, b)
	}
}
