package postgres

import (
	"testing"
	"time"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

func TestListQueryBuild(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var q listQuery
	q.add("lower(wallet) = $%d", "0xabc")
	q.window("processed_at", domain.ListOpts{Since: &since})
	query, args := q.build("SELECT id FROM verifications", "processed_at DESC", domain.ListOpts{Limit: 10, Offset: 20})

	want := "SELECT id FROM verifications WHERE lower(wallet) = $1 AND processed_at >= $2 ORDER BY processed_at DESC LIMIT $3 OFFSET $4"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}
	if args[0] != "0xabc" || args[2] != 10 || args[3] != 20 {
		t.Fatalf("args = %v", args)
	}
}

func TestListQueryNoFilters(t *testing.T) {
	var q listQuery
	query, args := q.build("SELECT id FROM audit_log", "created_at DESC", domain.ListOpts{})
	if query != "SELECT id FROM audit_log ORDER BY created_at DESC" {
		t.Fatalf("query = %q", query)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v, want none", args)
	}
}

func TestDSN(t *testing.T) {
	got := DSN(ClientConfig{Host: "db.example.co", User: "u", Password: "p", Database: "postgres"})
	want := "postgres://u:p@db.example.co:5432/postgres?sslmode=require"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}); got != "postgres://x" {
		t.Fatalf("explicit DSN not preferred: %q", got)
	}
}
