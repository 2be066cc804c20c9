//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicagenda/agenda/internal/platform/db"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
	"github.com/clinicagenda/agenda/migrations"
)

// globalPool is the shared database, migrated once in TestMain.
var globalPool *pgxpool.Pool

// TestMain connects to TEST_DATABASE_URL and applies the embedded
// migrations. Every test creates its own clinic, so runs do not interfere.
func TestMain(m *testing.M) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "TEST_DATABASE_URL is not set, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, 5, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		pool.Close()
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	os.Exit(code)
}

// newClinic creates a tenant with one professional member and returns the
// professional's scope. The tenant is removed when the test ends.
func newClinic(t *testing.T, ctx context.Context) tenant.Scope {
	t.Helper()
	store := db.NewTenantStore(globalPool)
	clinic, err := store.CreateTenant(ctx, uuid.Nil, "Clinic "+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	userID := "pro-" + uuid.NewString()[:8]
	if err := store.AddMember(ctx, clinic.ID, userID, "professional"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	t.Cleanup(func() {
		if _, err := globalPool.Exec(context.Background(), `DELETE FROM tenants WHERE id = $1`, clinic.ID); err != nil {
			t.Logf("warning: failed to drop tenant %s: %v", clinic.ID, err)
		}
	})
	return tenant.Scope{
		TenantID:       clinic.ID,
		ProfessionalID: tenant.ProfessionalIDFor(userID),
		UserID:         userID,
		Roles:          []string{"professional"},
	}
}

func ptrStr(s string) *string { return &s }
