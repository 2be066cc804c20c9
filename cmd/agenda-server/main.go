package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clinicagenda/agenda/internal/config"
	"github.com/clinicagenda/agenda/internal/platform/auth"
	"github.com/clinicagenda/agenda/internal/platform/db"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
	"github.com/clinicagenda/agenda/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agenda-server",
		Short: "Clinic agenda API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agenda API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource reads the embedded migrations unless dir overrides them.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic and optionally add its first members",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			rawID, _ := cmd.Flags().GetString("id")
			members, _ := cmd.Flags().GetStringSlice("member")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			var id uuid.UUID
			if rawID != "" {
				parsed, err := uuid.Parse(rawID)
				if err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
				id = parsed
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := db.NewTenantStore(pool)
			t, err := store.CreateTenant(ctx, id, name)
			if err != nil {
				return err
			}
			fmt.Printf("Created clinic %s (%s)\n", t.Name, t.ID)

			for _, m := range members {
				userID, role, err := parseMember(m)
				if err != nil {
					return err
				}
				if err := store.AddMember(ctx, t.ID, userID, role); err != nil {
					return err
				}
				fmt.Printf("Added %s as %s\n", userID, role)
			}
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic name")
	createCmd.Flags().String("id", "", "Clinic id (random when empty)")
	createCmd.Flags().StringSlice("member", nil, "Member as user_id[:role]; role defaults to professional")

	cmd.AddCommand(createCmd)
	return cmd
}

// parseMember splits "user[:role]".
func parseMember(s string) (string, string, error) {
	userID, role, found := strings.Cut(s, ":")
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", fmt.Errorf("invalid --member %q: user id is required", s)
	}
	if !found || role == "" {
		return userID, auth.RoleProfessional, nil
	}
	switch role {
	case auth.RoleAdmin, auth.RoleProfessional, auth.RoleAssistant:
		return userID, role, nil
	}
	return "", "", fmt.Errorf("invalid --member %q: unknown role %q", s, role)
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 token for a shared_secret deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			tenantID, _ := cmd.Flags().GetString("tenant")
			tenants, _ := cmd.Flags().GetStringSlice("tenants")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			key := os.Getenv("AUTH_SIGNING_KEY")
			if key == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}
			if tenantID != "" && len(tenants) == 0 {
				tenants = []string{tenantID}
			}
			if tenantID == "" {
				tenantID = config.DemoTenantID
			}

			signed, err := auth.MintHS256([]byte(key), auth.TokenRequest{
				Subject:  subject,
				Issuer:   os.Getenv("AUTH_ISSUER"),
				Audience: os.Getenv("AUTH_AUDIENCE"),
				TenantID: tenantID,
				Tenants:  tenants,
				Roles:    roles,
				TTL:      ttl,
			})
			if err != nil {
				return err
			}
			fmt.Println(signed)
			fmt.Fprintf(os.Stderr, "professional id: %s\n", tenant.ProfessionalIDFor(subject))
			return nil
		},
	}
	cmd.Flags().String("subject", "", "User id placed in the sub claim")
	cmd.Flags().String("tenant", "", "Clinic selected at login (demo clinic when empty)")
	cmd.Flags().StringSlice("tenants", nil, "Clinics the user belongs to (defaults to --tenant)")
	cmd.Flags().StringSlice("role", []string{auth.RoleProfessional}, "Roles granted to the user")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
