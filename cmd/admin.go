package main

import (
	"context"
	"fmt"
	"time"

	"vocabapp/internal/config"
	"vocabapp/internal/models"
	"vocabapp/internal/repositories"
	"vocabapp/internal/services"
	"vocabapp/pkg/database"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	for _, direction := range []string{database.DirectionUp, database.DirectionDown} {
		cmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: "Migrate " + direction,
			RunE: func(cmd *cobra.Command, args []string) error {
				dsn, err := config.LoadDatabaseURL()
				if err != nil {
					return err
				}
				if err := database.Migrate(dsn, direction); err != nil {
					return err
				}
				v, dirty, err := database.Version(dsn)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
				return nil
			},
		})
	}
	return cmd
}

func newTenantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Create tenants and change their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var name, plan string
	create := &cobra.Command{
		Use:   "create <slug>",
		Short: "Create an active tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantService(cmd.Context(), func(ctx context.Context, svc services.TenantService) error {
				tenant, err := svc.Create(ctx, &services.CreateTenantRequest{Name: name, Slug: args[0], Plan: plan})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created tenant %s (%s)\n", tenant.Slug, tenant.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&plan, "plan", "free", "Subscription plan")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	cmd.AddCommand(newTenantStatusCommand("suspend", models.TenantStatusSuspended))
	cmd.AddCommand(newTenantStatusCommand("activate", models.TenantStatusActive))
	return cmd
}

func newTenantStatusCommand(use, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <slug>",
		Short: "Set tenant status to " + status,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenantService(cmd.Context(), func(ctx context.Context, svc services.TenantService) error {
				tenant, err := svc.SetStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %s is now %s\n", tenant.Slug, tenant.Status)
				return nil
			})
		},
	}
}

func withTenantService(ctx context.Context, fn func(context.Context, services.TenantService) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dsn, err := config.LoadDatabaseURL()
	if err != nil {
		return err
	}
	pool, err := database.NewPool(ctx, dsn, database.PoolConfig{MaxConns: 2}, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, services.NewTenantService(repositories.NewTenantRepo(pool)))
}
