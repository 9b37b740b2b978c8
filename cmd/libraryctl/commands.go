package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/config"
	"github.com/matheusmosca/library-reservations/internal/httpapi"
	"github.com/matheusmosca/library-reservations/internal/logger"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/reservations"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Operator tooling for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd(), newSweepCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			zlog, err := logger.New(cfg.LogLevel, cfg.IsProduction())
			if err != nil {
				return err
			}
			defer zlog.Sync()

			db, err := storage.Open(cmd.Context(), storage.Config{
				Driver:        cfg.Database.Driver,
				DSN:           cfg.Database.DSN(),
				MaxConns:      cfg.Database.MaxConns,
				RetryAttempts: cfg.Database.RetryAttempts,
			}, zlog)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			zlog.Info("✅ [MIGRATE] schema up to date", zap.String("driver", db.Driver()))
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var (
		apiURL  string
		actorID string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark every pending or active reservation past its due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				return fmt.Errorf("an admin actor id is required (--actor or LIBRARY_ACTOR_ID)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := sweepOverdue(ctx, resty.New().SetBaseURL(apiURL), actorID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d updated=%d failed=%d\n", result.Scanned, result.Updated, result.Failed)
			for _, id := range result.ReservationIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", envOr("LIBRARY_API_URL", "http://localhost:8080"), "library service base URL")
	cmd.Flags().StringVar(&actorID, "actor", os.Getenv("LIBRARY_ACTOR_ID"), "id of an actor holding the admin capability")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")
	return cmd
}

type apiError struct {
	Error struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// sweepOverdue chama o endpoint de varredura com o ator informado
func sweepOverdue(ctx context.Context, client *resty.Client, actorID string) (*reservations.SweepResult, error) {
	var (
		result  reservations.SweepResult
		failure apiError
	)

	resp, err := client.R().
		SetContext(ctx).
		SetHeader(httpapi.ActorHeader, actorID).
		SetResult(&result).
		SetError(&failure).
		Post("/api/reservations/sweep-overdue")
	if err != nil {
		return nil, fmt.Errorf("sweep request failed: %w", err)
	}
	if resp.IsError() {
		if failure.Error.Message != "" {
			return nil, fmt.Errorf("sweep rejected (%d %s): %s", resp.StatusCode(), failure.Error.Kind, failure.Error.Message)
		}
		return nil, fmt.Errorf("sweep rejected: %s", resp.Status())
	}
	return &result, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
