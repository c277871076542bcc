package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/backup"
	"github.com/hackgods/gov-appointments/internal/migrations"
)

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrations.Up(e.cfg.PostgresDSN); err != nil {
				return err
			}
			e.logger.Info("migrations applied")
			return nil
		},
	}
}

func newDumpCommand(e *env) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every table to a JSON dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := e.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			d, err := backup.Take(ctx, backup.NewPgStore(pool), time.Now().UTC())
			if err != nil {
				return err
			}

			if out == "-" {
				if err := d.Write(cmd.OutOrStdout()); err != nil {
					return fmt.Errorf("write dump: %w", err)
				}
			} else if err := writeFile(out, d); err != nil {
				return fmt.Errorf("write dump: %w", err)
			}

			e.logger.Info("dump written",
				"out", out,
				"collections", d.Metadata.TotalCollections,
				"documents", d.Metadata.TotalDocuments,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func writeFile(path string, d *backup.Dump) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := d.Write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newRestoreCommand(e *env) *cobra.Command {
	var (
		in         string
		checkpoint string
		chunk      int
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Load a JSON dump, resuming from a checkpoint if one exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(in)
			if err != nil {
				return err
			}
			d, err := backup.Read(bufio.NewReader(f))
			f.Close()
			if err != nil {
				return err
			}

			if err := migrations.Up(e.cfg.PostgresDSN); err != nil {
				return err
			}
			pool, err := e.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if chunk <= 0 {
				chunk = e.cfg.RestoreChunkSize
			}
			if checkpoint == "" {
				checkpoint = in + ".checkpoint"
			}

			report, err := backup.NewRestorer(backup.NewPgStore(pool), chunk, checkpoint, e.logger).Restore(ctx, d)
			if err != nil {
				return fmt.Errorf("restore (rerun to resume from %s): %w", checkpoint, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "dump file to restore")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint file (default <in>.checkpoint)")
	cmd.Flags().IntVar(&chunk, "chunk", 0, "documents per transaction, at most 500")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// newTokenCommand mints a bearer token for an existing user, for smoke
// tests against a running server.
func newTokenCommand(e *env) *cobra.Command {
	var (
		userID string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			r := auth.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid --role %q", role)
			}
			tok, err := auth.NewIssuer(e.cfg.JWTSecret, e.cfg.TokenTTL).Issue(id, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleCitizen), "citizen, staff or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
