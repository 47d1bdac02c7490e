package main

import (
	"fmt"
	"io"

	"vedtak/internal/bootstrap"
	"vedtak/internal/models"
	"vedtak/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		mode        string
		ids         []string
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automatic orchestrator for a list of case instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			runMode := models.RunMode(mode)
			if !runMode.Valid() {
				return fmt.Errorf("invalid mode %q", mode)
			}
			caseInstances, err := parseCaseInstanceIDs(ids)
			if err != nil {
				return err
			}
			if len(caseInstances) == 0 {
				return fmt.Errorf("at least one --ids value is required")
			}

			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				if parallelism < 1 {
					parallelism = app.Config.Scheduler.ResumeParallelism
				}
				outcomes, err := app.Automatic.RunBatch(cmd.Context(), caseInstances, runMode, parallelism)
				failed := printOutcomes(cmd.OutOrStdout(), outcomes)
				if err != nil {
					return fmt.Errorf("batch interrupted: %w", err)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(models.RunModeFull), "Run mode (FULL_RUN, RUN_THEN_PAUSE, RESUME_AFTER_PAUSE)")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Comma separated case instance IDs")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "Maximum concurrent runs (defaults to SCHEDULER_RESUME_PARALLELISM)")

	return cmd
}

func resumePausedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "resume-paused",
		Short: "Resume automatic runs that stopped after the pause point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				cfg := app.Config.Scheduler
				if limit < 1 {
					limit = cfg.ResumeBatchSize
				}
				outcomes, err := app.Automatic.ResumePaused(cmd.Context(), limit, cfg.ResumeParallelism)
				failed := printOutcomes(cmd.OutOrStdout(), outcomes)
				if err != nil {
					return fmt.Errorf("failed to resume paused runs: %w", err)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d resumed runs failed", failed, len(outcomes))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum runs to resume (defaults to SCHEDULER_RESUME_BATCH_SIZE)")

	return cmd
}

func drainOutboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain-outbox",
		Short: "Deliver every due outbox message and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				n, err := app.Dispatcher.Drain(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d outbox messages\n", n)
				if err != nil {
					return fmt.Errorf("failed to drain outbox: %w", err)
				}
				return nil
			})
		},
	}
}

func parseCaseInstanceIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid case instance ID %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printOutcomes writes one line per run and returns the number of failures
func printOutcomes(w io.Writer, outcomes []service.RunOutcome) int {
	failed := 0
	for _, o := range outcomes {
		switch {
		case o.CaseInstanceID == uuid.Nil:
			// not started before cancellation
		case o.Err != nil:
			failed++
			fmt.Fprintf(w, "%s\tFAILED\t%v\n", o.CaseInstanceID, o.Err)
		case o.Decision != nil:
			fmt.Fprintf(w, "%s\t%s\n", o.CaseInstanceID, o.Decision.Status)
		default:
			fmt.Fprintf(w, "%s\tOK\n", o.CaseInstanceID)
		}
	}
	return failed
}
