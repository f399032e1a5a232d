package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgent/flowgent/internal/events"
	"github.com/flowgent/flowgent/internal/executions"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Requeue executions that were never dispatched",
	Long: `Run one reconciler sweep: every execution still undispatched after
reconciler.stale_after gets its workflow/execute event published again.

A running server picks the events up on its next bus tick.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	bus := events.NewEventBus(db, events.Config{})
	dispatcher := executions.NewDispatcher(executions.NewStore(db), bus)
	reconciler := executions.NewReconciler(dispatcher, cfg.Reconciler.StaleAfter, cfg.Reconciler.BatchSize)

	n, err := reconciler.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Requeued %d executions\n", n)
	return nil
}
