package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowgent/flowgent/internal/credentials"
	"github.com/flowgent/flowgent/internal/database"
	"github.com/flowgent/flowgent/internal/scheduler"
	"github.com/flowgent/flowgent/internal/webhooks"
	"github.com/flowgent/flowgent/internal/workflows"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load workflows, webhook endpoints and schedules from YAML",
	Long: `Create or update workflows and their triggers from a YAML file.

Seeding is idempotent: workflows and schedules are matched by id and
endpoints by path. An endpoint without a path gets a generated one, which
is printed.

Example:
  workflows:
    - id: wf-github-push
      user_id: user-1
      name: On push
      is_active: true
      webhooks:
        - path: github-push
          is_active: true
          verification:
            type: hmac-sha256
            header: X-Hub-Signature-256
            secret: ${GITHUB_WEBHOOK_SECRET}
      schedules:
        - id: nightly-sync
          cron: "0 2 * * *"
          timezone: Europe/Berlin
          is_active: true`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedFile struct {
	Workflows []seedWorkflow `yaml:"workflows"`
}

type seedWorkflow struct {
	ID          string               `yaml:"id"`
	UserID      string               `yaml:"user_id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	IsActive    bool                 `yaml:"is_active"`
	Webhooks    []*webhooks.Endpoint `yaml:"webhooks"`
	Schedules   []*scheduler.Trigger `yaml:"schedules"`
}

type seedResult struct {
	Workflows int
	Endpoints []*webhooks.Endpoint
	Schedules []*scheduler.Trigger
}

func parseSeedFile(data []byte) (*seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	for i, wf := range f.Workflows {
		if wf.UserID == "" || wf.Name == "" {
			return nil, fmt.Errorf("workflows[%d]: user_id and name are required", i)
		}
	}
	return &f, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	f, err := parseSeedFile(data)
	if err != nil {
		return err
	}

	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	// Verification secrets are sealed with the credentials key, so seeding one
	// without a key fails with webhooks.ErrNoSealer.
	var sealer webhooks.SecretSealer
	if cfg.Credentials.EncryptionKey != "" {
		key, err := credentials.ParseKey(cfg.Credentials.EncryptionKey)
		if err != nil {
			return err
		}
		if sealer, err = credentials.NewSealer(key); err != nil {
			return err
		}
	}

	result, err := seed(cmd.Context(), db, sealer, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range result.Endpoints {
		fmt.Fprintf(out, "  /api/webhooks/%s -> %s\n", e.Path, e.WorkflowID)
	}
	for _, tr := range result.Schedules {
		fmt.Fprintf(out, "  %s (%s) -> %s, next run %s\n", tr.CronExpression, tr.Timezone, tr.WorkflowID,
			tr.NextRunAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "✓ Seeded %d workflows, %d webhook endpoints and %d schedules\n",
		result.Workflows, len(result.Endpoints), len(result.Schedules))
	return nil
}

func seed(ctx context.Context, db *database.DB, sealer webhooks.SecretSealer, f *seedFile) (*seedResult, error) {
	wfStore := workflows.NewStore(db)
	endpointStore := webhooks.NewStore(db, sealer)
	scheduleStore := scheduler.NewStore(db)

	result := &seedResult{}
	for _, sw := range f.Workflows {
		wf := &workflows.Workflow{
			ID:          sw.ID,
			UserID:      sw.UserID,
			Name:        sw.Name,
			Description: sw.Description,
			IsActive:    sw.IsActive,
		}
		if err := wfStore.Upsert(ctx, wf); err != nil {
			return nil, fmt.Errorf("seeding workflow %q: %w", sw.Name, err)
		}
		result.Workflows++

		for _, e := range sw.Webhooks {
			e.WorkflowID = wf.ID

			var err error
			if e.Path == "" {
				err = endpointStore.Create(ctx, e)
			} else {
				err = endpointStore.Upsert(ctx, e)
			}
			if err != nil {
				return nil, fmt.Errorf("seeding webhook for workflow %q: %w", sw.Name, err)
			}

			log.Debug().Str("path", e.Path).Str("workflow_id", wf.ID).Msg("Seeded webhook endpoint")
			result.Endpoints = append(result.Endpoints, e)
		}

		for _, tr := range sw.Schedules {
			tr.WorkflowID = wf.ID

			var err error
			if tr.ID == "" {
				err = scheduleStore.Create(ctx, tr)
			} else {
				err = scheduleStore.Upsert(ctx, tr)
			}
			if err != nil {
				return nil, fmt.Errorf("seeding schedule for workflow %q: %w", sw.Name, err)
			}

			log.Debug().Str("trigger_id", tr.ID).Str("workflow_id", wf.ID).Msg("Seeded schedule trigger")
			result.Schedules = append(result.Schedules, tr)
		}
	}

	return result, nil
}
