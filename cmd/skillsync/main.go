// Command skillsync validates and repairs denormalized provider skill data.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/tradelink/internal/adapters/repository"
	service "github.com/okian/tradelink/internal/app"
	"github.com/okian/tradelink/internal/config"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// ExitCoder is implemented by errors that carry a process exit code.
type ExitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

// storeOpener returns the store the commands operate on.
type storeOpener func(ctx context.Context) (repository.Store, error)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ex ExitCoder
		if errors.As(err, &ex) {
			os.Exit(ex.ExitCode())
		}
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A nil open reads the store from the
// TRADELINK_* configuration.
func newRootCmd(open storeOpener) *cobra.Command {
	var (
		jsonOutput  bool
		verbose     bool
		databaseURL string
		fixturePath string
	)

	if open == nil {
		open = func(ctx context.Context) (repository.Store, error) {
			cfg, err := config.Load(ctx)
			if err != nil {
				return nil, err
			}
			if databaseURL != "" {
				cfg.DatabaseURL = databaseURL
			}
			if fixturePath != "" {
				cfg.FixturePath = fixturePath
			}
			return openStore(ctx, cfg)
		}
	}

	newMaintainer := func(ctx context.Context) (*service.SkillMaintainer, func(), error) {
		store, err := open(ctx)
		if err != nil {
			return nil, nil, err
		}
		log := logger.Discard()
		if verbose {
			// stderr keeps --json output on stdout parseable.
			if err := logger.InitWithWriter(os.Stderr, "text"); err != nil {
				return nil, nil, err
			}
			_ = logger.SetLevelString("debug")
			log = logger.Named("skillsync")
		}
		return service.NewSkillMaintainer(store, store, log), func() { _ = store.Close() }, nil
	}

	cmd := &cobra.Command{
		Use:           "skillsync",
		Short:         "Validate and repair provider skill data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every repair")
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (overrides TRADELINK_DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "YAML fixture for an in-memory store (overrides TRADELINK_FIXTURE_PATH)")

	cmd.AddCommand(newValidateCmd(newMaintainer, &jsonOutput))
	cmd.AddCommand(newRepairCmd(newMaintainer, &jsonOutput))

	return cmd
}

type maintainerFactory func(ctx context.Context) (*service.SkillMaintainer, func(), error)

type validateOutput struct {
	Checked      int                 `json:"checked"`
	Inconsistent []inconsistentEntry `json:"inconsistent"`
}

type inconsistentEntry struct {
	ProviderID string `json:"providerId"`
	Rule       string `json:"rule"`
	Detail     string `json:"detail"`
}

func newValidateCmd(newMaintainer maintainerFactory, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Report providers whose skill data is inconsistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeFn, err := newMaintainer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := m.Validate(cmd.Context())
			if err != nil {
				return err
			}

			out := validateOutput{Checked: len(reports), Inconsistent: []inconsistentEntry{}}
			for _, r := range reports {
				if !r.Consistent {
					out.Inconsistent = append(out.Inconsistent, inconsistentEntry{ProviderID: r.ProviderID, Rule: r.Rule, Detail: r.Detail})
				}
			}

			w := cmd.OutOrStdout()
			if *jsonOutput {
				if err := writeJSON(w, out); err != nil {
					return err
				}
			} else {
				for _, e := range out.Inconsistent {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.ProviderID, e.Rule, e.Detail)
				}
				fmt.Fprintf(w, "%d of %d providers inconsistent\n", len(out.Inconsistent), out.Checked)
			}

			if len(out.Inconsistent) > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("%d inconsistent providers", len(out.Inconsistent))}
			}
			return nil
		},
	}
}

type repairOutput struct {
	DryRun  bool           `json:"dryRun"`
	Results []repairEntry  `json:"results"`
	Totals  map[string]int `json:"totals"`
}

type repairEntry struct {
	ProviderID string `json:"providerId"`
	Rule       string `json:"rule"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

func newRepairCmd(newMaintainer maintainerFactory, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Rebuild legacy skill arrays from the structured skill list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeFn, err := newMaintainer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := m.Repair(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			out := repairOutput{
				DryRun:  dryRun,
				Results: make([]repairEntry, 0, len(results)),
				Totals: map[string]int{
					metrics.RepairRepaired: 0,
					metrics.RepairSkipped:  0,
					metrics.RepairFailed:   0,
				},
			}
			for _, r := range results {
				e := repairEntry{ProviderID: r.ProviderID, Rule: r.Rule, Outcome: r.Outcome}
				if r.Err != nil {
					e.Error = r.Err.Error()
				}
				out.Results = append(out.Results, e)
				out.Totals[r.Outcome]++
			}

			w := cmd.OutOrStdout()
			if *jsonOutput {
				if err := writeJSON(w, out); err != nil {
					return err
				}
			} else {
				for _, e := range out.Results {
					line := fmt.Sprintf("%s\t%s\t%s", e.ProviderID, e.Rule, e.Outcome)
					if e.Error != "" {
						line += "\t" + e.Error
					}
					fmt.Fprintln(w, line)
				}
				verb := "repaired"
				if dryRun {
					verb = "would repair"
				}
				fmt.Fprintf(w, "%s %d, failed %d\n", verb,
					out.Totals[metrics.RepairRepaired]+out.Totals[metrics.RepairSkipped], out.Totals[metrics.RepairFailed])
			}

			if n := out.Totals[metrics.RepairFailed]; n > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("%d providers could not be repaired", n)}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be repaired without saving")
	return cmd
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DatabaseURL != "" {
		return repository.OpenPostgres(ctx, cfg.DatabaseURL,
			repository.WithMaxConns(cfg.DatabaseMaxConns),
			repository.WithMigrate(cfg.DatabaseMigrate),
		)
	}
	if cfg.FixturePath == "" {
		return nil, errors.New("no store configured: set --database-url or --fixture")
	}
	mem := repository.NewMemoryStore()
	if err := repository.LoadFixture(mem, cfg.FixturePath, time.Now()); err != nil {
		return nil, err
	}
	return mem, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
