package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	app "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// historyEntry is one past verdict in an import file.
type historyEntry struct {
	Posting model.Posting `yaml:"posting"`
	Verdict string        `yaml:"verdict"`
}

type importSummary struct {
	Imported int
	Skipped  int
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <history.yaml>",
		Short: "Replay past approve/refuse decisions to bootstrap the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx, cmd, flags)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			var entries []historyEntry
			if err := yaml.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("decode history %s: %w", args[0], err)
			}

			svc, err := startOffline(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Stop()

			sum, err := importHistory(ctx, svc, entries)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d decisions, skipped %d\n", sum.Imported, sum.Skipped)
			return nil
		},
	}
}

// importHistory registers each posting and applies its verdict. A posting
// seen before is decided again, which leaves the model as if only the
// latest verdict was given. Entries with nothing to key them on, and entries
// whose fingerprint cannot be found again, are skipped and counted.
func importHistory(ctx context.Context, svc *app.Service, entries []historyEntry) (importSummary, error) {
	var sum importSummary
	log := logger.Named("import")
	now := time.Now().UTC()

	for i := range entries {
		e := entries[i]
		verdict, err := model.ParseVerdict(e.Verdict)
		if err != nil {
			log.Warn(ctx, "skipping entry", logger.Int("index", i), logger.Error(err))
			sum.Skipped++
			continue
		}
		if unkeyed(e.Posting) {
			log.Warn(ctx, "skipping entry without title, company or source id", logger.Int("index", i))
			sum.Skipped++
			continue
		}
		if e.Posting.DiscoveredAt.IsZero() {
			e.Posting.DiscoveredAt = now
		}

		results, err := svc.Rank(ctx, []model.Posting{e.Posting})
		if err != nil {
			return sum, err
		}
		var fp model.Fingerprint
		if len(results) == 1 {
			fp = results[0].Fingerprint
		} else if fp, err = svc.Fingerprint(e.Posting); err != nil {
			return sum, err
		}

		if _, err := svc.RecordDecision(ctx, fp, verdict); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				log.Warn(ctx, "skipping entry with unknown fingerprint", logger.Int("index", i), logger.String("fingerprint", fp.Short()))
				sum.Skipped++
				continue
			}
			return sum, fmt.Errorf("entry %d: %w", i, err)
		}
		sum.Imported++
	}
	return sum, nil
}

// unkeyed reports whether p carries no field a fingerprint could be derived
// from deterministically.
func unkeyed(p model.Posting) bool {
	for _, f := range []string{p.Title, p.Company, p.Source, p.ExternalID} {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
