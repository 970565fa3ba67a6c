package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/backend"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/cascade"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/cost"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/pipeline"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/resilience"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/validate"
)

var (
	analyzeInput       string
	analyzeConcurrency int
	analyzeLimit       int
	analyzeRetryOnly   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze passages for figurative language",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		passages, err := loadPassages(analyzeInput)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if analyzeRetryOnly {
			passages, err = filterUnresolved(ctx, st, passages)
			if err != nil {
				return err
			}
			if len(passages) == 0 {
				zap.L().Info("no unresolved passages to retry")
				return nil
			}
		}

		if analyzeLimit > 0 && len(passages) > analyzeLimit {
			passages = passages[:analyzeLimit]
		}

		tracker := cost.NewTracker(cfg.Pricing)
		retryCfg := cfg.Retry.Resilience()

		detector, err := buildCascade(ctx, cfg.Tiers.Detection, retryCfg, tracker)
		if err != nil {
			return eris.Wrap(err, "build detection cascade")
		}
		verifier, err := buildCascade(ctx, cfg.Tiers.Validation, retryCfg, tracker)
		if err != nil {
			return eris.Wrap(err, "build validation cascade")
		}
		verifier.WithRequiredKeys(model.VerdictRequiredKeys())

		concurrency := analyzeConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		zap.L().Info("starting analysis",
			zap.Int("passages", len(passages)),
			zap.Int("concurrency", concurrency),
		)

		proc := pipeline.New(detector, validate.New(verifier), st, tracker).
			WithProgressEvery(cfg.Batch.ProgressEvery)

		summary, err := proc.Process(ctx, passages, concurrency)
		if summary != nil {
			printSummary(cmd, summary)
		}
		return err
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "passages file (.yaml or .jsonl)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "worker count (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max passages to process (0 = all)")
	analyzeCmd.Flags().BoolVar(&analyzeRetryOnly, "retry-unresolved", false, "only reprocess passages whose last run was truncated or failed")
	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

func buildCascade(ctx context.Context, profiles []backend.Profile, retryCfg resilience.RetryConfig, tracker *cost.Tracker) (*cascade.Cascade, error) {
	tiers := make([]backend.Backend, 0, len(profiles))
	for _, profile := range profiles {
		b, err := backend.New(ctx, profile, cfg.Keys)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, b)
	}
	c, err := cascade.New(retryCfg, tiers...)
	if err != nil {
		return nil, err
	}
	return c.WithUsageRecorder(tracker.Record), nil
}

// loadPassages reads a passage list from a YAML file or JSON Lines file,
// picking the format by extension.
func loadPassages(path string) ([]model.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open passages file %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		var passages []model.Passage
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var p model.Passage
			if err := json.Unmarshal([]byte(text), &p); err != nil {
				return nil, eris.Wrapf(err, "parse passage at line %d", line)
			}
			passages = append(passages, p)
		}
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrap(err, "read passages file")
		}
		return passages, nil
	case ".yaml", ".yml":
		var passages []model.Passage
		if err := yaml.NewDecoder(f).Decode(&passages); err != nil {
			return nil, eris.Wrap(err, "parse passages file")
		}
		return passages, nil
	default:
		return nil, eris.Errorf("unsupported passages format: %s", filepath.Ext(path))
	}
}

func filterUnresolved(ctx context.Context, st unresolvedLister, passages []model.Passage) ([]model.Passage, error) {
	refs, err := st.UnresolvedRefs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list unresolved passages")
	}
	wanted := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		wanted[r] = struct{}{}
	}
	kept := passages[:0:0]
	for _, p := range passages {
		if _, ok := wanted[p.Reference()]; ok {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

type unresolvedLister interface {
	UnresolvedRefs(ctx context.Context) ([]string, error)
}

func printSummary(cmd *cobra.Command, summary *model.Summary) {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		zap.L().Error("marshal summary", zap.Error(err))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
