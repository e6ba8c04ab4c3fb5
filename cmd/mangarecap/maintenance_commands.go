package main

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mangarecap/internal/cache"
	"mangarecap/internal/checkpoint"
	"mangarecap/internal/config"
	"mangarecap/internal/logging"
)

// runDirFlag lets maintenance commands target a run directory other than
// paths.work_dir.
type runDirFlag struct {
	dir string
}

func (f *runDirFlag) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.dir, "temp", "", "Run directory (defaults to paths.work_dir)")
}

func (f *runDirFlag) resolve(ctx *commandContext) (*config.Config, *slog.Logger, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(f.dir) != "" {
		if cfg, err = cfg.WithWorkDir(f.dir); err != nil {
			return nil, nil, fmt.Errorf("resolve --temp: %w", err)
		}
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newCacheCommand(ctx *commandContext) *cobra.Command {
	var target runDirFlag
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the provider result cache",
	}
	target.register(cacheCmd)

	withStore := func(cmd *cobra.Command, fn func(cache.Store) error) error {
		cfg, logger, err := target.resolve(ctx)
		if err != nil {
			return err
		}
		store, err := cache.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(store)
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store cache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Backend", stats.Backend},
					{"Location", stats.Location},
					{"Entries", strconv.Itoa(stats.Entries)},
					{"Expired", strconv.Itoa(stats.Expired)},
					{"Size", humanize.IBytes(uint64(max(stats.Bytes, 0)))},
				}
				if stats.MemoryItems > 0 {
					rows = append(rows, []string{"In memory", strconv.Itoa(stats.MemoryItems)})
				}
				kinds := make([]string, 0, len(stats.ByKind))
				for kind := range stats.ByKind {
					kinds = append(kinds, kind)
				}
				slices.Sort(kinds)
				for _, kind := range kinds {
					rows = append(rows, []string{"Kind " + kind, strconv.Itoa(stats.ByKind[kind])})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store cache.Store) error {
				removed, err := store.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired entries\n", removed)
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store cache.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries\n", removed)
				return nil
			})
		},
	})

	return cacheCmd
}

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	var target runDirFlag
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and reset per-chapter progress",
	}
	target.register(checkpointCmd)

	openStore := func() (*checkpoint.Store, *slog.Logger, error) {
		cfg, logger, err := target.resolve(ctx)
		if err != nil {
			return nil, nil, err
		}
		store, err := checkpoint.Open(cfg.Paths.WorkDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, logger, nil
	}

	checkpointCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chapter checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			cps, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cps) == 0 {
				fmt.Fprintln(out, "No checkpoints")
				return nil
			}
			rows := make([][]string, 0, len(cps))
			for _, cp := range cps {
				next := string(cp.NextStage())
				if next == "" {
					next = "done"
				}
				rows = append(rows, []string{
					cp.ChapterID,
					fmt.Sprintf("%d/%d", len(cp.CompletedStages), len(checkpoint.Stages)),
					next,
					cp.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					cp.LastError,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Chapter", "Stages", "Next", "Updated", "Last Error"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	})

	checkpointCmd.AddCommand(&cobra.Command{
		Use:   "clear [chapter-id...]",
		Short: "Remove checkpoints so chapters rerun from the first stage",
		Long:  "Remove the named checkpoints, or every checkpoint when no chapter ID is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, logger, err := openStore()
			if err != nil {
				return err
			}
			ids := args
			if len(ids) == 0 {
				cps, err := store.List()
				if err != nil {
					return err
				}
				for _, cp := range cps {
					ids = append(ids, cp.ChapterID)
				}
			}
			for _, id := range ids {
				if err := store.Clear(id); err != nil {
					return err
				}
				logger.Debug("checkpoint cleared", logging.String(logging.FieldChapterID, id))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d checkpoints\n", len(ids))
			return nil
		},
	})

	return checkpointCmd
}
