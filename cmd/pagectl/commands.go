package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/canonical"
	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/seed"
	"github.com/user/page-inventory/internal/usecase"
)

func newBatchCmd() *cobra.Command {
	var (
		file        string
		fromPending bool
		limit       int
		summaryOut  string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Catalogue a batch of URLs from a CSV file or the pending backlog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var urls []string
			switch {
			case file != "":
				urls, err = seed.ReadURLsFile(file)
				if err != nil {
					return err
				}
			case fromPending:
				store, err := a.store(ctx)
				if err != nil {
					return err
				}
				urls, err = store.UncataloguedURLs(ctx, limit)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --file or --pending is required")
			}
			if len(urls) == 0 {
				fmt.Println("nothing to catalogue")
				return nil
			}

			driver, err := a.batchDriver(ctx)
			if err != nil {
				return err
			}
			summary, err := driver.Run(ctx, urls)
			if summary != nil {
				fmt.Printf("total=%d ok=%d skipped=%d failed=%d cooldowns=%d elapsed=%s\n",
					summary.Total, summary.OK, summary.Skipped, summary.Failed,
					summary.Cooldowns, summary.Elapsed.Round(1e9))
				if summaryOut != "" {
					if werr := writeSummaryCSV(summaryOut, summary); werr != nil {
						return werr
					}
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file of URLs to catalogue")
	cmd.Flags().BoolVar(&fromPending, "pending", false, "catalogue the uncatalogued backlog instead of a file")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the backlog batch size (0 = no cap)")
	cmd.Flags().StringVar(&summaryOut, "summary", "", "write the batch summary to a CSV file")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the inventory against the CRM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			syncer, err := a.crmSyncer(ctx)
			if err != nil {
				return err
			}
			summary, err := syncer.Sync(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("records=%d placeholders=%d updated=%d paused=%d unchanged=%d errors=%d\n",
				summary.Records, summary.Placeholders, summary.Updated,
				summary.Paused, summary.Unchanged, summary.Errors)
			return nil
		},
	}
}

func newUncataloguedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "uncatalogued",
		Short: "List URLs still awaiting a crawl outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			urls, err := store.UncataloguedURLs(ctx, limit)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Println(u)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum URLs to list (0 = all)")
	return cmd
}

func newRecatalogueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recatalogue <url>...",
		Short: "Mark pages for a fresh catalogue pass",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			for _, raw := range args {
				u := canonical.Normalize(raw)
				if err := store.MarkForRecatalogue(ctx, u); err != nil {
					return fmt.Errorf("%s: %w", u, err)
				}
				fmt.Println("marked", u)
			}
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge <url>",
		Short: "Hard-delete every version of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge deletes history permanently; re-run with --yes")
			}
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			pageID := canonical.PageID(args[0])
			n, err := store.Purge(ctx, pageID)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d version(s) of %s\n", n, canonical.Normalize(args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest version of every page as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			pages, _, err := store.Query(ctx, entity.PageFilter{})
			if err != nil {
				return err
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			cw := csv.NewWriter(w)
			if err := cw.Write([]string{
				"page_id", "url", "status_code", "primary_category", "vertical",
				"has_coupons", "has_promotions", "brand_list", "first_seen", "last_seen",
			}); err != nil {
				return err
			}
			for _, p := range pages {
				if err := cw.Write([]string{
					p.PageID, p.URL, strconv.Itoa(p.StatusCode),
					orEmpty(p.PrimaryCategory), orEmpty(p.Vertical),
					strconv.FormatBool(p.HasCoupons), strconv.FormatBool(p.HasPromotions),
					strings.Join(p.BrandList, "; "),
					p.FirstSeen.Format("2006-01-02"), p.LastSeen.Format("2006-01-02"),
				}); err != nil {
					return err
				}
			}
			cw.Flush()
			return cw.Error()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var (
		batchSpec string
		syncSpec  string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the backlog batch and CRM sync on cron schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, a, err := appContext(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c := cron.New()

			if batchSpec != "" {
				_, err := c.AddFunc(batchSpec, func() {
					store, err := a.store(ctx)
					if err != nil {
						a.log.Error("scheduled batch setup failed", zap.Error(err))
						return
					}
					urls, err := store.UncataloguedURLs(ctx, limit)
					if err != nil || len(urls) == 0 {
						return
					}
					driver, err := a.batchDriver(ctx)
					if err != nil {
						a.log.Error("scheduled batch setup failed", zap.Error(err))
						return
					}
					if _, err := driver.Run(ctx, urls); err != nil {
						a.log.Error("scheduled batch failed", zap.Error(err))
					}
				})
				if err != nil {
					return fmt.Errorf("invalid batch cron spec: %w", err)
				}
			}

			if syncSpec != "" {
				_, err := c.AddFunc(syncSpec, func() {
					syncer, err := a.crmSyncer(ctx)
					if err != nil {
						a.log.Error("scheduled sync setup failed", zap.Error(err))
						return
					}
					if _, err := syncer.Sync(ctx); err != nil {
						a.log.Error("scheduled sync failed", zap.Error(err))
					}
				})
				if err != nil {
					return fmt.Errorf("invalid sync cron spec: %w", err)
				}
			}

			if len(c.Entries()) == 0 {
				return fmt.Errorf("at least one of --batch-cron or --sync-cron is required")
			}

			a.log.Info("scheduler started",
				zap.String("batch_cron", batchSpec),
				zap.String("sync_cron", syncSpec))
			c.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			<-c.Stop().Done()
			a.log.Info("scheduler stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&batchSpec, "batch-cron", "", `cron spec for the backlog batch, e.g. "0 3 * * *"`)
	cmd.Flags().StringVar(&syncSpec, "sync-cron", "", `cron spec for the CRM sync, e.g. "30 2 * * *"`)
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the scheduled batch size (0 = no cap)")
	return cmd
}

func writeSummaryCSV(path string, s *usecase.BatchSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"total", "ok", "skipped", "failed", "cooldowns", "elapsed_seconds"}); err != nil {
		return err
	}
	if err := cw.Write([]string{
		strconv.Itoa(s.Total), strconv.Itoa(s.OK), strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Failed), strconv.Itoa(s.Cooldowns),
		strconv.FormatFloat(s.Elapsed.Seconds(), 'f', 1, 64),
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
