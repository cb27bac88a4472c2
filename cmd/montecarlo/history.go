package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"montecarloBot/internal/finance"
	"montecarloBot/internal/montecarlo"
	"montecarloBot/internal/report"
	"montecarloBot/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		db    string
		limit int
		id    string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, or show one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if db == "" {
				db = a.cfg.Storage.DBPath
			}
			conn, err := storage.OpenSQLite(db)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := storage.InitSchema(ctx, conn); err != nil {
				return err
			}
			store := storage.NewRunStore(conn, a.log)

			if id == "" {
				runs, err := store.List(ctx, 0, limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					a.printf("No runs stored in %s\n", db)
					return nil
				}
				for _, r := range runs {
					a.printf("%s  %s  %-24s %d×%d  day %d mean %s [%s - %s]\n",
						r.ID, finance.AsOf(r.CreatedAt), r.Config.Label(), r.Config.NumSimulations, r.Config.NumDays,
						r.Final.Day, report.Money(r.Final.MeanPrice), report.Money(r.Final.P5), report.Money(r.Final.P95))
				}
				return nil
			}

			runID, err := uuid.Parse(id)
			if err != nil {
				return err
			}
			run, err := store.Get(ctx, runID)
			if err != nil {
				return err
			}
			if err := report.WriteParameters(a.out, run.Config.Label(), run.Params); err != nil {
				return err
			}
			a.printf("Window %s - %s, seed %d, start price %s\n\n",
				run.Config.Start.Format("2006-01-02"), run.Config.End.Format("2006-01-02"), run.Config.Seed, report.Money(run.StartPrice))
			if err := report.WriteTable(a.out, montecarlo.SummaryTable{Rows: run.Days}, max(1, run.Config.NumDays/10)); err != nil {
				return err
			}
			if out == "" {
				return nil
			}
			ens, err := store.LoadPaths(ctx, runID)
			if err != nil {
				return err
			}
			if err := report.WriteCSVFile(out, montecarlo.Summarize(ens)); err != nil {
				return err
			}
			a.printf("CSV written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "sqlite run history (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	cmd.Flags().StringVar(&id, "id", "", "show one run")
	cmd.Flags().StringVar(&out, "out", "", "with --id, re-export the stored paths as CSV")
	return cmd
}
