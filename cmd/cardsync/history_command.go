package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Lusbox/umasparkmaker/pkg/db"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := ctx.openHistory()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			out := cmd.OutOrStdout()
			if conn == nil {
				fmt.Fprintln(out, "History is disabled in the configuration.")
				return nil
			}
			defer conn.Close()

			if prefix := strings.TrimSpace(runID); prefix != "" {
				id, err := db.ResolveRunID(conn, prefix)
				if err != nil {
					return err
				}
				assets, err := db.AssetsForRun(conn, id)
				if err != nil {
					return fmt.Errorf("load assets: %w", err)
				}
				if len(assets) == 0 {
					fmt.Fprintf(out, "No image downloads recorded for run %s.\n", id)
					return nil
				}
				fmt.Fprintln(out, renderAssetTable(assets))
				return nil
			}

			runs, err := db.ListRuns(conn, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No sync runs recorded yet.")
				return nil
			}
			fmt.Fprintln(out, renderRunTable(runs, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show image downloads for a run ID")
	return cmd
}

func renderRunTable(runs []db.Run, now time.Time) string {
	headers := []string{"Run", "Started", "Status", "Filter", "Total", "New", "Images", "Failed", "Detail"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		detail := r.PageTitle
		if r.Error != "" {
			detail = r.Error
		}
		rows = append(rows, []string{
			shortID(r.ID),
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.Status,
			r.FilterMode,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.NewCount),
			strconv.Itoa(r.WithImages),
			strconv.Itoa(r.Failed),
			truncate(detail, 48),
		})
	}
	return renderTable(headers, rows, aligns)
}

func renderAssetTable(assets []db.Asset) string {
	headers := []string{"#", "Card", "Outcome", "Size", "File / Error"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		size := ""
		detail := a.LocalPath
		if a.Error != "" {
			detail = a.Error
		} else {
			size = humanize.Bytes(uint64(a.BytesOut))
		}
		rows = append(rows, []string{
			fmt.Sprintf("%03d", a.Seq),
			a.CardName,
			a.Outcome,
			size,
			truncate(detail, 60),
		})
	}
	return renderTable(headers, rows, aligns)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
