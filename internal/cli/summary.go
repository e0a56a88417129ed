package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/footprint/internal/bootstrap"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
)

func newSummaryCmd(st *state) *cobra.Command {
	var tenant, owner, start, end, category, tz string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Aggregate one owner's stored emissions over an inclusive date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var loc *time.Location
			if tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("unknown timezone %q: %w", tz, err)
				}
				loc = l
			}

			rt, err := bootstrap.NewRuntime(cmd.Context(), st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			if loc == nil {
				loc = rt.Location
			}

			startDate, err := time.ParseInLocation("2006-01-02", start, loc)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endDate, err := time.ParseInLocation("2006-01-02", end, loc)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			input := domain.WindowInput{
				TenantID: tenant,
				OwnerID:  owner,
				Start:    startDate,
				End:      endDate,
				Category: category,
				Location: loc,
			}
			summary, err := rt.Service.ComputeSummary(cmd.Context(), input)
			if err != nil {
				return err
			}
			breakdown, err := rt.Service.CategoryBreakdown(cmd.Context(), input)
			if err != nil {
				return err
			}

			if st.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"summary":    summary,
					"categories": breakdown,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s to %s: %d entries on %d days, %s CO2e\n",
				start, end, summary.TotalEntries, summary.UniqueDaysWithEntries, emissions.FormatKg(summary.TotalCO2))
			for _, c := range breakdown {
				fmt.Fprintf(out, "  %-12s %10s  %5.1f%%\n", c.Category, emissions.FormatKg(c.TotalCO2), c.SharePercent)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&category, "category", "", "restrict to one category")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone for day boundaries; defaults to the reporting timezone")
	for _, name := range []string{"tenant", "owner", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
