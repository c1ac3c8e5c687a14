package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fovcover/internal/model"
	"github.com/sells-group/fovcover/internal/store"
)

var zonesCmd = &cobra.Command{
	Use:   "zones <run-id>",
	Short: "Show the zone statistics recorded for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "zones")
		}
		zones, err := st.ZoneStats(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "zones")
		}
		if len(zones) == 0 {
			fmt.Fprintf(os.Stderr, "No zone statistics for run %s (%s).\n", truncateID(run.ID), run.Status)
			return nil
		}

		byCause, _ := cmd.Flags().GetBool("by-cause")
		formatZoneStats(os.Stdout, zones, byCause)
		return nil
	},
}

func init() {
	zonesCmd.Flags().Bool("by-cause", false, "break totals down by degradation cause")
	rootCmd.AddCommand(zonesCmd)
}

// formatZoneStats writes one line per zone and, with byCause, one indented
// line per cause.
func formatZoneStats(out io.Writer, zones []model.ZoneSummary, byCause bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ZONE\tFOV_CNT\tTOTFOV_AREA\tTOTQOV_CNT\tTOTQOV_AREA\tNOIR_PCT\tACTL_FOV")
	for _, z := range zones {
		s := z.Stats
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f\t%d\t%.1f\t%.1f\t%.1f\n",
			z.Category, s.FOVCount, s.FOVArea, s.QOVCount, s.QOVArea, s.NoIRPct, s.ActualFOVPct)
		if !byCause {
			continue
		}
		for _, c := range model.Causes {
			cs, ok := s.ByCause[c]
			if !ok {
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s\tmatched %d\t%.1f\tattributed %d\t%.1f\t\t\n",
				c, cs.Matched, cs.MatchedArea, cs.Attributed, cs.AttributedArea)
		}
	}
	_ = w.Flush()
}
