package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/dashboard"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

func newSubjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject <id>",
		Short: "Show one subject's relative amplitudes",
		Long: `Show one subject's subject-level RA and ARA per ISI for a session, or the
raw trials with --trials.

Examples:
  icfctl subject 3
  icfctl subject 3 --session SWD --trials`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sessionFlag, _ := cmd.Flags().GetString("session")
			showTrials, _ := cmd.Flags().GetBool("trials")

			subject, ok, err := dashboard.ParseSubjectQuery(args[0])
			if err != nil || !ok {
				return errors.New(dashboard.SubjectMessage(args[0], dashboard.ErrMalformedQuery))
			}
			session, err := dataset.ParseSessionType(sessionFlag)
			if err != nil {
				return err
			}

			_, store, err := loadStore(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			agg := aggregate.New(store)

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			if showTrials {
				trials, err := agg.SubjectVarianceSeries(subject, session)
				if err != nil {
					return lookupErr(args[0], err)
				}
				if jsonOut {
					return writeJSON(cmd, trials)
				}
				fmt.Fprintln(w, "ISI\tEMG_P2P\tRA")
				for _, t := range trials {
					fmt.Fprintf(w, "%s\t%s\t%s\n", formatNum(t.ISI), formatNum(t.EMGPeakToPeak), formatNum(t.RA))
				}
				return w.Flush()
			}

			rows, err := agg.SubjectSeries(subject, session)
			if err != nil {
				return lookupErr(args[0], err)
			}
			if jsonOut {
				return writeJSON(cmd, rows)
			}
			fmt.Fprintf(out, "Subject %d (%s), %s\n", subject, rows[0].Group, session.Label())
			fmt.Fprintln(w, "ISI\tRA\tARA")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\n", formatNum(r.ISI), formatNum(r.RA), formatNum(r.ARA))
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("session", string(dataset.SessionBaseline), "Session type (BL or SWD)")
	cmd.Flags().Bool("trials", false, "Show raw trials instead of subject-level rows")
	return cmd
}

func lookupErr(query string, err error) error {
	if errors.Is(err, aggregate.ErrNotFound) {
		return errors.New(dashboard.SubjectMessage(query, err))
	}
	return err
}

func formatNum(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
