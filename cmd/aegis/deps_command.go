package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aegis/internal/deps"
	"aegis/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var skipVision bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries, directories and the vision service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.Check(cfg, true)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				switch {
				case !s.Available && s.Optional:
					state = "optional, missing"
				case !s.Available:
					state = "MISSING"
				}
				rows = append(rows, []string{s.Name, s.Command, state, s.Description, s.Detail})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Dependency", "Command", "Status", "Used for", "Detail"},
				rows, nil))

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Needs{Audio: true, Video: !skipVision})
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				checkRows = append(checkRows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Check", "Passed", "Detail"}, checkRows, nil))

			missing := 0
			for _, s := range deps.Missing(statuses) {
				if !s.Optional {
					missing++
				}
			}
			failed := len(preflight.Failures(results))
			if missing > 0 || failed > 0 {
				return fmt.Errorf("%d required dependencies missing, %d checks failed", missing, failed)
			}
			fmt.Fprintln(out, "All dependencies available")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipVision, "skip-vision", false, "Do not contact the vision service")
	return cmd
}
