package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/solver"
)

var (
	solveNoEarlyStop bool
	solveStrict      bool
)

var solveCmd = &cobra.Command{
	Use:   "solve <file>...",
	Short: "Prove each column's type across a sequence of files",
	Long: "Streams every value of every file through a per-column constraint solver. " +
		"A type is eliminated by one disproving value; slash dates are settled by a " +
		"day or month above 12. Files are read in argument order.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("solve"); err != nil {
			return err
		}

		opts := cfg.BatchOptions()
		if solveNoEarlyStop {
			opts.EarlyStop = false
		}

		res, err := solver.NewBatch(cfg.Detector(), opts).Solve(cmd.Context(), args)
		if err != nil {
			return eris.Wrap(err, "solve")
		}

		zap.L().Info("solve complete",
			zap.Int("columns", len(res.Columns)),
			zap.Int("files_consumed", res.FilesConsumed),
			zap.Int("files_total", res.FilesTotal),
			zap.Bool("early_stopped", res.EarlyStopped),
		)
		if err := render(cmd.OutOrStdout(), outputFormat, res); err != nil {
			return err
		}
		if solveStrict && !res.Resolved() {
			return eris.New("solve: not every column resolved")
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().BoolVar(&solveNoEarlyStop, "no-early-stop", false, "read every file even after all columns resolve")
	solveCmd.Flags().BoolVar(&solveStrict, "strict", false, "exit non-zero unless every column resolves")
	rootCmd.AddCommand(solveCmd)
}
