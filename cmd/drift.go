package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/drift"
	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/signature"
)

var (
	driftHistory     bool
	driftFailOnDrift bool
)

var driftCmd = &cobra.Command{
	Use:   "drift <source-id> [file]",
	Short: "Compare a file's signature with the source's current record",
	Long: "Signs the file and checks it against the stored signature for source-id. " +
		"The first observation is recorded as current; a different signature supersedes " +
		"it and prints a structural diff. With --history, prints the source's records.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("drift"); err != nil {
			return err
		}
		ctx := cmd.Context()
		sourceID := args[0]

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		det := drift.NewDetector(st)

		if driftHistory {
			recs, err := det.History(ctx, sourceID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, map[string]any{"source_id": sourceID, "records": recs})
		}
		if len(args) < 2 {
			return eris.New("drift: a file is required unless --history is set")
		}

		src, err := fetcher.OpenFile(args[1])
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		sig, err := signature.NewComputer(cfg.Detector()).Compute(ctx, src, cfg.Signature)
		if err != nil {
			return eris.Wrapf(err, "sign %s", args[1])
		}

		res, err := det.Detect(ctx, sourceID, &sig.Signature)
		if err != nil {
			return err
		}
		if res.Drift {
			zap.L().Warn("schema drift detected",
				zap.String("source", sourceID),
				zap.String("previous", res.Alert.PreviousSignature),
				zap.String("new", res.Alert.NewSignature),
				zap.Strings("changed_columns", res.Alert.Diff.ChangedColumns()),
			)
		}
		if err := render(cmd.OutOrStdout(), outputFormat, res); err != nil {
			return err
		}
		if driftFailOnDrift && res.Drift {
			return eris.Errorf("drift: %s changed signature", sourceID)
		}
		return nil
	},
}

func init() {
	driftCmd.Flags().BoolVar(&driftHistory, "history", false, "print the source's signature history")
	driftCmd.Flags().BoolVar(&driftFailOnDrift, "fail-on-drift", false, "exit non-zero when the signature changed")
	rootCmd.AddCommand(driftCmd)
}
