package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/fetcher"
	"github.com/sells-group/schemaproof/internal/model"
	"github.com/sells-group/schemaproof/internal/outlier"
	"github.com/sells-group/schemaproof/internal/signature"
)

var (
	outliersTopN        int
	outliersStrictNulls bool
)

var outliersCmd = &cobra.Command{
	Use:   "outliers <file>",
	Short: "Report cells that do not fit a file's inferred types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scan"); err != nil {
			return err
		}
		ctx := cmd.Context()
		det := cfg.Detector()

		src, err := fetcher.OpenFile(args[0])
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		sig, err := signature.NewComputer(det).Compute(ctx, src, cfg.Signature)
		if err != nil {
			return eris.Wrapf(err, "sign %s", args[0])
		}
		if sig.Signature.Components.Format == model.FormatBinary {
			return eris.Errorf("%s is binary; no cells to check", args[0])
		}

		opts := cfg.Outlier
		if outliersTopN > 0 {
			opts.TopN = outliersTopN
		}
		if cmd.Flags().Changed("strict-nulls") {
			opts.StrictNulls = outliersStrictNulls
		}

		res, err := outlier.NewScanner(det, opts).Scan(ctx, src, &sig.Signature)
		if err != nil {
			return eris.Wrapf(err, "scan %s", args[0])
		}
		res.Warnings.Merge(sig.Warnings)

		zap.L().Info("outlier scan complete",
			zap.String("file", args[0]),
			zap.Int64("total", res.Total),
			zap.Int64("rows", res.RowsScanned),
		)
		return render(cmd.OutOrStdout(), outputFormat, map[string]any{
			"signature": sig.Signature,
			"outliers":  res,
		})
	},
}

func init() {
	outliersCmd.Flags().IntVar(&outliersTopN, "top", 0, "number of reports to print (default from config)")
	outliersCmd.Flags().BoolVar(&outliersStrictNulls, "strict-nulls", false, "report nulls in columns sampled as non-null")
	rootCmd.AddCommand(outliersCmd)
}
