package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/corpus"
	"github.com/sells-group/schemaproof/internal/fetcher"
)

var (
	scanOutliers    bool
	scanConcurrency int
	scanRelaxed     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <path|dir|zip|url>...",
	Short: "Compute signatures for every file of a corpus",
	Long: "Walks directories and ZIP archives, downloads http(s) and ftp inputs, and " +
		"computes a structural signature per file. Files that share a signature are grouped.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scan"); err != nil {
			return err
		}
		ctx := cmd.Context()

		opts := scanOptions()
		if cmd.Flags().Changed("outliers") {
			opts.Outliers = scanOutliers
		}
		if scanConcurrency > 0 {
			opts.Concurrency = scanConcurrency
		}

		rep, err := corpus.NewScanner(cfg.Detector(), cfg.Remote(), opts).Scan(ctx, args)
		if err != nil {
			return eris.Wrap(err, "scan")
		}
		if scanRelaxed {
			rep.Groups = corpus.GroupBySignature(rep.Files, true)
		}

		zap.L().Info("scan complete",
			zap.Int("files", len(rep.Files)),
			zap.Int("groups", len(rep.Groups)),
			zap.Int("failed", rep.Failed),
		)
		return render(cmd.OutOrStdout(), outputFormat, rep)
	},
}

// scanOptions maps the loaded config onto corpus scan options.
func scanOptions() corpus.Options {
	return corpus.Options{
		Concurrency: cfg.Scan.Concurrency,
		Signature:   cfg.Signature,
		Outliers:    cfg.Scan.Outliers,
		Outlier:     cfg.Outlier,
		WorkDir:     cfg.Scan.WorkDir,
		ZIP: fetcher.ZIPLimits{
			MaxEntries:    cfg.Scan.MaxZIPEntries,
			MaxEntryBytes: cfg.Scan.MaxEntryBytes,
		},
	}
}

func init() {
	scanCmd.Flags().BoolVar(&scanOutliers, "outliers", false, "also report cells that break each file's type mask")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "files signed in parallel (default from config)")
	scanCmd.Flags().BoolVar(&scanRelaxed, "relaxed", false, "group by relaxed signature")
	rootCmd.AddCommand(scanCmd)
}
