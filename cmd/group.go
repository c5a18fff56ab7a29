package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/schemaproof/internal/corpus"
)

var groupRelaxed bool

var groupCmd = &cobra.Command{
	Use:   "group <path|dir|zip|url>...",
	Short: "Group corpus files by signature",
	Long: "Signs every file and prints only the signature groups. With --relaxed, header " +
		"case and punctuation are ignored and numeric columns compare as Float64.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("scan"); err != nil {
			return err
		}

		opts := scanOptions()
		opts.Outliers = false
		rep, err := corpus.NewScanner(cfg.Detector(), cfg.Remote(), opts).Scan(cmd.Context(), args)
		if err != nil {
			return eris.Wrap(err, "group")
		}

		return render(cmd.OutOrStdout(), outputFormat, map[string]any{
			"relaxed": groupRelaxed,
			"groups":  corpus.GroupBySignature(rep.Files, groupRelaxed),
			"failed":  rep.Failed,
		})
	},
}

func init() {
	groupCmd.Flags().BoolVar(&groupRelaxed, "relaxed", false, "group by relaxed signature")
	rootCmd.AddCommand(groupCmd)
}
