package cmd

import (
	"context"

	"github.com/lance6716/query-plan-comparer/pkg/qpc"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "query-plan-comparer",
		Short: "A tool used to compare optimizer plans of one query across settings or versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return qpc.Run(cmd.Context(), &qpc.Config{
				Query:         query,
				QueryFile:     queryFile,
				PlanFiles:     planFiles,
				DSN:           dsn,
				Captures:      captures,
				Analyze:       analyze,
				Pairing:       pairing,
				Concurrency:   concurrency,
				CostModelFile: costModelFile,
				PrintPlans:    printPlans,
				WorkDir:       workDir,
				Log: qpc.Log{
					Filename: logFilename,
				},
			})
		},
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

var (
	query         string
	queryFile     string
	planFiles     []string
	dsn           string
	captures      []string
	analyze       bool
	pairing       string
	concurrency   int
	costModelFile string
	printPlans    bool
	workDir       string
	logFilename   string
)

func init() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVarP(&query, "query", "q", "", "SQL text the compared plans belong to")
	rootCmd.PersistentFlags().StringVar(&queryFile, "query-file", "", "file containing the SQL text")
	rootCmd.PersistentFlags().StringArrayVar(&planFiles, "plan-file", nil, "plan document to compare, label=path or a bare path")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string for live plan capture")
	rootCmd.PersistentFlags().StringArrayVar(&captures, "capture", nil, "plan to capture, label=setting:value,... or a bare label")
	rootCmd.PersistentFlags().BoolVar(&analyze, "analyze", false, "execute the query during capture to collect actual rows")
	rootCmd.PersistentFlags().StringVar(&pairing, "pairing", "all-pairs", "pairing strategy, all-pairs or baseline-vs-rest")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "number of parallel pairwise comparisons, 0 means GOMAXPROCS")
	rootCmd.PersistentFlags().StringVar(&costModelFile, "cost-model", "", "YAML file overriding alignment cost constants")
	rootCmd.PersistentFlags().BoolVar(&printPlans, "print-plans", false, "print the plan trees to stdout")
	rootCmd.PersistentFlags().StringVarP(&workDir, "work-dir", "w", "", "work directory")
	rootCmd.PersistentFlags().StringVar(&logFilename, "log-file", "", "log filename, default stdout")
}
