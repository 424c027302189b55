package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/idea-pipeline/internal/pipeline"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate the idea for a single date and exit",
	Long:  "Executes one pipeline run outside the HTTP server, for backfills and local testing.",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "target date (YYYY-MM-DD, default today UTC)")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	date := time.Now().UTC()
	if runDate != "" {
		parsed, err := time.Parse("2006-01-02", runDate)
		if err != nil {
			return eris.Wrapf(err, "parse --date %q", runDate)
		}
		date = parsed
	}

	env, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	result, err := env.Driver.Run(ctx, date)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyExists) {
			zap.L().Info("run: idea already exists for date, nothing to do",
				zap.String("date", date.Format("2006-01-02")),
			)
			return nil
		}
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}
