package cmd

import (
	"github.com/spf13/cobra"

	"jobscraps/internal/operations"
)

var cronSpec string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run all enabled job searches and store the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			return o.RunScrape()
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scrape pipeline on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			return o.RunSchedule(cronSpec)
		})
	},
}

func init() {
	scheduleCmd.Flags().
		StringVar(&cronSpec, "cron", "0 6 * * *", "cron expression for scrape runs")
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(scheduleCmd)
}
