package cmd

import (
	"github.com/spf13/cobra"

	"jobscraps/internal/operations"
)

var (
	salaryMin   float64
	salaryMax   float64
	dedupeApply bool
	noAutoClean bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every row from the job table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.ClearJobs()
			return err
		})
	},
}

var deleteBeforeCmd = &cobra.Command{
	Use:   "delete-before YYYY-MM-DD",
	Short: "Delete jobs scraped before the given date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.DeleteBeforeDate(args[0])
			return err
		})
	},
}

var deleteIDsCmd = &cobra.Command{
	Use:   "delete-ids [file]",
	Short: "Delete jobs whose ids are listed in a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.DeleteByIDFile(optionalArg(args))
			return err
		})
	},
}

var deleteCompanyCmd = &cobra.Command{
	Use:   "delete-company [file]",
	Short: "Delete jobs matching company patterns from a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.DeleteByCompanyFile(optionalArg(args))
			return err
		})
	},
}

var deleteTitleCmd = &cobra.Command{
	Use:   "delete-title [file]",
	Short: "Delete jobs matching title patterns from a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.DeleteByTitleFile(optionalArg(args))
			return err
		})
	},
}

var deleteSalaryCmd = &cobra.Command{
	Use:   "delete-salary",
	Short: "Delete jobs below the compensation thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.DeleteBySalary(salaryMin, salaryMax)
			return err
		})
	},
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Resolve duplicate listings to one survivor per group",
	Long: `dedupe groups listings by normalized (title, company) and selects one
survivor per group. Without --apply it writes the losing ids to the
configured id file; with --apply it deletes them in one bulk operation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			_, err := o.ProcessDuplicates(dedupeApply)
			return err
		})
	},
}

var workingCopyCmd = &cobra.Command{
	Use:   "working-copy",
	Short: "Clone production into the working database for cleaning",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			return o.CreateWorkingCopy(!noAutoClean, ConfigFile, confirmFunc())
		})
	},
}

func optionalArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func init() {
	deleteSalaryCmd.Flags().
		Float64Var(&salaryMin, "min", 0, "minimum-compensation threshold (default from config)")
	deleteSalaryCmd.Flags().
		Float64Var(&salaryMax, "max", 0, "maximum-compensation threshold (default from config)")
	dedupeCmd.Flags().
		BoolVar(&dedupeApply, "apply", false, "delete duplicates directly instead of writing an id file")
	workingCopyCmd.Flags().
		BoolVar(&noAutoClean, "no-auto-clean", false, "skip the automatic cleaning workflows")

	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(deleteBeforeCmd)
	rootCmd.AddCommand(deleteIDsCmd)
	rootCmd.AddCommand(deleteCompanyCmd)
	rootCmd.AddCommand(deleteTitleCmd)
	rootCmd.AddCommand(deleteSalaryCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(workingCopyCmd)
}
