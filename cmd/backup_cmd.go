package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jobscraps/internal/backup"
	"jobscraps/internal/operations"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a manual backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			record, err := o.ManualBackup()
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("Backup created: %s (%.1f MB in %.1fs)\n",
				record.Filename, record.SizeMB, record.DurationSeconds)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			records := o.ListBackups()
			if len(records) == 0 {
				fmt.Println("No backups found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILENAME\tSIZE (MB)\tCREATED\tKIND\tREASON")
			var totalMB float64
			for _, r := range records {
				created := r.Timestamp
				if t, err := time.Parse(backup.TimestampLayout, r.Timestamp); err == nil {
					created = t.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\n",
					r.Filename, r.SizeMB, created, r.Kind, r.Reason)
				totalMB += r.SizeMB
			}
			w.Flush()
			fmt.Printf("\nTotal: %d backups, %.1f MB\n", len(records), totalMB)
			return nil
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore FILENAME",
	Short: "Restore the database from a backup artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			if err := o.RestoreBackup(args[0], confirmFunc()); err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("Database restored from %s\n", args[0])
			return nil
		})
	},
}

var backupTestCmd = &cobra.Command{
	Use:   "test FILENAME",
	Short: "Check a backup artifact for a valid dump signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			if o.TestBackup(args[0]) {
				color.New(color.FgGreen).Printf("Backup %s is valid\n", args[0])
				return nil
			}
			return fmt.Errorf("backup %s is invalid or corrupted", args[0])
		})
	},
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Force a retention pass over stored backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOperator(func(o *operations.Operator) error {
			res := o.CleanupBackups()
			switch res.Action {
			case backup.ActionCleanupPerformed:
				fmt.Printf("Removed %d old backups; %d remaining (%.2f GB)\n",
					res.RemovedCount, res.Remaining, res.TotalSizeGB)
			case backup.ActionNoCleanupNeeded:
				fmt.Printf("No cleanup needed: %d backups (%.2f GB)\n",
					res.Remaining, res.TotalSizeGB)
			case backup.ActionNoManifest:
				fmt.Println("No backup manifest found.")
			default:
				return fmt.Errorf("cleanup failed: %s", res.Message)
			}
			return nil
		})
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupTestCmd)
	backupCmd.AddCommand(backupCleanupCmd)
	rootCmd.AddCommand(backupCmd)
}
