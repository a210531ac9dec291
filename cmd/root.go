package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jobscraps/internal/guard"
	"jobscraps/internal/logger"
	"jobscraps/internal/operations"
	"jobscraps/internal/store"
)

var (
	// ConfigFile is the path to the YAML configuration.
	ConfigFile string
	// UseWorking selects the disposable working database instead of
	// production. Destructive commands then skip confirmation and backup.
	UseWorking bool
	// AssumeYes auto-approves safety prompts for unattended runs.
	AssumeYes bool

	rootCmd = &cobra.Command{
		Use:   "jobscraps",
		Short: "Job-listing store with backup-guarded maintenance",
		Long: `jobscraps scrapes job listings into PostgreSQL and provides
maintenance commands (clear, filtered deletes, dedupe) that are guarded by
automatic pg_dump backups and retention management.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "configs/jobscraps.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		BoolVarP(&UseWorking, "working", "w", false, "operate on the working database copy")
	rootCmd.PersistentFlags().
		BoolVarP(&AssumeYes, "yes", "y", false, "answer yes to all safety prompts")
}

func targetKind() store.Kind {
	if UseWorking {
		return store.KindWorking
	}
	return store.KindProduction
}

// confirmFunc returns the safety-prompt policy for this invocation: a stdin
// prompt when attached to a terminal, auto-approve under --yes, decline-all
// otherwise.
func confirmFunc() guard.ConfirmFunc {
	if AssumeYes {
		return func(string) bool { return true }
	}
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) bool {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		return strings.ToLower(strings.TrimSpace(line)) == "y"
	}
}

// withOperator opens an Operator for the selected database, runs fn, and
// closes the session afterwards. SIGINT/SIGTERM cancel the context.
func withOperator(fn func(o *operations.Operator) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := operations.NewOperator(ctx, ConfigFile, targetKind(), confirmFunc())
	if err != nil {
		return err
	}
	defer o.Close()
	return fn(o)
}
