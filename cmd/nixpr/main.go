package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/promiseofcake/nixpr/internal/config"
	"github.com/promiseofcake/nixpr/internal/logging"
	"github.com/promiseofcake/nixpr/internal/state"
)

var (
	cfgFile   string
	stateFile string
	verbose   bool
	cfg       *config.Config

	rootCmd = &cobra.Command{
		Use:   "nixpr",
		Short: "Automatically review NixOS/nixpkgs pull requests",
		Long: `Fetches open NixOS/nixpkgs pull requests, keeps the ones that initialize
or bump a package, and triggers a nixpkgs-review GitHub Actions workflow for
each PR that was not handled before.

Configuration is read from $XDG_CONFIG_HOME/nixpr/config.toml when present.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/nixpr/config.toml)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "processed PR list (default is $XDG_DATA_HOME/nixpr/processed.json)")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub token (defaults to GITHUB_TOKEN env var)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")

	// Bind flags to viper
	viper.BindPFlag("github.token", rootCmd.PersistentFlags().Lookup("github-token"))

	rootCmd.AddCommand(runCmd, statusCmd, logsCmd, webCmd, checkCmd, resetCmd)
}

func initConfig(cmd *cobra.Command, args []string) error {
	logging.Setup(verbose)

	c, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func stateStore() (*state.Store, error) {
	if stateFile != "" {
		return state.NewStore(stateFile), nil
	}
	path, err := state.DefaultPath()
	if err != nil {
		return nil, err
	}
	return state.NewStore(path), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
