package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sei-bridge/config"
	"sei-bridge/pkg/app"
)

var rootCmd = &cobra.Command{
	Use:   "sei-bridge",
	Short: "A CLI for bridging USDC from an EVM chain to Sei through a deposit relay",
	Long: `sei-bridge moves USDC from an EVM chain to the Sei network. It connects a
source wallet and a Sei wallet, asks the bridge relay for a one-time deposit
address and sends the tokens there.

Examples:
  sei-bridge bridge 1.5 USDC to sei
  sei-bridge deposit-address
  sei-bridge balance
  sei-bridge watch --metrics
  sei-bridge chains register`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default $HOME/.sei-bridge.yaml)")
}

// newLogger builds the process logger. Logs go to stderr so they never mix
// with JSON output.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return cfg.Build()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadFrom(config.New(), path)
}

// loadApp loads configuration and builds the application. Wallet prompts
// pause s, which may be nil. The returned cleanup closes wallets and flushes
// the logger.
func loadApp(cmd *cobra.Command, skipConfirm bool, s spinnerControl) (*app.App, *config.Config, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	var approve app.Approver
	if !skipConfirm {
		approve = pausingApprover(s, confirm)
	}

	a, err := app.New(app.Options{
		Config:   cfg,
		Approver: approve,
		Logger:   logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}

	return a, cfg, func() {
		a.Close()
		_ = logger.Sync()
	}, nil
}

// spinnerControl is the part of *spinner.Spinner prompts need.
type spinnerControl interface {
	Active() bool
	Start()
	Stop()
}

// pausingApprover asks through ask, stopping s for the duration of the
// prompt so its frames do not overwrite the question.
func pausingApprover(s spinnerControl, ask func(prompt string) bool) app.Approver {
	return func(ctx context.Context, prompt string) (bool, error) {
		if s != nil && s.Active() {
			s.Stop()
			defer s.Start()
		}
		return ask(prompt), nil
	}
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
