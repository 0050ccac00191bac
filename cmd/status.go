package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sei-bridge/pkg/relay"
)

var (
	watchStatus bool
	statusEvery time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <deposit-address>",
	Short: "Check what the relay did with a deposit",
	Long: `Check the relay's execution status for a deposit address.

Status tracking needs the 1Click relay (relay.provider: oneclick).

Examples:
  sei-bridge status 0x1234...abcd
  sei-bridge status 0x1234...abcd --watch
  sei-bridge status 0x1234...abcd --watch --interval 10s`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().DurationVar(&statusEvery, "interval", 5*time.Second, "Polling interval (when watching)")
}

func newOneClickRelay(cmd *cobra.Command) (*relay.OneClickRelay, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	return relay.NewOneClickRelay(cfg.Relay, logger.Named("relay"))
}

func runStatus(cmd *cobra.Command, args []string) {
	depositAddress := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client, err := newOneClickRelay(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchRelayStatus(client, depositAddress, jsonOutput)
	} else {
		checkRelayStatus(client, depositAddress, jsonOutput)
	}
}

func checkRelayStatus(client *relay.OneClickRelay, depositAddress string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking relay status..."
		s.Start()
	}

	status, err := client.Status(context.Background(), depositAddress)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, depositAddress)
	}
}

func watchRelayStatus(client *relay.OneClickRelay, depositAddress string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nWatching relay status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n\n", statusEvery)

	ticker := time.NewTicker(statusEvery)
	defer ticker.Stop()

	for {
		status, err := client.Status(ctx, depositAddress)
		switch {
		case err != nil && ctx.Err() == nil:
			color.Red("Error: %v", err)
		case err == nil:
			displayStatus(status, depositAddress)
			if isFinalStatus(status.GetStatus()) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func isFinalStatus(status string) bool {
	switch strings.ToUpper(status) {
	case "SUCCESS", "FAILED", "REFUNDED":
		return true
	}
	return false
}

func displayStatus(status *oneclick.GetExecutionStatusResponse, depositAddress string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        RELAY STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(depositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.GetStatus()))
	fmt.Printf("  Last Updated:    %s\n", status.GetUpdatedAt().Format("2006-01-02 15:04:05"))

	details := status.GetSwapDetails()

	for _, tx := range details.GetOriginChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
		}
	}
	for _, tx := range details.GetDestinationChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Sei Tx:          %s\n", color.HiBlackString(hash))
		}
	}

	if details.HasAmountInFormatted() {
		fmt.Printf("  Amount In:       %s\n", details.GetAmountInFormatted())
	}
	if details.HasAmountOutFormatted() {
		fmt.Printf("  Amount Out:      %s\n", details.GetAmountOutFormatted())
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING", "KNOWN_DEPOSIT_TX":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
