package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sei-bridge/pkg/types"
	"sei-bridge/pkg/workflow"
)

var depositAmount string

var depositCmd = &cobra.Command{
	Use:   "deposit-address [recipient]",
	Short: "Get a one-time deposit address without sending anything",
	Long: `Ask the relay for a deposit address that forwards to a Sei account.

Without a recipient the Sei wallet is connected and its account is used.
Anything sent to the address from the source chain is bridged.

Examples:
  sei-bridge deposit-address
  sei-bridge deposit-address sei1...
  sei-bridge deposit-address --amount 5`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDepositAddress,
}

func init() {
	rootCmd.AddCommand(depositCmd)

	depositCmd.Flags().StringVar(&depositAmount, "amount", "", "Intended amount, needed by quote based relays")
}

func runDepositAddress(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, _, cleanup, err := loadApp(cmd, false, nil)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	req := workflow.Request{Amount: depositAmount}
	if len(args) == 1 {
		req.Recipient = args[0]
	} else if _, err := a.Sessions.ConnectDestination(ctx); err != nil {
		printWorkflowError(err)
		cleanup()
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Requesting deposit address..."
		s.Start()
	}

	deposit, err := a.Workflow.RequestDepositAddress(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printWorkflowError(err)
		cleanup()
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(deposit, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayDepositAddress(deposit, &types.BridgeRequest{Amount: depositAmount, Token: "USDC"})
	fmt.Println("Send USDC to this address from the source chain, then follow it with:")
	color.Cyan("  sei-bridge status %s\n", deposit.Address)
}
