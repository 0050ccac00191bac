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
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sei-bridge/config"
	"sei-bridge/pkg/amount"
	"sei-bridge/pkg/app"
	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/parser"
	"sei-bridge/pkg/types"
	"sei-bridge/pkg/workflow"
)

var (
	bridgeRecipient string
	bridgeNoConfirm bool
	bridgeNoWait    bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge <amount> <token> to <chain>",
	Short: "Bridge USDC from the source chain to Sei",
	Long: `Bridge USDC from the configured EVM chain to Sei.

The command connects both wallets, asks the relay for a one-time deposit
address for your Sei account, sends the tokens there and waits until the
transfer is final on the source chain. The relay then credits aUSDC on Sei.

Examples:
  sei-bridge bridge 1.5 USDC to sei
  sei-bridge bridge 10 USDC to sei --recipient sei1...
  sei-bridge bridge 0.15 USDC to sei --yes --no-wait`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeCmd.Flags().StringVar(&bridgeRecipient, "recipient", "", "Sei recipient (defaults to the connected Sei account)")
	bridgeCmd.Flags().BoolVarP(&bridgeNoConfirm, "yes", "y", false, "Skip confirmation prompts")
	bridgeCmd.Flags().BoolVar(&bridgeNoWait, "no-wait", false, "Return once the transfer is broadcast")
}

func runBridge(cmd *cobra.Command, args []string) {
	req, err := parser.ParseBridgeCommand(strings.Join(args, " "))
	if err == nil {
		err = parser.ValidateBridgeRequest(req)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if bridgeRecipient != "" {
		req.Recipient = bridgeRecipient
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)

	a, cfg, cleanup, err := loadApp(cmd, bridgeNoConfirm, s)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer cleanup()

	if err := checkBridgeRequest(req, cfg); err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bridge(ctx, a, cfg, s, req, jsonOutput); err != nil {
		printWorkflowError(err)
		cleanup()
		os.Exit(1)
	}
}

func bridge(ctx context.Context, a *app.App, cfg *config.Config, s *spinner.Spinner, req *types.BridgeRequest, jsonOutput bool) error {
	spin := func(suffix string) {
		if !jsonOutput {
			s.Suffix = " " + suffix
			s.Start()
		}
	}

	spin("Connecting wallets...")
	err := a.Connect(ctx)
	s.Stop()
	if err != nil {
		return err
	}

	a.Balances.Refresh(ctx)
	if !jsonOutput {
		displayBalances(a.View())
	}

	spin("Requesting deposit address...")
	deposit, err := a.Workflow.RequestDepositAddress(ctx, workflow.Request{
		SourceChain: req.SourceChain,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
	})
	s.Stop()
	if err != nil {
		return err
	}

	if !jsonOutput {
		displayDepositAddress(deposit, req)
	}

	if !bridgeNoConfirm && !cfg.AutoConfirm && !jsonOutput {
		if !confirm(fmt.Sprintf("Send %s %s to %s?", req.Amount, req.Token, deposit.Address)) {
			fmt.Println("\nBridge cancelled.")
			return nil
		}
	}

	spin("Sending transfer...")
	intent, err := a.Workflow.SubmitTransfer(ctx, req.Amount)
	s.Stop()
	if err != nil {
		return err
	}

	if !jsonOutput {
		color.Green("\n✓ Transfer broadcast")
		fmt.Printf("  Transaction: %s\n", color.CyanString(intent.TxHash))
	}

	if bridgeNoWait {
		return printBridgeResult(a.View().Workflow, jsonOutput)
	}

	spin("Waiting for confirmation (Ctrl+C to stop waiting)...")
	receipt, err := a.Workflow.AwaitConfirmation(ctx)
	s.Stop()
	if err != nil {
		if ctx.Err() != nil {
			color.Yellow("\nStopped waiting. The transfer %s is still pending.", intent.TxHash)
			return printBridgeResult(a.View().Workflow, jsonOutput)
		}
		return err
	}

	if !jsonOutput {
		displayReceipt(receipt)
	}

	return printBridgeResult(a.View().Workflow, jsonOutput)
}

// checkBridgeRequest rejects tokens and chains this bridge does not serve.
func checkBridgeRequest(req *types.BridgeRequest, cfg *config.Config) error {
	if req.Token != "USDC" {
		return fmt.Errorf("only USDC can be bridged, got %s", req.Token)
	}
	dest := strings.ToLower(req.DestChain)
	if dest != strings.ToLower(cfg.Destination.ChainName) && dest != strings.ToLower(cfg.Destination.ChainID) {
		return fmt.Errorf("unsupported destination chain %q (want %s)", req.DestChain, cfg.Destination.ChainName)
	}
	if _, err := amount.Parse(req.Amount, amount.USDCDecimals); err != nil {
		return err
	}
	return nil
}

func printBridgeResult(snap types.WorkflowSnapshot, jsonOutput bool) error {
	if jsonOutput {
		jsonData, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(jsonData))
		return nil
	}

	fmt.Printf("\nWorkflow %s is %s\n", snap.InstanceID, coloredState(snap.State))
	if snap.DepositAddress != nil && snap.State != types.StateCompleted {
		fmt.Println("\nYou can follow the relay using:")
		color.Cyan("  sei-bridge status %s\n", snap.DepositAddress.Address)
	}
	return nil
}

func displayDepositAddress(deposit types.DepositAddress, req *types.BridgeRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Yellow("                 DEPOSIT ADDRESS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Deposit Address:   %s\n", color.CyanString(deposit.Address))
	fmt.Printf("  Amount:            %s %s\n", req.Amount, color.YellowString(req.Token))
	fmt.Printf("  Source Chain:      %s\n", deposit.SourceChain)
	fmt.Printf("  Destination Chain: %s\n", deposit.DestinationChain)
	fmt.Printf("  Recipient:         %s\n", deposit.DestinationRecipient)
	fmt.Printf("  Denom:             %s\n", deposit.Denom)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayReceipt(receipt types.TransferReceipt) {
	color.Green("\n✓ Transfer confirmed")
	fmt.Printf("  Transaction: %s\n", color.CyanString(receipt.TxHash))
	fmt.Printf("  Block:       %d\n", receipt.BlockNumber)
	fmt.Printf("  Gas Used:    %d\n", receipt.GasUsed)
}

func coloredState(state types.WorkflowState) string {
	label := strings.ToUpper(string(state))

	switch state {
	case types.StateCompleted:
		return color.GreenString(label)
	case types.StateAwaitingConfirmation, types.StateAwaitingSourceTransfer:
		return color.YellowString(label)
	default:
		return label
	}
}

// printWorkflowError prints err with a hint for the kinds a user can act on.
func printWorkflowError(err error) {
	printError(err)

	switch errs.KindOf(err) {
	case errs.ProviderMissing:
		color.Yellow("Configure source.private_key (or source.keystore_path) and destination.mnemonic (or destination.address).\n")
	case errs.UserRejected, errs.SwitchRejected:
		color.Yellow("The request was declined in the wallet prompt.\n")
	case errs.WrongNetwork:
		color.Yellow("Add the required chain under source.networks so the wallet can switch to it.\n")
	case errs.ChainRegistrationFailed:
		color.Yellow("Register the chain with: sei-bridge chains register\n")
	case errs.RelayRequestFailed:
		color.Yellow("The relay did not issue a deposit address. Retrying is safe.\n")
	case errs.TransferNotConfirmed:
		color.Yellow("Check the transaction on a block explorer before retrying.\n")
	}
}
