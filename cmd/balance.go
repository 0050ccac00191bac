package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sei-bridge/pkg/app"
	"sei-bridge/pkg/balance"
	"sei-bridge/pkg/types"
)

var balanceCmd = &cobra.Command{
	Use:     "balance",
	Aliases: []string{"balances"},
	Short:   "Show USDC on the source chain and aUSDC on Sei",
	Long: `Connect both wallets and read their balances once.

Examples:
  sei-bridge balance
  sei-bridge balance --json`,
	Args: cobra.NoArgs,
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)

	a, _, cleanup, err := loadApp(cmd, false, s)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()

	if !jsonOutput {
		s.Suffix = " Reading balances..."
		s.Start()
	}

	// A wallet that fails to connect just leaves its side empty
	_, srcErr := a.Sessions.ConnectSource(ctx)
	_, dstErr := a.Sessions.ConnectDestination(ctx)
	a.Balances.Refresh(ctx)

	if !jsonOutput {
		s.Stop()
	}

	view := a.View()

	if jsonOutput {
		output := map[string]interface{}{
			"source":      balanceJSON(view.Source, view.SourceBal, srcErr),
			"destination": balanceJSON(view.Destination, view.DestBal, dstErr),
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if srcErr != nil {
		color.Red("Source wallet: %v", srcErr)
	}
	if dstErr != nil {
		color.Red("Sei wallet: %v", dstErr)
	}
	displayBalances(view)
}

func balanceJSON(sess *types.WalletSession, st balance.Status, connectErr error) map[string]interface{} {
	out := map[string]interface{}{}
	if sess != nil {
		out["account"] = sess.Address
	}
	if st.Snapshot != nil {
		out["denom"] = st.Snapshot.Denom
		out["amount"] = st.Snapshot.Amount.String()
		out["observed_at"] = st.Snapshot.ObservedAt
	}
	switch {
	case connectErr != nil:
		out["error"] = connectErr.Error()
	case st.Err != nil:
		out["error"] = st.Err.Error()
	}
	return out
}

func displayBalances(view app.View) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                      BALANCES")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Source:      %s\n", formatBalance(view.Source, view.SourceBal))
	fmt.Printf("  Sei:         %s\n", formatBalance(view.Destination, view.DestBal))
	if view.BlockHeight > 0 {
		fmt.Printf("  Block:       %d\n", view.BlockHeight)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func formatBalance(sess *types.WalletSession, st balance.Status) string {
	if sess == nil {
		return color.HiBlackString("not connected")
	}

	var value string
	switch {
	case st.Snapshot != nil:
		value = fmt.Sprintf("%s %s", st.Snapshot.Amount.String(), color.YellowString(st.Snapshot.Denom))
	case st.Err == nil:
		value = color.HiBlackString("none")
	default:
		value = color.HiBlackString("unknown")
	}
	if st.Err != nil {
		value += " " + color.RedString("(%v)", st.Err)
	}

	return fmt.Sprintf("%s  %s", value, color.CyanString(sess.Address))
}
