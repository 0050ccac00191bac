package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens"},
	Short:   "List the assets the 1Click relay supports",
	Long: `List the assets known to the 1Click relay. Use it to find the asset ids for
relay.origin_asset and relay.destination_asset.

Examples:
  sei-bridge list-tokens --symbol USDC
  sei-bridge list-tokens --chain eth --symbol USDC`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client, err := newOneClickRelay(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}

	tokens, err := client.SupportedTokens(context.Background())
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := filterTokens(tokens, filterChain, filterSymbol)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func filterTokens(tokens []oneclick.TokenResponse, chain, symbol string) []oneclick.TokenResponse {
	var out []oneclick.TokenResponse
	for _, token := range tokens {
		if chain != "" && !strings.EqualFold(token.GetBlockchain(), chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(token.GetSymbol()), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func displayTokens(tokens []oneclick.TokenResponse) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	byChain := make(map[string][]oneclick.TokenResponse)
	for _, token := range tokens {
		byChain[token.GetBlockchain()] = append(byChain[token.GetBlockchain()], token)
	}

	chains := make([]string, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range byChain[chain] {
			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.GetSymbol()),
				token.GetDecimals(),
				color.HiBlackString(token.GetAssetId()))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
