package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sei-bridge/pkg/chainreg"
	"sei-bridge/pkg/types"
)

var (
	chainFile string
	chainREST string
	chainRPC  string
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "Manage the Cosmos chains known to the Sei wallet",
	Long: `The Sei wallet only enables accounts on chains it has registered. The bridge
registers the Sei testnet on first connect; these commands manage the
registry by hand.`,
}

var chainsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered chains",
	Args:    cobra.NoArgs,
	Run:     runChainsList,
}

var chainsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a chain definition",
	Long: `Register a chain definition with the Sei wallet.

Without --file the built-in Sei testnet (atlantic-1) definition is used.

Examples:
  sei-bridge chains register
  sei-bridge chains register --rest https://rest.atlantic-1.example
  sei-bridge chains register --file sei-mainnet.json`,
	Args: cobra.NoArgs,
	Run:  runChainsRegister,
}

var chainsRemoveCmd = &cobra.Command{
	Use:   "remove <chain-id>",
	Short: "Remove a registered chain",
	Args:  cobra.ExactArgs(1),
	Run:   runChainsRemove,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
	chainsCmd.AddCommand(chainsListCmd, chainsRegisterCmd, chainsRemoveCmd)

	chainsRegisterCmd.Flags().StringVarP(&chainFile, "file", "f", "", "JSON chain definition")
	chainsRegisterCmd.Flags().StringVar(&chainREST, "rest", "", "Override the REST endpoint")
	chainsRegisterCmd.Flags().StringVar(&chainRPC, "rpc", "", "Override the RPC endpoint")
}

func openRegistry(cmd *cobra.Command) (*chainreg.Registry, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return chainreg.NewRegistry(cfg.Destination.RegistryPath)
}

func runChainsList(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	registry, err := openRegistry(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	chains := registry.List()

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(chains) == 0 {
		fmt.Println("\nNo chains registered. Register the Sei testnet with: sei-bridge chains register")
		return
	}

	fmt.Printf("\nRegistry: %s\n\n", registry.FilePath())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN ID\tNAME\tPREFIX\tREST\tCURRENCIES")
	for _, def := range chains {
		denoms := make([]string, 0, len(def.Currencies))
		for _, cur := range def.Currencies {
			denoms = append(denoms, cur.CoinDenom)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			def.ChainID,
			def.ChainName,
			def.Bech32Config.Bech32PrefixAccAddr,
			def.REST,
			strings.Join(denoms, ", "))
	}
	w.Flush()
	fmt.Println()
}

func runChainsRegister(cmd *cobra.Command, args []string) {
	registry, err := openRegistry(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	def := chainreg.DefaultSeiTestnet()
	if chainFile != "" {
		def, err = readChainDefinition(chainFile)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}
	if chainREST != "" {
		def.REST = chainREST
	}
	if chainRPC != "" {
		def.RPC = chainRPC
	}

	if err := registry.Register(def); err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Green("\n✓ Registered %s (%s)", def.ChainName, def.ChainID)
	printSuccess(fmt.Sprintf("Saved to %s", registry.FilePath()))
}

func readChainDefinition(path string) (types.ChainDefinition, error) {
	var def types.ChainDefinition

	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("failed to read chain definition: %w", err)
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("failed to parse chain definition: %w", err)
	}
	return def, nil
}

func runChainsRemove(cmd *cobra.Command, args []string) {
	registry, err := openRegistry(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := registry.Remove(args[0]); err != nil {
		printError(err)
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Removed %s", args[0]))
}
