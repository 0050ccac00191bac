package parser

import (
	"fmt"
	"regexp"
	"strings"

	"sei-bridge/pkg/types"
)

// bridgePattern matches "<amount> <token> TO <chain>", optionally followed by
// "FROM <chain>".
var bridgePattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9.]+)\s+TO\s+([A-Z0-9_-]+)(?:\s+FROM\s+([A-Z0-9_-]+))?$`)

// ParseBridgeCommand parses a natural language bridge command
// Examples:
//   - "bridge 1 USDC to sei"
//   - "2.5 usdc to sei from ethereum"
func ParseBridgeCommand(command string) (*types.BridgeRequest, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.Join(strings.Fields(command), " ")

	// Remove the word "BRIDGE" if present at the beginning
	command = strings.TrimPrefix(command, "BRIDGE ")

	matches := bridgePattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid bridge command format. Expected: 'bridge <amount> <token> to <chain>' (e.g., 'bridge 1 USDC to sei')")
	}

	return &types.BridgeRequest{
		Amount:      matches[1],
		Token:       NormalizeTokenSymbol(matches[2]),
		DestChain:   strings.ToLower(matches[3]),
		SourceChain: strings.ToLower(matches[4]),
	}, nil
}

// ValidateBridgeRequest validates that a bridge request has all required fields
func ValidateBridgeRequest(req *types.BridgeRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.Token == "" {
		return fmt.Errorf("token is required")
	}
	if req.DestChain == "" {
		return fmt.Errorf("destination chain is required")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Axelar wrapped names all mean the same stablecoin
	aliases := map[string]string{
		"AUSDC":    "USDC",
		"AXLUSDC":  "USDC",
		"USDC.AXL": "USDC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
