package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"go.uber.org/zap"
)

// chainAliases maps bridge chain names onto 1Click blockchain identifiers.
var chainAliases = map[string]string{
	"ethereum": "eth",
	"sei":      "sei",
	"arbitrum": "arb",
	"base":     "base",
	"polygon":  "pol",
}

// OneClickRelay issues deposit addresses through 1Click quotes.
type OneClickRelay struct {
	client *oneclick.APIClient
	cfg    Config
	logger *zap.Logger
}

// NewOneClickRelay creates a new 1Click API backed relay
func NewOneClickRelay(cfg Config, logger *zap.Logger) (*OneClickRelay, error) {
	if cfg.JWTToken == "" {
		return nil, fmt.Errorf("1click relay needs a JWT token (relay.jwt_token)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config := oneclick.NewConfiguration()
	if cfg.BaseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: cfg.BaseURL}}
	}

	return &OneClickRelay{
		client: oneclick.NewAPIClient(config),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *OneClickRelay) authContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.cfg.JWTToken)
}

// SupportedTokens retrieves all supported tokens
func (c *OneClickRelay) SupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// FindTokenOnChain searches for a token by symbol on a specific chain
func (c *OneClickRelay) FindTokenOnChain(ctx context.Context, symbol, chain string) (*oneclick.TokenResponse, error) {
	tokens, err := c.SupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)
	if alias, ok := chainAliases[chain]; ok {
		chain = alias
	}

	for _, token := range tokens {
		if strings.ToUpper(token.GetSymbol()) == symbol &&
			strings.ToLower(token.GetBlockchain()) == chain {
			return &token, nil
		}
	}

	return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
}

func (c *OneClickRelay) resolveAssets(ctx context.Context, req DepositRequest) (string, string, error) {
	origin, destination := c.cfg.OriginAsset, c.cfg.DestinationAsset
	symbol := c.cfg.Symbol
	if symbol == "" {
		symbol = "USDC"
	}

	if origin == "" {
		token, err := c.FindTokenOnChain(ctx, symbol, req.SourceChain)
		if err != nil {
			return "", "", fmt.Errorf("source token error: %w", err)
		}
		origin = token.GetAssetId()
	}
	if destination == "" {
		token, err := c.FindTokenOnChain(ctx, symbol, req.DestinationChain)
		if err != nil {
			return "", "", fmt.Errorf("destination token error: %w", err)
		}
		destination = token.GetAssetId()
	}
	return origin, destination, nil
}

// GetDepositAddress generates a non-dry quote and returns its deposit address.
func (c *OneClickRelay) GetDepositAddress(ctx context.Context, req DepositRequest) (string, error) {
	if req.AmountHint == nil || req.AmountHint.Sign() <= 0 {
		return "", fmt.Errorf("1click quotes need the transfer amount up front")
	}
	if req.Recipient == "" {
		return "", fmt.Errorf("recipient address is required")
	}

	originAsset, destinationAsset, err := c.resolveAssets(ctx, req)
	if err != nil {
		return "", err
	}

	refundTo := req.RefundTo
	if refundTo == "" {
		return "", fmt.Errorf("1click quotes need a refund address on the source chain")
	}

	deadline := time.Now().Add(24 * time.Hour)

	quoteReq := oneclick.NewQuoteRequest(
		false,                   // dry - false to get a real deposit address
		"EXACT_INPUT",           // swapType
		100,                     // slippageTolerance (1%)
		originAsset,             // originAsset
		"ORIGIN_CHAIN",          // depositType
		destinationAsset,        // destinationAsset
		req.AmountHint.String(), // amount in smallest unit
		refundTo,                // refundTo
		"ORIGIN_CHAIN",          // refundType
		req.Recipient,           // recipient
		"DESTINATION_CHAIN",     // recipientType
		deadline,                // deadline
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authContext(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return "", apiError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return "", fmt.Errorf("empty quote response")
	}

	quote := resp.GetQuote()
	address := quote.GetDepositAddress()
	if address == "" {
		return "", fmt.Errorf("quote carries no deposit address")
	}

	c.logger.Info("1click quote issued",
		zap.String("deposit_address", address),
		zap.String("amount_out", quote.GetAmountOutFormatted()),
		zap.Float64("time_estimate_sec", float64(quote.GetTimeEstimate())))

	return address, nil
}

// NotifyDeposit submits the deposit transaction hash so the relay can pick it
// up before it indexes the chain itself.
func (c *OneClickRelay) NotifyDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(c.authContext(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return nil
}

// Status checks the execution status of the transfer behind depositAddress
func (c *OneClickRelay) Status(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authContext(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// apiError extracts the API's message from a failed call when there is one.
func apiError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("failed to get quote from API: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("failed to get quote from API (status: %d): %w", httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
	}
	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(bodyBytes))
}
