package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAxelarURL is the base URL used when the axelar provider has no
// base_url configured.
const DefaultAxelarURL = "https://deposit-service.testnet.axelar.dev"

// HTTPRelay requests link (deposit) addresses over a plain JSON contract:
//
//	POST {base}/deposit-address
//	{"sourceChain","destinationChain","destinationAddress","asset","refundAddress"}
//	-> {"depositAddress"} (or {"address"}), errors as {"message"}
//
// This is not the Axelar SDK's own link-address protocol. Point base_url at
// a gateway that speaks it, or use the oneclick provider, which goes through
// the 1Click SDK.
type HTTPRelay struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPRelay creates a deposit address client for baseURL.
func NewHTTPRelay(baseURL, apiKey string, logger *zap.Logger) (*HTTPRelay, error) {
	if baseURL == "" {
		baseURL = DefaultAxelarURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("relay base url must be http(s): %s", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPRelay{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

type depositAddressRequest struct {
	SourceChain        string `json:"sourceChain"`
	DestinationChain   string `json:"destinationChain"`
	DestinationAddress string `json:"destinationAddress"`
	Asset              string `json:"asset"`
	RefundAddress      string `json:"refundAddress,omitempty"`
}

type depositAddressResponse struct {
	DepositAddress string `json:"depositAddress"`
	Address        string `json:"address"`
	Message        string `json:"message"`
}

// GetDepositAddress asks the service to link a fresh deposit address to
// req.Recipient.
func (r *HTTPRelay) GetDepositAddress(ctx context.Context, req DepositRequest) (string, error) {
	body, err := json.Marshal(depositAddressRequest{
		SourceChain:        req.SourceChain,
		DestinationChain:   req.DestinationChain,
		DestinationAddress: req.Recipient,
		Asset:              req.Denom,
		RefundAddress:      req.RefundTo,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode deposit address request: %w", err)
	}

	url := r.baseURL + "/deposit-address"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	r.logger.Debug("requesting deposit address",
		zap.String("url", url),
		zap.String("source_chain", req.SourceChain),
		zap.String("destination_chain", req.DestinationChain),
		zap.String("recipient", req.Recipient),
		zap.String("asset", req.Denom))

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach relay: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read relay response: %w", err)
	}

	var decoded depositAddressResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(respBody, &decoded) == nil && decoded.Message != "" {
			return "", fmt.Errorf("relay error (status %d): %s", resp.StatusCode, decoded.Message)
		}
		return "", fmt.Errorf("relay error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode relay response: %w", err)
	}

	address := decoded.DepositAddress
	if address == "" {
		address = decoded.Address
	}
	if address == "" {
		return "", fmt.Errorf("relay returned an empty deposit address")
	}

	return address, nil
}
