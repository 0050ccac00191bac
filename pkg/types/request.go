package types

// BridgeRequest represents a user's bridge command
type BridgeRequest struct {
	Amount      string
	Token       string
	SourceChain string
	DestChain   string
	Recipient   string
}
