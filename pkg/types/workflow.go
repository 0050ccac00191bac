package types

// WorkflowState defines the current step of a bridge workflow
type WorkflowState string

const (
	StateAwaitingDepositAddress WorkflowState = "awaiting_deposit_address" // No deposit address yet
	StateAwaitingSourceTransfer WorkflowState = "awaiting_source_transfer" // Deposit address issued
	StateAwaitingConfirmation   WorkflowState = "awaiting_confirmation"    // Transfer accepted, not final
	StateCompleted              WorkflowState = "completed"                // Transfer confirmed on source chain
)

var stateOrder = map[WorkflowState]int{
	StateAwaitingDepositAddress: 0,
	StateAwaitingSourceTransfer: 1,
	StateAwaitingConfirmation:   2,
	StateCompleted:              3,
}

// Ordinal returns the position of the state in the workflow, or -1 for an
// unknown state.
func (s WorkflowState) Ordinal() int {
	if o, ok := stateOrder[s]; ok {
		return o
	}
	return -1
}

// IsTerminal returns true once the transfer is confirmed
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted
}

// WorkflowSnapshot is a read-only view of a workflow instance.
type WorkflowSnapshot struct {
	InstanceID     string           `json:"instance_id"`
	State          WorkflowState    `json:"state"`
	DepositAddress *DepositAddress  `json:"deposit_address,omitempty"`
	Intent         *TransferIntent  `json:"intent,omitempty"`
	Receipt        *TransferReceipt `json:"receipt,omitempty"`
}
