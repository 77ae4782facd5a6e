package domain

// MutationState is the stage a ledger mutation has reached.
type MutationState string

const (
	StateValidating MutationState = "validating"
	StateLocking    MutationState = "locking"
	StateComputing  MutationState = "computing"
	StatePersisting MutationState = "persisting"
	StateProjecting MutationState = "projecting"
	StateCommitted  MutationState = "committed"
	StateRolledBack MutationState = "rolled_back"
)

// Mutation operations.
const (
	OpCreateEntry  = "create_entry"
	OpUpdateEntry  = "update_entry"
	OpDeleteEntry  = "delete_entry"
	OpCreateRecord = "create_record"
	OpDeleteRecord = "delete_record"
	OpRepairRecord = "repair_record"
)
