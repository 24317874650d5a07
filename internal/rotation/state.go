package rotation

// State names a step of the rotation pipeline.
type State string

const (
	StateInit             State = "INIT"
	StateAuthenticated    State = "AUTHENTICATED"
	StateLibrariesListed  State = "LIBRARIES_LISTED"
	StateDestinationEmpty State = "DESTINATION_EMPTY"
	StatePreRefreshed     State = "PRE_REFRESHED"
	StateSampled          State = "SAMPLED"
	StateMaterialized     State = "MATERIALIZED"
	StatePostRefreshed    State = "POST_REFRESHED"
	StateDone             State = "DONE"
)

func (s State) String() string { return string(s) }
