package channel

// Snapshot is a point-in-time view of a session's meaningful state, for
// debugging and reporting. Fields that do not apply to the session's
// role are zero.
type Snapshot struct {
	ID        string
	Role      string
	Status    Status
	ChannelID uint64

	// Beneficiary side.
	Accepted          int
	LastAcceptedValue int64

	// Payer side.
	Issued          int64
	LastIssuedValue int64
}

// Snapshotter is anything that can report a session snapshot.
type Snapshotter interface {
	Snapshot() Snapshot
}
