package store

// ResourceState is the lifecycle state of a Resource row. Transitions are
// described in SPEC_FULL.md §3.
type ResourceState string

const (
	StateStarting      ResourceState = "STARTING"
	StateUp            ResourceState = "UP"
	StateReleasing     ResourceState = "RELEASING"
	StateDeleteRequest ResourceState = "DELETE_REQUEST"
	StateDeleting      ResourceState = "DELETING"
	StateEnded         ResourceState = "ENDED"
)

// TicketState is the lifecycle state of a Ticket row.
type TicketState string

const (
	TicketOpen   TicketState = "OPEN"
	TicketClosed TicketState = "CLOSED"
)

// Resource is one externally-provisioned unit whose lifecycle this daemon
// drives through shell hooks. Field names and nullability mirror spec.md §3
// exactly; pointer fields (nil for SQL NULL) model the nullable columns.
type Resource struct {
	ID              int64         `db:"id"`
	Pool            string        `db:"pool"`
	Name            string        `db:"name"`
	State           ResourceState `db:"state"`
	Data            []byte        `db:"data"`
	CheckLastTime   int64         `db:"check_last_time"`
	CheckFailedCount int          `db:"check_failed_count"`
	Sandbox         *string       `db:"sandbox"`
	SandboxedSince  *int64        `db:"sandboxed_since"`
	ReleasesCounter int           `db:"releases_counter"`
	ReleasedAt      *int64        `db:"released_at"`
	Ticket          *int64        `db:"ticket"`
}

// IsTaken reports whether the resource currently has a bound ticket.
func (r Resource) IsTaken() bool { return r.Ticket != nil }

// ResourceTag is a (resource, tag, priority) row. Set once at allocation
// time from the owning Pool's configured tag list.
type ResourceTag struct {
	ResourceID int64  `db:"resource_id"`
	TagName    string `db:"tag_name"`
	Priority   int    `db:"priority"`
}

// IDWithinPool reserves a small, recyclable, human-facing slot number for a
// resource within its pool. Deleted once the owning resource reaches ENDED.
type IDWithinPool struct {
	PoolName string `db:"pool_name"`
	ID       int    `db:"id"`
	// ResourceID is not part of the original spec's minimal column list but
	// is required to know which resource a slot belongs to; it is the
	// resource's own id, carried as a foreign key alongside the pool-local
	// slot number.
	ResourceID int64 `db:"resource_id"`
}

// Ticket is a client request for one resource matching a tag set and an
// optional sandbox label.
type Ticket struct {
	ID         int64       `db:"id"`
	State      TicketState `db:"state"`
	TagSet     string      `db:"tag_set"` // comma-joined; see EncodeTagSet/DecodeTagSet
	Sandbox    *string     `db:"sandbox"`
	TID        *string     `db:"tid"`
	ResourceID *int64      `db:"resource_id"`
}

// PoolState is the small piece of per-pool state that persists across daemon
// restarts (everything else about a Pool is reloaded configuration, never
// stored).
type PoolState struct {
	ID                       string `db:"id"`
	LastStart                int64  `db:"last_start"`
	CleaningUnknownResources *int64 `db:"cleaning_unknown_resources"`
}

// PoolStats is the {on, free, start} triple spec.md §4.1 defines for the
// allocation loop's bookkeeping.
type PoolStats struct {
	On    int
	Free  int
	Start int
}
