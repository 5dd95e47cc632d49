// Package sel implements the piece manager core of a BitTorrent client.
package sel

// Config for the piece manager and its collaborators.
type Config struct {
	// BlockSize is the size of a single block request sent over the peer wire.
	BlockSize uint32
	// AssertInterval is the number of event loop iterations between two
	// consistency audits of the piece database.
	AssertInterval int
	// ParallelWrites is the number of block writes that may be in flight at once.
	ParallelWrites int
}

var DefaultConfig = Config{
	BlockSize:      16384,
	AssertInterval: 10,
	ParallelWrites: 4,
}
