package diskio

import "github.com/selbt/sel/internal/piece"

// Request is a message to the disk actor.
// Requests carry a response channel; the sender blocks until the disk replies.
type Request interface{ request() }

// WriteBlock writes the data of a downloaded block to the backing file.
// len(Data) must be equal to Block.Length.
type WriteBlock struct {
	Index    uint32
	Block    piece.Block
	Data     []byte
	Response chan error
}

// CheckPiece recomputes the digest of the piece at Index and compares it
// with the expected digest from the metainfo.
type CheckPiece struct {
	Index    uint32
	Response chan CheckResult
}

// CheckResult is the answer to a CheckPiece request. Known is false when the
// piece index is not tracked by the disk.
type CheckResult struct {
	Known  bool
	HashOK bool
}

func (WriteBlock) request() {}
func (CheckPiece) request() {}
