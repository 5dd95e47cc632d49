package piecemanager

import (
	"github.com/selbt/sel/internal/bitfield"
	"github.com/selbt/sel/internal/piece"
	"github.com/selbt/sel/internal/piecedb"
)

// Message is a request from a peer worker to the piece manager.
// Messages from a single peer are processed in arrival order.
type Message interface{ message() }

// GrabBlocks asks for up to K blocks to request from a peer that advertises
// the pieces in Eligible.
type GrabBlocks struct {
	K        int
	Eligible bitfield.BitField
	Response chan GrabResult
}

// GrabResult is the answer to a GrabBlocks request. In endgame mode the
// checkouts duplicate blocks already requested from other peers.
type GrabResult struct {
	Checkouts []piecedb.Checkout
	Endgame   bool
}

// StoreBlock reports a block received from a peer.
type StoreBlock struct {
	Index uint32
	Block piece.Block
	Data  []byte
}

// PutbackBlocks releases the outstanding checkouts of a disconnected peer.
type PutbackBlocks struct {
	Checkouts []piecedb.Checkout
}

// AskInterested asks whether a peer advertising Eligible has any piece we
// still want.
type AskInterested struct {
	Eligible bitfield.BitField
	Response chan bool
}

// GetDone asks for a snapshot of the verified piece indexes.
type GetDone struct {
	Response chan []uint32
}

func (GrabBlocks) message()    {}
func (StoreBlock) message()    {}
func (PutbackBlocks) message() {}
func (AskInterested) message() {}
func (GetDone) message()       {}
