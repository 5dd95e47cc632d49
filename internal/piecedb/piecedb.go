package piecedb

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/selbt/sel/internal/bitfield"
	"github.com/selbt/sel/internal/piece"
)

// ErrPieceNotTracked is returned when a block is stored or put back for a
// piece that is neither done nor in progress.
var ErrPieceNotTracked = errors.New("piece is neither done nor in progress")

// Checkout is a block that is currently requested from a peer.
type Checkout struct {
	Index uint32
	Block piece.Block
}

// inProgressPiece tracks the download state of a piece that has been opened
// but is not verified yet. pendingBlocks is ordered; the head is at index 0.
type inProgressPiece struct {
	totalBlocks   int
	have          map[piece.Block]struct{}
	pendingBlocks []piece.Block
}

// StoreResult is the outcome of recording a received block.
type StoreResult int

const (
	// StoreStray means the block was already recorded or its piece is
	// already done. Strays are common in endgame mode and without the
	// FAST extension; they are ignored.
	StoreStray StoreResult = iota
	// StoreRecorded means the block was recorded and the piece still has
	// missing blocks.
	StoreRecorded
	// StoreCompleted means the block was recorded and the piece now has
	// all of its blocks. The piece must be hash checked next.
	StoreCompleted
)

// DB tracks the download state of every piece of a torrent.
// Each piece is in exactly one of three states: pending (never opened),
// in progress (opened for download) or done (verified and written).
// DB is not safe for concurrent use; a single owner must drive it.
type DB struct {
	pieces      []piece.Piece
	blockSize   uint32
	pending     map[uint32]struct{}
	done        map[uint32]struct{}
	inProgress  map[uint32]*inProgressPiece
	downloading []Checkout
	endgame     bool
	rng         *rand.Rand
}

// New creates a DB from the piece map and the have bitfield produced by the
// initial disk scan. have must be as long as the piece map. Pieces are split
// into blocks of blockSize when they are opened for download.
func New(pieces []piece.Piece, have bitfield.BitField, blockSize uint32, rng *rand.Rand) *DB {
	if have.Len() != uint32(len(pieces)) {
		panic("have bitfield length does not match piece map")
	}
	d := &DB{
		pieces:     pieces,
		blockSize:  blockSize,
		pending:    make(map[uint32]struct{}),
		done:       make(map[uint32]struct{}),
		inProgress: make(map[uint32]*inProgressPiece),
		rng:        rng,
	}
	for i := range pieces {
		index := uint32(i)
		if have.Test(index) {
			d.done[index] = struct{}{}
		} else {
			d.pending[index] = struct{}{}
		}
	}
	return d
}

// NumPieces returns the total number of pieces.
func (d *DB) NumPieces() int { return len(d.pieces) }

// NumDone returns the number of verified pieces.
func (d *DB) NumDone() int { return len(d.done) }

// AllDone returns true when every piece is verified and written.
func (d *DB) AllDone() bool { return len(d.done) == len(d.pieces) }

// Endgame returns true once the first endgame grab has happened.
func (d *DB) Endgame() bool { return d.endgame }

// PieceLength returns the length of the piece at index.
func (d *DB) PieceLength(index uint32) uint32 { return d.pieces[index].Length }

// Done returns a sorted snapshot of the verified piece indexes.
func (d *DB) Done() []uint32 {
	snapshot := make([]uint32, 0, len(d.done))
	for index := range d.done {
		snapshot = append(snapshot, index)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i] < snapshot[j] })
	return snapshot
}

// DoneBitfield returns the verified pieces as a bitfield.
func (d *DB) DoneBitfield() bitfield.BitField {
	bf := bitfield.New(uint32(len(d.pieces)))
	for index := range d.done {
		bf.Set(index)
	}
	return bf
}

// Interested returns true if the peer advertising eligible has a piece we
// still want, i.e. one that is pending or in progress.
func (d *DB) Interested(eligible bitfield.BitField) bool {
	for index := range d.pending {
		if index < eligible.Len() && eligible.Test(index) {
			return true
		}
	}
	for index := range d.inProgress {
		if index < eligible.Len() && eligible.Test(index) {
			return true
		}
	}
	return false
}

// GrabBlocks hands out up to k blocks to a peer advertising eligible.
// Blocks are taken from in-progress pieces first; when those run out, new
// pending pieces are opened, picked uniformly at random. The grabbed blocks
// are added to the downloading list.
//
// When nothing can be grabbed and no piece is pending anymore, endgame mode
// is latched and a shuffled selection of the blocks already checked out to
// other peers is returned instead, with endgame true. Endgame grabs are not
// added to the downloading list; they duplicate existing checkouts.
func (d *DB) GrabBlocks(k int, eligible bitfield.BitField) ([]Checkout, bool) {
	var grabbed []Checkout
	take := func(index uint32, ipp *inProgressPiece) {
		for k > 0 && len(ipp.pendingBlocks) > 0 {
			blk := ipp.pendingBlocks[0]
			ipp.pendingBlocks = ipp.pendingBlocks[1:]
			grabbed = append(grabbed, Checkout{Index: index, Block: blk})
			k--
		}
	}
	for index, ipp := range d.inProgress {
		if k == 0 {
			break
		}
		if index < eligible.Len() && eligible.Test(index) {
			take(index, ipp)
		}
	}
	for k > 0 {
		candidates := d.pendingIn(eligible)
		if len(candidates) == 0 {
			break
		}
		index := candidates[d.rng.Intn(len(candidates))]
		take(index, d.open(index))
	}
	if len(grabbed) == 0 && len(d.pending) == 0 {
		d.endgame = true
		return d.duplicateCheckouts(k, eligible), true
	}
	d.downloading = append(d.downloading, grabbed...)
	return grabbed, false
}

// pendingIn returns the pending pieces the peer has.
func (d *DB) pendingIn(eligible bitfield.BitField) []uint32 {
	var candidates []uint32
	for index := range d.pending {
		if index < eligible.Len() && eligible.Test(index) {
			candidates = append(candidates, index)
		}
	}
	return candidates
}

// open moves a pending piece into the in-progress state with its full block list.
func (d *DB) open(index uint32) *inProgressPiece {
	if _, ok := d.pending[index]; !ok {
		panic(fmt.Sprintf("piece #%d is not pending", index))
	}
	delete(d.pending, index)
	p := &d.pieces[index]
	ipp := &inProgressPiece{
		totalBlocks:   p.NumBlocks(d.blockSize),
		have:          make(map[piece.Block]struct{}),
		pendingBlocks: p.Blocks(d.blockSize),
	}
	d.inProgress[index] = ipp
	return ipp
}

// duplicateCheckouts returns up to k blocks from the downloading list that
// the peer has, in random order.
func (d *DB) duplicateCheckouts(k int, eligible bitfield.BitField) []Checkout {
	var dup []Checkout
	for _, c := range d.downloading {
		if c.Index < eligible.Len() && eligible.Test(c.Index) {
			dup = append(dup, c)
		}
	}
	d.rng.Shuffle(len(dup), func(i, j int) { dup[i], dup[j] = dup[j], dup[i] })
	if len(dup) > k {
		dup = dup[:k]
	}
	return dup
}

// RemoveCheckout removes the first occurrence of the checkout from the
// downloading list. Removing a checkout that does not exist is a no-op;
// stored blocks that were never grabbed from us end up here.
func (d *DB) RemoveCheckout(index uint32, blk piece.Block) bool {
	for i, c := range d.downloading {
		if c.Index == index && c.Block == blk {
			d.downloading = append(d.downloading[:i], d.downloading[i+1:]...)
			return true
		}
	}
	return false
}

// RecordBlock records a received block of a piece.
func (d *DB) RecordBlock(index uint32, blk piece.Block) (StoreResult, error) {
	if _, ok := d.done[index]; ok {
		return StoreStray, nil
	}
	ipp, ok := d.inProgress[index]
	if !ok {
		return 0, fmt.Errorf("stored block (%d, %d) of piece #%d: %w", blk.Begin, blk.Length, index, ErrPieceNotTracked)
	}
	if _, ok := ipp.have[blk]; ok {
		return StoreStray, nil
	}
	ipp.have[blk] = struct{}{}
	if len(ipp.have) == ipp.totalBlocks {
		return StoreCompleted, nil
	}
	return StoreRecorded, nil
}

// VerifyAssembled checks that the blocks of a tentatively complete piece
// cover it contiguously from offset zero and that none of its blocks is
// still checked out. A failure here is a programmer error.
func (d *DB) VerifyAssembled(index uint32) error {
	ipp, ok := d.inProgress[index]
	if !ok {
		return fmt.Errorf("piece #%d is not in progress", index)
	}
	blocks := make([]piece.Block, 0, len(ipp.have))
	for blk := range ipp.have {
		blocks = append(blocks, blk)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Begin < blocks[j].Begin })
	var offset uint32
	for _, blk := range blocks {
		if blk.Begin != offset {
			return fmt.Errorf("piece #%d has a gap at offset %d", index, offset)
		}
		offset += blk.Length
	}
	if offset != d.pieces[index].Length {
		return fmt.Errorf("piece #%d blocks cover %d bytes, piece length is %d", index, offset, d.pieces[index].Length)
	}
	for _, c := range d.downloading {
		if c.Index == index {
			return fmt.Errorf("piece #%d is complete but block (%d, %d) is still checked out", index, c.Block.Begin, c.Block.Length)
		}
	}
	return nil
}

// FinishPiece moves a verified piece from in progress to done.
func (d *DB) FinishPiece(index uint32) {
	if _, ok := d.inProgress[index]; !ok {
		panic(fmt.Sprintf("piece #%d is not in progress", index))
	}
	delete(d.inProgress, index)
	d.done[index] = struct{}{}
}

// FailPiece moves a piece that failed the hash check back to pending.
// Its download state is dropped; the piece will be re-allocated from scratch.
func (d *DB) FailPiece(index uint32) {
	if _, ok := d.inProgress[index]; !ok {
		panic(fmt.Sprintf("piece #%d is not in progress", index))
	}
	delete(d.inProgress, index)
	d.pending[index] = struct{}{}
}

// Putback releases a checkout of a departed peer. The block goes back to
// the head of the pending block list of its piece so it is handed out first
// on the next grab. Putbacks for done pieces are endgame strays and ignored.
func (d *DB) Putback(c Checkout) error {
	if _, ok := d.done[c.Index]; ok {
		return nil
	}
	ipp, ok := d.inProgress[c.Index]
	if !ok {
		return fmt.Errorf("put back block (%d, %d) of piece #%d: %w", c.Block.Begin, c.Block.Length, c.Index, ErrPieceNotTracked)
	}
	ipp.pendingBlocks = append([]piece.Block{c.Block}, ipp.pendingBlocks...)
	d.RemoveCheckout(c.Index, c.Block)
	return nil
}
