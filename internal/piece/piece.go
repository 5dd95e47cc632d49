package piece

import (
	"github.com/selbt/sel/internal/metainfo"
)

// BlockSize is the standard size of a single block request sent over the
// peer wire. It is the default for Config.BlockSize.
const BlockSize = 16 * 1024

// Piece of a torrent.
type Piece struct {
	Index  uint32 // index in torrent
	Offset int64  // byte offset of the piece in the backing file
	Length uint32 // always equal to Info.PieceLength except last piece
	Hash   [20]byte
}

// Block is a sub-piece unit exchanged over the peer wire.
// Two blocks are equal when both fields are equal.
type Block struct {
	Begin  uint32 // offset in piece
	Length uint32
}

// NewPieces builds the flat piece map for a single-file torrent.
func NewPieces(info *metainfo.Info) []Piece {
	pieces := make([]Piece, info.NumPieces)
	var offset int64
	left := info.Length
	for i := uint32(0); i < info.NumPieces; i++ {
		length := int64(info.PieceLength)
		if left < length {
			length = left
		}
		p := Piece{
			Index:  i,
			Offset: offset,
			Length: uint32(length),
		}
		copy(p.Hash[:], info.PieceHash(i))
		pieces[i] = p
		offset += length
		left -= length
	}
	return pieces
}

// NumBlocks returns the number of blocks in the piece.
func (p *Piece) NumBlocks(blockSize uint32) int {
	div, mod := divMod32(p.Length, blockSize)
	n := int(div)
	if mod != 0 {
		n++
	}
	return n
}

// Blocks splits the piece into blocks of blockSize in ascending offset order.
// The last block is shorter when the piece length is not a multiple of blockSize.
func (p *Piece) Blocks(blockSize uint32) []Block {
	div, mod := divMod32(p.Length, blockSize)
	numBlocks := div
	if mod != 0 {
		numBlocks++
	}
	blocks := make([]Block, numBlocks)
	for i := uint32(0); i < div; i++ {
		blocks[i] = Block{
			Begin:  i * blockSize,
			Length: blockSize,
		}
	}
	if mod != 0 {
		blocks[numBlocks-1] = Block{
			Begin:  div * blockSize,
			Length: mod,
		}
	}
	return blocks
}

// FindBlock returns the block starting at begin with the given length.
func (p *Piece) FindBlock(begin, length, blockSize uint32) (Block, bool) {
	idx, mod := divMod32(begin, blockSize)
	if mod != 0 {
		return Block{}, false
	}
	if idx >= uint32(p.NumBlocks(blockSize)) {
		return Block{}, false
	}
	blk := Block{Begin: begin, Length: blockSize}
	if begin+blockSize > p.Length {
		blk.Length = p.Length - begin
	}
	if blk.Length != length {
		return Block{}, false
	}
	return blk, true
}

func divMod32(a, b uint32) (uint32, uint32) { return a / b, a % b }
