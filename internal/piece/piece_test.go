package piece

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/selbt/sel/internal/metainfo"
)

func TestNumBlocks(t *testing.T) {
	p := Piece{Length: 2 * BlockSize}
	assert.Equal(t, 2, p.NumBlocks(BlockSize))

	p = Piece{Length: 2*BlockSize + 42}
	assert.Equal(t, 3, p.NumBlocks(BlockSize))
}

func TestBlocks(t *testing.T) {
	p := Piece{Length: 2 * BlockSize}
	assert.Equal(t, []Block{
		{Begin: 0, Length: BlockSize},
		{Begin: BlockSize, Length: BlockSize},
	}, p.Blocks(BlockSize))

	p = Piece{Length: 2*BlockSize + 42}
	assert.Equal(t, []Block{
		{Begin: 0, Length: BlockSize},
		{Begin: BlockSize, Length: BlockSize},
		{Begin: 2 * BlockSize, Length: 42},
	}, p.Blocks(BlockSize))
}

// Blocks must cover [0, piece length) exactly once, in ascending order.
func TestBlocksCoverPiece(t *testing.T) {
	lengths := []uint32{1, 42, BlockSize - 1, BlockSize, BlockSize + 1, 3 * BlockSize, 3*BlockSize + 7}
	for _, length := range lengths {
		p := Piece{Length: length}
		var offset uint32
		for _, blk := range p.Blocks(BlockSize) {
			assert.Equal(t, offset, blk.Begin)
			assert.True(t, blk.Length > 0)
			assert.True(t, blk.Length <= BlockSize)
			offset += blk.Length
		}
		assert.Equal(t, length, offset)
	}
}

func TestFindBlock(t *testing.T) {
	p := Piece{
		Index:  1,
		Length: 2*BlockSize + 42,
	}

	_, ok := p.FindBlock(55, BlockSize, BlockSize)
	assert.False(t, ok)

	_, ok = p.FindBlock(3*BlockSize, BlockSize, BlockSize)
	assert.False(t, ok)

	_, ok = p.FindBlock(0, 1234, BlockSize)
	assert.False(t, ok)

	b, ok := p.FindBlock(0, BlockSize, BlockSize)
	assert.True(t, ok)
	assert.Equal(t, Block{Begin: 0, Length: BlockSize}, b)

	b, ok = p.FindBlock(2*BlockSize, 42, BlockSize)
	assert.True(t, ok)
	assert.Equal(t, Block{Begin: 2 * BlockSize, Length: 42}, b)
}

func TestNewPieces(t *testing.T) {
	hashes := make([]byte, 40)
	for i := range hashes {
		hashes[i] = byte(i)
	}
	info := &metainfo.Info{
		PieceLength: 32768,
		Pieces:      hashes,
		Length:      50000,
		NumPieces:   2,
	}
	pieces := NewPieces(info)
	assert.Len(t, pieces, 2)

	assert.Equal(t, uint32(0), pieces[0].Index)
	assert.Equal(t, int64(0), pieces[0].Offset)
	assert.Equal(t, uint32(32768), pieces[0].Length)
	assert.Equal(t, hashes[:20], pieces[0].Hash[:])

	assert.Equal(t, uint32(1), pieces[1].Index)
	assert.Equal(t, int64(32768), pieces[1].Offset)
	assert.Equal(t, uint32(50000-32768), pieces[1].Length)
	assert.Equal(t, hashes[20:], pieces[1].Hash[:])
}
