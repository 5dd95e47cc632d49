package metainfo

import (
	"crypto/sha1" // nolint: gosec
	"errors"
	"io"

	"github.com/zeebo/bencode"
)

var (
	errInvalidPieceData   = errors.New("invalid piece data")
	errInvalidPieceLength = errors.New("invalid piece length")
	errMultiFile          = errors.New("multi-file torrents are not supported")
)

// MetaInfo file dictionary.
type MetaInfo struct {
	Info     Info   `bencode:"info"`
	Announce string `bencode:"announce"`
}

// Info contains information about the torrent payload.
// Only single-file torrents are supported; the piece map is flat.
type Info struct {
	PieceLength uint32             `bencode:"piece length"`
	Pieces      []byte             `bencode:"pieces"`
	Name        string             `bencode:"name"`
	Length      int64              `bencode:"length"`
	Files       bencode.RawMessage `bencode:"files"`

	// Calculated fields, set by validate.
	NumPieces uint32 `bencode:"-"`
}

// New reads and parses a torrent file from r.
func New(r io.Reader) (*MetaInfo, error) {
	var m MetaInfo
	if err := bencode.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	if err := m.Info.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewInfo returns info from bencoded bytes in b.
func NewInfo(b []byte) (*Info, error) {
	var i Info
	if err := bencode.DecodeBytes(b, &i); err != nil {
		return nil, err
	}
	if err := i.validate(); err != nil {
		return nil, err
	}
	return &i, nil
}

func (i *Info) validate() error {
	if len(i.Files) > 0 {
		return errMultiFile
	}
	if i.PieceLength == 0 {
		return errInvalidPieceLength
	}
	if len(i.Pieces)%sha1.Size != 0 {
		return errInvalidPieceData
	}
	i.NumPieces = uint32(len(i.Pieces) / sha1.Size)
	totalPieceDataLength := int64(i.PieceLength) * int64(i.NumPieces)
	delta := totalPieceDataLength - i.Length
	if delta >= int64(i.PieceLength) || delta < 0 {
		return errInvalidPieceData
	}
	return nil
}

// PieceHash returns the 20-byte digest of the piece at index.
// Panics if index is out of range.
func (i *Info) PieceHash(index uint32) []byte {
	if index >= i.NumPieces {
		panic("piece index out of range")
	}
	begin := index * sha1.Size
	end := begin + sha1.Size
	return i.Pieces[begin:end]
}
