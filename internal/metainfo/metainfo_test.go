package metainfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"
)

func encode(t *testing.T, v interface{}) []byte {
	b, err := bencode.EncodeBytes(v)
	require.NoError(t, err)
	return b
}

func testHashes(n int) string {
	b := make([]byte, n*20)
	for i := range b {
		b[i] = byte(i)
	}
	return string(b)
}

func TestNewInfo(t *testing.T) {
	b := encode(t, map[string]interface{}{
		"piece length": 32768,
		"pieces":       testHashes(2),
		"name":         "ubuntu.iso",
		"length":       50000,
	})
	i, err := NewInfo(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), i.NumPieces)
	assert.Equal(t, uint32(32768), i.PieceLength)
	assert.Equal(t, int64(50000), i.Length)
	assert.Equal(t, []byte(testHashes(2))[20:], i.PieceHash(1))

	assert.Panics(t, func() { i.PieceHash(2) })
}

func TestNewInfoInvalid(t *testing.T) {
	// pieces not a multiple of the digest size
	b := encode(t, map[string]interface{}{
		"piece length": 32768,
		"pieces":       "short",
		"name":         "x",
		"length":       50000,
	})
	_, err := NewInfo(b)
	assert.Error(t, err)

	// zero piece length
	b = encode(t, map[string]interface{}{
		"piece length": 0,
		"pieces":       testHashes(1),
		"name":         "x",
		"length":       100,
	})
	_, err = NewInfo(b)
	assert.Error(t, err)

	// total length does not match piece count
	b = encode(t, map[string]interface{}{
		"piece length": 32768,
		"pieces":       testHashes(2),
		"name":         "x",
		"length":       70000,
	})
	_, err = NewInfo(b)
	assert.Error(t, err)

	// multi-file torrents are not supported
	b = encode(t, map[string]interface{}{
		"piece length": 32768,
		"pieces":       testHashes(2),
		"name":         "x",
		"length":       50000,
		"files": []interface{}{
			map[string]interface{}{"length": 50000, "path": []interface{}{"a"}},
		},
	})
	_, err = NewInfo(b)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	b := encode(t, map[string]interface{}{
		"announce": "http://tracker.example.com/announce",
		"info": map[string]interface{}{
			"piece length": 32768,
			"pieces":       testHashes(2),
			"name":         "ubuntu.iso",
			"length":       50000,
		},
	})
	m, err := New(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, "http://tracker.example.com/announce", m.Announce)
	assert.Equal(t, uint32(2), m.Info.NumPieces)
	assert.Equal(t, "ubuntu.iso", m.Info.Name)
}
