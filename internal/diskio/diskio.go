package diskio

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"errors"
	"fmt"
	"os"

	"github.com/rcrowley/go-metrics"
	"github.com/selbt/sel/internal/bitfield"
	"github.com/selbt/sel/internal/bufferpool"
	"github.com/selbt/sel/internal/logger"
	"github.com/selbt/sel/internal/piece"
	"github.com/selbt/sel/internal/semaphore"
)

var (
	errInvalidDataLength = errors.New("data length does not match block length")
	errPieceOutOfRange   = errors.New("piece index out of range")
	errBlockOutOfRange   = errors.New("block exceeds piece length")
)

// Disk owns the backing file of a torrent. It serves block writes and piece
// hash checks for the piece manager. Block writes run in their own
// goroutines, bounded by a semaphore; requests for the same piece are
// serialized by the piece manager protocol.
type Disk struct {
	file   *os.File
	pieces []piece.Piece

	requests chan Request
	closeC   chan struct{}
	doneC    chan struct{}

	writeSem *semaphore.Semaphore
	readBufs *bufferpool.Pool

	writesPerSecond     metrics.Meter
	writeBytesPerSecond metrics.Meter

	log logger.Logger
}

// New returns a new Disk over the file. The piece map tells where each
// piece lives in the file. parallelWrites bounds the number of block writes
// that may be in flight at once.
func New(f *os.File, pieces []piece.Piece, parallelWrites int) *Disk {
	var maxPieceLength uint32
	for i := range pieces {
		if pieces[i].Length > maxPieceLength {
			maxPieceLength = pieces[i].Length
		}
	}
	return &Disk{
		file:                f,
		pieces:              pieces,
		requests:            make(chan Request),
		closeC:              make(chan struct{}),
		doneC:               make(chan struct{}),
		writeSem:            semaphore.New(parallelWrites),
		readBufs:            bufferpool.New(int(maxPieceLength)),
		writesPerSecond:     metrics.NewMeter(),
		writeBytesPerSecond: metrics.NewMeter(),
		log:                 logger.New("disk io"),
	}
}

// Requests returns the channel for sending requests to the disk actor.
func (d *Disk) Requests() chan<- Request { return d.requests }

// Scan reads every piece and returns the bitfield of pieces whose digest
// matches the expected one. It is used to seed the piece database before
// the actor is started. Pieces that cannot be read count as missing.
func (d *Disk) Scan() bitfield.BitField {
	have := bitfield.New(uint32(len(d.pieces)))
	for i := range d.pieces {
		p := &d.pieces[i]
		ok, err := d.verify(p)
		if err != nil {
			continue
		}
		if ok {
			have.Set(p.Index)
		}
	}
	return have
}

// Run processes requests until Close is called.
func (d *Disk) Run() {
	defer close(d.doneC)
	for {
		select {
		case <-d.closeC:
			return
		case req := <-d.requests:
			switch r := req.(type) {
			case WriteBlock:
				d.writeSem.Wait()
				go d.writeBlock(r)
			case CheckPiece:
				r.Response <- d.checkPiece(r.Index)
			}
		}
	}
}

// Close stops the actor and waits for it to exit.
func (d *Disk) Close() {
	close(d.closeC)
	<-d.doneC
}

func (d *Disk) writeBlock(r WriteBlock) {
	defer d.writeSem.Signal()
	err := d.doWrite(r)
	select {
	case r.Response <- err:
	case <-d.closeC:
	}
}

func (d *Disk) doWrite(r WriteBlock) error {
	if uint32(len(r.Data)) != r.Block.Length {
		return fmt.Errorf("block (%d, %d) of piece #%d with %d bytes of data: %w", r.Block.Begin, r.Block.Length, r.Index, len(r.Data), errInvalidDataLength)
	}
	if int(r.Index) >= len(d.pieces) {
		return fmt.Errorf("piece #%d: %w", r.Index, errPieceOutOfRange)
	}
	p := &d.pieces[r.Index]
	if r.Block.Begin+r.Block.Length > p.Length {
		return fmt.Errorf("block (%d, %d) of piece #%d with length %d: %w", r.Block.Begin, r.Block.Length, r.Index, p.Length, errBlockOutOfRange)
	}
	if _, err := d.file.WriteAt(r.Data, p.Offset+int64(r.Block.Begin)); err != nil {
		return err
	}
	d.writesPerSecond.Mark(1)
	d.writeBytesPerSecond.Mark(int64(len(r.Data)))
	return nil
}

func (d *Disk) checkPiece(index uint32) CheckResult {
	if int(index) >= len(d.pieces) {
		return CheckResult{Known: false}
	}
	p := &d.pieces[index]
	ok, err := d.verify(p)
	if err != nil {
		// Piece exists but cannot be read back; report it as corrupt so
		// it gets downloaded again.
		d.log.Errorf("cannot read piece #%d: %s", index, err)
		return CheckResult{Known: true, HashOK: false}
	}
	return CheckResult{Known: true, HashOK: ok}
}

func (d *Disk) verify(p *piece.Piece) (bool, error) {
	buf := d.readBufs.Get(int(p.Length))
	defer buf.Release()
	if _, err := d.file.ReadAt(buf.Data, p.Offset); err != nil {
		return false, err
	}
	sum := sha1.Sum(buf.Data) // nolint: gosec
	return bytes.Equal(sum[:], p.Hash[:]), nil
}
