package piecedb

import "fmt"

// Audit verifies the internal consistency of the database. It is run
// periodically by the piece manager loop. Any error returned is a
// programmer error and must stop the component.
func (d *DB) Audit() error {
	if err := d.auditStates(); err != nil {
		return err
	}
	if err := d.auditCheckouts(); err != nil {
		return err
	}
	for index, ipp := range d.inProgress {
		if len(ipp.have) > ipp.totalBlocks {
			return fmt.Errorf("piece #%d has %d blocks recorded, total is %d", index, len(ipp.have), ipp.totalBlocks)
		}
	}
	return nil
}

// auditStates checks that pending, done and in progress are pairwise
// disjoint and that together they cover every piece.
func (d *DB) auditStates() error {
	for index := range d.pending {
		if _, ok := d.done[index]; ok {
			return fmt.Errorf("piece #%d is both pending and done", index)
		}
		if _, ok := d.inProgress[index]; ok {
			return fmt.Errorf("piece #%d is both pending and in progress", index)
		}
	}
	for index := range d.done {
		if _, ok := d.inProgress[index]; ok {
			return fmt.Errorf("piece #%d is both done and in progress", index)
		}
	}
	if total := len(d.pending) + len(d.done) + len(d.inProgress); total != len(d.pieces) {
		return fmt.Errorf("piece states cover %d pieces, want %d", total, len(d.pieces))
	}
	for i := range d.pieces {
		index := uint32(i)
		_, pending := d.pending[index]
		_, done := d.done[index]
		_, inProgress := d.inProgress[index]
		if !pending && !done && !inProgress {
			return fmt.Errorf("piece #%d is in no state", index)
		}
	}
	return nil
}

// auditCheckouts checks every entry of the downloading list against the
// in-progress records.
func (d *DB) auditCheckouts() error {
	for _, c := range d.downloading {
		if _, ok := d.done[c.Index]; ok {
			return fmt.Errorf("done piece #%d has a checked out block (%d, %d)", c.Index, c.Block.Begin, c.Block.Length)
		}
		ipp, ok := d.inProgress[c.Index]
		if !ok {
			return fmt.Errorf("piece #%d has a checked out block (%d, %d) but is not in progress", c.Index, c.Block.Begin, c.Block.Length)
		}
		if _, ok := ipp.have[c.Block]; ok {
			return fmt.Errorf("piece #%d block (%d, %d) is both checked out and recorded", c.Index, c.Block.Begin, c.Block.Length)
		}
		for _, blk := range ipp.pendingBlocks {
			if blk == c.Block {
				return fmt.Errorf("piece #%d block (%d, %d) is both checked out and pending", c.Index, c.Block.Begin, c.Block.Length)
			}
		}
	}
	return nil
}
