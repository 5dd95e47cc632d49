package piecemanager

import "github.com/selbt/sel/internal/piece"

// NotificationType enumerates the messages sent to the choke subsystem.
type NotificationType int

const (
	// PieceDone is sent when a piece is verified and written to disk.
	PieceDone NotificationType = iota
	// BlockComplete is sent in endgame mode when a block is stored, so
	// duplicate requests at other peers can be cancelled.
	BlockComplete
	// TorrentComplete is sent once, when the last piece is done.
	TorrentComplete
)

// Notification is an outbound message to the choke subsystem. Notifications
// are queued and delivered in FIFO order.
type Notification struct {
	Type  NotificationType
	Index uint32
	Block piece.Block
}

// Crash is sent to the supervisor when the piece manager hits an
// unrecoverable error.
type Crash struct {
	Component string
	Err       error
}
