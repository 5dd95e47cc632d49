package piecemanager

import (
	"fmt"

	"github.com/selbt/sel/internal/diskio"
	"github.com/selbt/sel/internal/logger"
	"github.com/selbt/sel/internal/piece"
	"github.com/selbt/sel/internal/piecedb"
	"github.com/selbt/sel/internal/stats"
)

// PieceManager tracks which pieces and blocks have been downloaded, hands
// out work to peer workers and drives piece verification. It owns the piece
// database exclusively; all mutation happens on the Run goroutine, so no
// locks are needed.
type PieceManager struct {
	db     *piecedb.DB
	pieces []piece.Piece

	messages chan Message
	diskC    chan<- diskio.Request
	chokeC   chan<- Notification
	statsC   chan<- stats.Event
	crashC   chan<- Crash

	closeC chan struct{}
	doneC  chan struct{}

	pushQueue       []Notification
	assertInterval  int
	assertCountdown int

	log logger.Logger
}

// New returns a new PieceManager over db.
// diskC, chokeC, statsC and crashC connect the manager to the filesystem,
// choke, status and supervisor collaborators. assertInterval is the number
// of loop iterations between two runs of the consistency audit.
func New(db *piecedb.DB, pieces []piece.Piece, diskC chan<- diskio.Request, chokeC chan<- Notification, statsC chan<- stats.Event, crashC chan<- Crash, assertInterval int) *PieceManager {
	return &PieceManager{
		db:             db,
		pieces:         pieces,
		messages:       make(chan Message),
		diskC:          diskC,
		chokeC:         chokeC,
		statsC:         statsC,
		crashC:         crashC,
		closeC:         make(chan struct{}),
		doneC:          make(chan struct{}),
		assertInterval: assertInterval,
		log:            logger.New("piece manager"),
	}
}

// Messages returns the channel for sending requests to the manager.
func (m *PieceManager) Messages() chan<- Message { return m.messages }

// Close stops the actor and waits for it to exit.
func (m *PieceManager) Close() {
	close(m.closeC)
	<-m.doneC
}

// Run is the event loop. Each iteration runs the consistency audit when its
// countdown expires, then waits for either an inbound message or, when the
// push queue is non-empty, the delivery of its head to the choke subsystem.
func (m *PieceManager) Run() {
	defer close(m.doneC)
	for {
		if m.assertCountdown == 0 {
			if err := m.db.Audit(); err != nil {
				m.crash(err)
				return
			}
			m.assertCountdown = m.assertInterval
		} else {
			m.assertCountdown--
		}
		var pushC chan<- Notification
		var head Notification
		if len(m.pushQueue) > 0 {
			pushC = m.chokeC
			head = m.pushQueue[0]
		}
		select {
		case <-m.closeC:
			return
		case pushC <- head:
			m.pushQueue = m.pushQueue[1:]
		case msg := <-m.messages:
			if err := m.handleMessage(msg); err != nil {
				m.crash(err)
				return
			}
		}
	}
}

func (m *PieceManager) handleMessage(msg Message) error {
	switch msg := msg.(type) {
	case GrabBlocks:
		checkouts, endgame := m.db.GrabBlocks(msg.K, msg.Eligible)
		msg.Response <- GrabResult{Checkouts: checkouts, Endgame: endgame}
		return nil
	case StoreBlock:
		return m.handleStoreBlock(msg)
	case PutbackBlocks:
		for _, c := range msg.Checkouts {
			if err := m.db.Putback(c); err != nil {
				return err
			}
		}
		return nil
	case AskInterested:
		msg.Response <- m.db.Interested(msg.Eligible)
		return nil
	case GetDone:
		msg.Response <- m.db.Done()
		return nil
	default:
		return fmt.Errorf("unknown message type %T", msg)
	}
}

func (m *PieceManager) handleStoreBlock(msg StoreBlock) error {
	if err := m.writeBlock(msg); err != nil {
		return fmt.Errorf("cannot write block (%d, %d) of piece #%d: %s", msg.Block.Begin, msg.Block.Length, msg.Index, err)
	}
	m.db.RemoveCheckout(msg.Index, msg.Block)
	if m.db.Endgame() {
		m.push(Notification{Type: BlockComplete, Index: msg.Index, Block: msg.Block})
	}
	result, err := m.db.RecordBlock(msg.Index, msg.Block)
	if err != nil {
		return err
	}
	if result != piecedb.StoreCompleted {
		return nil
	}
	return m.finishPiece(msg.Index)
}

// finishPiece runs when the last block of a piece is stored. The piece is
// hash checked by the disk; it either becomes done or goes back to pending.
func (m *PieceManager) finishPiece(index uint32) error {
	if err := m.db.VerifyAssembled(index); err != nil {
		return err
	}
	result := m.checkPiece(index)
	if !result.Known {
		return fmt.Errorf("piece #%d is not tracked by the disk", index)
	}
	if !result.HashOK {
		m.log.Noticef("piece #%d failed hash check, will download again", index)
		m.db.FailPiece(index)
		return nil
	}
	m.db.FinishPiece(index)
	m.push(Notification{Type: PieceDone, Index: index})
	m.sendStats(stats.CompletedPiece{Length: m.pieces[index].Length})
	if m.db.AllDone() {
		m.log.Infof("downloaded all %d pieces", m.db.NumPieces())
		m.push(Notification{Type: TorrentComplete})
		m.sendStats(stats.TorrentCompleted{})
	}
	return nil
}

// writeBlock forwards the block payload to the disk and waits for the ack.
func (m *PieceManager) writeBlock(msg StoreBlock) error {
	req := diskio.WriteBlock{
		Index:    msg.Index,
		Block:    msg.Block,
		Data:     msg.Data,
		Response: make(chan error),
	}
	m.diskC <- req
	return <-req.Response
}

// checkPiece asks the disk to recompute the digest of the piece and waits
// for the answer.
func (m *PieceManager) checkPiece(index uint32) diskio.CheckResult {
	req := diskio.CheckPiece{
		Index:    index,
		Response: make(chan diskio.CheckResult),
	}
	m.diskC <- req
	return <-req.Response
}

func (m *PieceManager) push(n Notification) {
	m.pushQueue = append(m.pushQueue, n)
}

func (m *PieceManager) sendStats(e stats.Event) {
	select {
	case m.statsC <- e:
	case <-m.closeC:
	}
}

func (m *PieceManager) crash(err error) {
	m.log.Errorln("piece manager stopped:", err)
	select {
	case m.crashC <- Crash{Component: "piece manager", Err: err}:
	case <-m.closeC:
	}
}
