package stats

import (
	"github.com/rcrowley/go-metrics"
	"github.com/selbt/sel/internal/logger"
)

// Event is a status update sent to the collector.
type Event interface{ event() }

// CompletedPiece is sent when a piece is verified and written to disk.
type CompletedPiece struct {
	Length uint32
}

// TorrentCompleted is sent once, when the last piece is verified.
type TorrentCompleted struct{}

// Request asks the collector for a snapshot of the current stats.
type Request struct {
	Response chan Stats
}

func (CompletedPiece) event()   {}
func (TorrentCompleted) event() {}
func (Request) event()          {}

// Stats is a snapshot of the download status.
type Stats struct {
	BytesComplete  int64
	PiecesComplete int64
	Completed      bool
}

// Collector is the status collaborator. It accumulates progress counters
// and answers snapshot requests.
type Collector struct {
	events chan Event
	closeC chan struct{}
	doneC  chan struct{}

	bytesComplete  metrics.Counter
	piecesComplete metrics.Counter
	completed      bool

	log logger.Logger
}

// NewCollector returns a new Collector. Run must be called before sending events.
func NewCollector() *Collector {
	return &Collector{
		events:         make(chan Event),
		closeC:         make(chan struct{}),
		doneC:          make(chan struct{}),
		bytesComplete:  metrics.NewCounter(),
		piecesComplete: metrics.NewCounter(),
		log:            logger.New("stats"),
	}
}

// Events returns the channel for sending events to the collector.
func (c *Collector) Events() chan<- Event { return c.events }

// Run processes events until Close is called.
func (c *Collector) Run() {
	defer close(c.doneC)
	for {
		select {
		case <-c.closeC:
			return
		case e := <-c.events:
			switch ev := e.(type) {
			case CompletedPiece:
				c.bytesComplete.Inc(int64(ev.Length))
				c.piecesComplete.Inc(1)
			case TorrentCompleted:
				c.completed = true
				c.log.Infof("torrent completed, %d bytes", c.bytesComplete.Count())
			case Request:
				ev.Response <- Stats{
					BytesComplete:  c.bytesComplete.Count(),
					PiecesComplete: c.piecesComplete.Count(),
					Completed:      c.completed,
				}
			}
		}
	}
}

// Close stops the actor and waits for it to exit.
func (c *Collector) Close() {
	close(c.closeC)
	<-c.doneC
}
