package transport

import (
	"errors"
	"net"
	"sync"

	"github.com/Klingon-tech/networkneuron/internal/errs"
)

// linkSendQueueSize bounds each peer's outbound queue. A full queue fails
// the send fast rather than blocking the caller or the link's write loop.
const linkSendQueueSize = 256

// link is a single TCP connection to a peer, running one outbound and one
// inbound cooperative task, matching the per-peer send/recv loop model.
type link struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newLink(conn net.Conn) *link {
	return &link{
		conn: conn,
		out:  make(chan []byte, linkSendQueueSize),
		done: make(chan struct{}),
	}
}

// send enqueues a raw frame for the write loop. It never blocks: a full
// queue surfaces errs.RouteCongested immediately.
func (l *link) send(data []byte) error {
	select {
	case l.out <- data:
		return nil
	case <-l.done:
		return errs.New(errs.PeerDropped, "", errors.New("link closed"))
	default:
		return errs.New(errs.RouteCongested, "", nil)
	}
}

// writeLoop drains the outbound queue onto the wire until the link closes.
func (l *link) writeLoop() {
	for {
		select {
		case data := <-l.out:
			if err := writeFrame(l.conn, data); err != nil {
				l.Close()
				return
			}
		case <-l.done:
			return
		}
	}
}

// readLoop reads frames off the wire and hands each to dispatch until the
// connection errors or the link closes. dispatch runs synchronously so that
// per-peer inbound processing stays strictly ordered, per the concurrency
// model's per-peer ordering guarantee.
func (l *link) readLoop(dispatch func(data []byte)) {
	for {
		data, err := readFrame(l.conn)
		if err != nil {
			l.Close()
			return
		}
		select {
		case <-l.done:
			return
		default:
		}
		dispatch(data)
	}
}

// Close shuts down the link's connection and signals both loops to exit.
// Safe to call more than once.
func (l *link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.conn.Close()
	})
	return err
}
