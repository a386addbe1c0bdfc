package ninep

import (
	"context"
	"fmt"
	"io"
	"sync"

	"arca/async"
)

// Demultiplexer serializes writes to a single 9P transport and lets many
// concurrent callers each await the response tagged for their own
// request, ported from original_source/ninep/src/client.rs's
// Demultiplexer{conn, sem, storage}. Like the original, a reader that
// pulls a response for someone else's tag off the wire stores it and
// keeps reading rather than blocking forever — the known head-of-line
// blocking limitation noted in the original's own "TODO: fix head-of-line
// blocking here" is preserved here rather than silently fixed, since
// fixing it changes the concurrency model the spec describes.
type Demultiplexer struct {
	sendMu sync.Mutex
	conn   io.ReadWriter

	sem     *async.Semaphore
	storeMu sync.Mutex
	storage map[uint16]Msg
}

// NewDemultiplexer wraps conn for tag-multiplexed request/response use.
func NewDemultiplexer(conn io.ReadWriter) *Demultiplexer {
	return &Demultiplexer{conn: conn, sem: async.NewSemaphore(1), storage: make(map[uint16]Msg)}
}

// Send writes one request under the transport's send lock; it does not
// wait for a response.
func (d *Demultiplexer) Send(mtype MType, tag uint16, body []byte) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return WriteMessage(d.conn, mtype, tag, body)
}

// Read waits for the response tagged tag, reading and stashing any other
// tag's response it encounters along the way — the direct port of
// client.rs's Demultiplexer::read.
func (d *Demultiplexer) Read(ctx context.Context, tag uint16) (Msg, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return Msg{}, err
	}

	d.storeMu.Lock()
	if m, ok := d.storage[tag]; ok {
		delete(d.storage, tag)
		d.storeMu.Unlock()
		d.sem.Release(1)
		return m, nil
	}
	d.storeMu.Unlock()

	for {
		m, err := ReadMessage(d.conn)
		if err != nil {
			d.sem.Release(1)
			return Msg{}, fmt.Errorf("ninep: read: %w", err)
		}
		if m.Tag == tag {
			d.sem.Release(1)
			return m, nil
		}
		d.storeMu.Lock()
		d.storage[m.Tag] = m
		d.storeMu.Unlock()
	}
}
