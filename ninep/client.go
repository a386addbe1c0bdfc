package ninep

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
)

// Client is a 9P2000 client bound to one transport connection, ported
// from original_source/ninep/src/client.rs's Client{conn}.
type Client struct {
	demux    *Demultiplexer
	nextTag  atomic.Uint32
	nextFid  atomic.Uint32
	msize    uint32
}

// NewClient performs the 9P2000 version handshake over conn and returns a
// ready Client, mirroring Client::new's version negotiation: it proposes
// DefaultMsize, requires the reply's version to be exactly "9P2000", and
// adopts whatever msize the server replies with.
func NewClient(ctx context.Context, conn io.ReadWriter) (*Client, error) {
	c := &Client{demux: NewDemultiplexer(conn)}
	c.nextFid.Store(0)

	body := make([]byte, 4+stringLen("9P2000"))
	putU32(body, 0, DefaultMsize)
	putString(body, 4, "9P2000")
	if err := c.demux.Send(Tversion, NoTag, body); err != nil {
		return nil, err
	}
	resp, err := c.demux.Read(ctx, NoTag)
	if err != nil {
		return nil, err
	}
	if resp.Type != Rversion {
		return nil, fmt.Errorf("ninep: version handshake failed: got type %d", resp.Type)
	}
	msize, off := getU32(resp.Body, 0)
	version, _ := getString(resp.Body, off)
	if version != "9P2000" {
		return nil, fmt.Errorf("ninep: unsupported version %q", version)
	}
	c.msize = msize
	return c, nil
}

// Msize reports the negotiated message size ceiling.
func (c *Client) Msize() uint32 { return c.msize }

func (c *Client) tag() uint16 {
	return uint16(c.nextTag.Add(1))
}

// NewFid allocates a fresh fid for a caller-initiated Walk/Attach.
func (c *Client) NewFid() uint32 {
	return c.nextFid.Add(1)
}

func (c *Client) roundTrip(ctx context.Context, mtype MType, body []byte) (Msg, error) {
	tag := c.tag()
	if err := c.demux.Send(mtype, tag, body); err != nil {
		return Msg{}, err
	}
	resp, err := c.demux.Read(ctx, tag)
	if err != nil {
		return Msg{}, err
	}
	if resp.Type == Rerror {
		msg, _ := getString(resp.Body, 0)
		return Msg{}, fmt.Errorf("ninep: %s", msg)
	}
	return resp, nil
}

// Attach attaches fid to the server's root, mirroring Client::attach.
func (c *Client) Attach(ctx context.Context, fid uint32, uname, aname string) (Qid, error) {
	body := make([]byte, 4+4+stringLen(uname)+stringLen(aname))
	off := putU32(body, 0, fid)
	off = putU32(body, off, NoFid)
	off = putString(body, off, uname)
	putString(body, off, aname)

	resp, err := c.roundTrip(ctx, Tattach, body)
	if err != nil {
		return Qid{}, err
	}
	qid, _ := unmarshalQid(resp.Body, 0)
	return qid, nil
}

// Walk walks fid through names, binding the result to newfid, mirroring
// Client::walk / dir.rs's ClosedDirLike::walk.
func (c *Client) Walk(ctx context.Context, fid, newfid uint32, names []string) ([]Qid, error) {
	body := make([]byte, 4+4+2)
	off := putU32(body, 0, fid)
	off = putU32(body, off, newfid)
	binary.LittleEndian.PutUint16(body[off:], uint16(len(names)))
	for _, n := range names {
		extra := make([]byte, stringLen(n))
		putString(extra, 0, n)
		body = append(body, extra...)
	}

	resp, err := c.roundTrip(ctx, Twalk, body)
	if err != nil {
		return nil, err
	}
	nwqid := binary.LittleEndian.Uint16(resp.Body[0:2])
	qids := make([]Qid, nwqid)
	off = 2
	for i := range qids {
		qids[i], off = unmarshalQid(resp.Body, off)
	}
	return qids, nil
}

// Open opens fid with the given mode, mirroring client/dir.rs's
// ClosedDirLike::open / ClosedFileLike::open.
func (c *Client) Open(ctx context.Context, fid uint32, mode uint8) (Qid, error) {
	body := []byte{0, 0, 0, 0, mode}
	putU32(body, 0, fid)
	resp, err := c.roundTrip(ctx, Topen, body)
	if err != nil {
		return Qid{}, err
	}
	qid, _ := unmarshalQid(resp.Body, 0)
	return qid, nil
}

// Read reads up to count bytes from fid at offset, mirroring
// client/file.rs's File9P::read.
func (c *Client) Read(ctx context.Context, fid uint32, offset uint64, count uint32) ([]byte, error) {
	body := make([]byte, 4+8+4)
	off := putU32(body, 0, fid)
	off = putU64(body, off, offset)
	putU32(body, off, count)

	resp, err := c.roundTrip(ctx, Tread, body)
	if err != nil {
		return nil, err
	}
	n, off := getU32(resp.Body, 0)
	return resp.Body[off : off+int(n)], nil
}

// Write writes data to fid at offset, mirroring File9P::write.
func (c *Client) Write(ctx context.Context, fid uint32, offset uint64, data []byte) (uint32, error) {
	body := make([]byte, 4+8+4+len(data))
	off := putU32(body, 0, fid)
	off = putU64(body, off, offset)
	off = putU32(body, off, uint32(len(data)))
	copy(body[off:], data)

	resp, err := c.roundTrip(ctx, Twrite, body)
	if err != nil {
		return 0, err
	}
	n, _ := getU32(resp.Body, 0)
	return n, nil
}

// Clunk releases fid, mirroring client/node.rs's NodeLike::clunk.
func (c *Client) Clunk(ctx context.Context, fid uint32) error {
	body := make([]byte, 4)
	putU32(body, 0, fid)
	_, err := c.roundTrip(ctx, Tclunk, body)
	return err
}

// Stat requests fid's Stat, mirroring NodeLike::stat.
func (c *Client) Stat(ctx context.Context, fid uint32) (Stat, error) {
	body := make([]byte, 4)
	putU32(body, 0, fid)
	resp, err := c.roundTrip(ctx, Tstat, body)
	if err != nil {
		return Stat{}, err
	}
	st, _ := UnmarshalStat(resp.Body, 0)
	return st, nil
}
