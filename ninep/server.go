package ninep

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// node is one entry of the server's in-memory file tree. It plays the
// role ufs/driver.go's blockmem_t/console_t stubs play for biscuit's disk
// tests: a minimal backing store good enough to exercise the protocol,
// not a real filesystem (spec.md explicitly keeps VFS backing storage out
// of scope).
type node struct {
	name     string
	isDir    bool
	data     []byte
	children map[string]*node
}

func newDir(name string) *node  { return &node{name: name, isDir: true, children: map[string]*node{}} }
func newFile(name string, data []byte) *node {
	return &node{name: name, data: append([]byte(nil), data...)}
}

func (n *node) qid(path uint64) Qid {
	t := uint8(0)
	if n.isDir {
		t = 0x80
	}
	return Qid{Type: t, Version: 0, Path: path}
}

// Server is a minimal 9P2000 server over an in-memory tree, just enough
// to exercise Attach/Walk/Open/Read/Write/Clunk end to end.
type Server struct {
	mu   sync.Mutex
	root *node
	fids map[uint32]*fidState
	next uint64
}

type fidState struct {
	n *node
}

// NewServer returns a server rooted at root.
func NewServer(root *node) *Server {
	return &Server{root: root, fids: make(map[uint32]*fidState)}
}

// NewServerDir is a convenience constructor for building the in-memory
// tree handed to NewServer.
func NewServerDir(name string) *node { return newDir(name) }

// AddFile inserts a file under dir (which must itself be a directory
// node), returning the new node for chaining.
func AddFile(dir *node, name string, data []byte) *node {
	n := newFile(name, data)
	dir.children[name] = n
	return n
}

// AddDir inserts a subdirectory under dir.
func AddDir(dir *node, name string) *node {
	n := newDir(name)
	dir.children[name] = n
	return n
}

func (s *Server) path(n *node) uint64 {
	s.next++
	return s.next
}

// Serve runs the server loop over conn until it returns an error (EOF on
// clean shutdown).
func (s *Server) Serve(conn io.ReadWriter) error {
	for {
		m, err := ReadMessage(conn)
		if err != nil {
			return err
		}
		resp, rtype, err := s.handle(m)
		if err != nil {
			body := make([]byte, stringLen(err.Error()))
			putString(body, 0, err.Error())
			if werr := WriteMessage(conn, Rerror, m.Tag, body); werr != nil {
				return werr
			}
			continue
		}
		if err := WriteMessage(conn, rtype, m.Tag, resp); err != nil {
			return err
		}
	}
}

func (s *Server) handle(m Msg) ([]byte, MType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Type {
	case Tversion:
		_, off := getU32(m.Body, 0)
		version, _ := getString(m.Body, off)
		if version != "9P2000" {
			return nil, 0, fmt.Errorf("unsupported version %q", version)
		}
		body := make([]byte, 4+stringLen("9P2000"))
		putU32(body, 0, DefaultMsize)
		putString(body, 4, "9P2000")
		return body, Rversion, nil

	case Tattach:
		fid, off := getU32(m.Body, 0)
		_, off = getU32(m.Body, off) // afid
		_, off = getString(m.Body, off) // uname
		_, _ = getString(m.Body, off)   // aname
		s.fids[fid] = &fidState{n: s.root}
		body := make([]byte, 13)
		s.root.qid(1).marshal(body, 0)
		return body, Rattach, nil

	case Twalk:
		fid, off := getU32(m.Body, 0)
		newfid, off := getU32(m.Body, off)
		nwname := int(uint16(m.Body[off]) | uint16(m.Body[off+1])<<8)
		off += 2
		cur, ok := s.fids[fid]
		if !ok {
			return nil, 0, fmt.Errorf("unknown fid %d", fid)
		}
		walked := cur.n
		qids := make([]Qid, 0, nwname)
		for i := 0; i < nwname; i++ {
			name, noff := getString(m.Body, off)
			off = noff
			if name == "" {
				continue
			}
			child, ok := walked.children[name]
			if !ok {
				return nil, 0, fmt.Errorf("no such file %q", name)
			}
			walked = child
			qids = append(qids, walked.qid(s.path(walked)))
		}
		s.fids[newfid] = &fidState{n: walked}

		body := make([]byte, 2)
		body[0] = byte(len(qids))
		for _, q := range qids {
			extra := make([]byte, 13)
			q.marshal(extra, 0)
			body = append(body, extra...)
		}
		return body, Rwalk, nil

	case Topen:
		fid, _ := getU32(m.Body, 0)
		cur, ok := s.fids[fid]
		if !ok {
			return nil, 0, fmt.Errorf("unknown fid %d", fid)
		}
		body := make([]byte, 13)
		cur.n.qid(s.path(cur.n)).marshal(body, 0)
		return body, Ropen, nil

	case Tread:
		fid, off := getU32(m.Body, 0)
		offset, off := getU64(m.Body, off)
		count, _ := getU32(m.Body, off)
		cur, ok := s.fids[fid]
		if !ok {
			return nil, 0, fmt.Errorf("unknown fid %d", fid)
		}
		if cur.n.isDir {
			return s.readDir(cur.n, offset, count)
		}
		data := cur.n.data
		if offset >= uint64(len(data)) {
			return encodeReadBody(nil), Rread, nil
		}
		end := offset + uint64(count)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		return encodeReadBody(data[offset:end]), Rread, nil

	case Twrite:
		fid, off := getU32(m.Body, 0)
		offset, off := getU64(m.Body, off)
		n, off := getU32(m.Body, off)
		payload := m.Body[off : off+int(n)]
		cur, ok := s.fids[fid]
		if !ok {
			return nil, 0, fmt.Errorf("unknown fid %d", fid)
		}
		needed := int(offset) + len(payload)
		if needed > len(cur.n.data) {
			grown := make([]byte, needed)
			copy(grown, cur.n.data)
			cur.n.data = grown
		}
		copy(cur.n.data[offset:], payload)
		body := make([]byte, 4)
		putU32(body, 0, n)
		return body, Rwrite, nil

	case Tclunk:
		fid, _ := getU32(m.Body, 0)
		delete(s.fids, fid)
		return nil, Rclunk, nil

	case Tstat:
		fid, _ := getU32(m.Body, 0)
		cur, ok := s.fids[fid]
		if !ok {
			return nil, 0, fmt.Errorf("unknown fid %d", fid)
		}
		st := Stat{
			Qid:    cur.n.qid(s.path(cur.n)),
			Name:   cur.n.name,
			Length: uint64(len(cur.n.data)),
		}
		return st.Marshal(), Rstat, nil

	default:
		return nil, 0, fmt.Errorf("unsupported message type %d", m.Type)
	}
}

func (s *Server) readDir(n *node, offset uint64, count uint32) ([]byte, MType, error) {
	var all []byte
	for _, name := range sortedKeys(n.children) {
		child := n.children[name]
		st := Stat{Qid: child.qid(s.path(child)), Name: name, Length: uint64(len(child.data))}
		all = append(all, st.Marshal()...)
	}
	if offset >= uint64(len(all)) {
		return encodeReadBody(nil), Rread, nil
	}
	end := offset + uint64(count)
	if end > uint64(len(all)) {
		end = uint64(len(all))
	}
	return encodeReadBody(all[offset:end]), Rread, nil
}

func encodeReadBody(data []byte) []byte {
	body := make([]byte, 4+len(data))
	putU32(body, 0, uint32(len(data)))
	copy(body[4:], data)
	return body
}

func sortedKeys(m map[string]*node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && strings.Compare(keys[j-1], keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
