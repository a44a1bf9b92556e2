package web

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/a-andre/traffic/netsim"
)

// ObjectKind distinguishes the two object types of the model. A
// request carries the kind it asks for; a response carries the kind
// being served.
type ObjectKind byte

const (
	MainObject ObjectKind = iota + 1
	EmbeddedObject
)

func (k ObjectKind) String() string {
	switch k {
	case MainObject:
		return "main-object"
	case EmbeddedObject:
		return "embedded-object"
	default:
		return "unknown"
	}
}

// HeaderSize is the wire size of ObjectHeader. TotalSize in the
// header counts these bytes too, so fragment arithmetic over the MTU
// is exact.
const HeaderSize = 14

// ObjectHeader prefixes every object (request or response) on the
// wire: 1 byte kind, 1 reserved byte, 4 bytes total size, 8 bytes
// virtual send time in nanoseconds.
type ObjectHeader struct {
	Kind      ObjectKind
	TotalSize uint32
	Sent      time.Duration
}

func (h ObjectHeader) encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = byte(h.Kind)
	binary.BigEndian.PutUint32(b[2:6], h.TotalSize)
	binary.BigEndian.PutUint64(b[6:14], uint64(h.Sent))
	return b
}

func decodeHeader(b []byte) (ObjectHeader, error) {
	if len(b) < HeaderSize {
		return ObjectHeader{}, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(b))
	}
	h := ObjectHeader{
		Kind:      ObjectKind(b[0]),
		TotalSize: binary.BigEndian.Uint32(b[2:6]),
		Sent:      time.Duration(binary.BigEndian.Uint64(b[6:14])),
	}
	if h.Kind != MainObject && h.Kind != EmbeddedObject {
		return ObjectHeader{}, fmt.Errorf("%w: kind %d", ErrBadHeader, b[0])
	}
	if h.TotalSize < HeaderSize {
		return ObjectHeader{}, fmt.Errorf("%w: total size %d", ErrBadHeader, h.TotalSize)
	}
	return h, nil
}

// writeObject fragments an object of hdr.TotalSize bytes into
// MTU-sized packets and queues them on conn. The header occupies the
// leading bytes; the rest is synthetic payload. onPacket, when
// non-nil, observes each fragment size as it is queued.
func writeObject(conn *netsim.Conn, hdr ObjectHeader, onPacket func(n int)) error {
	hb := hdr.encode()
	total := int(hdr.TotalSize)
	mtu := conn.MTU()
	for sent := 0; sent < total; {
		n := total - sent
		if n > mtu {
			n = mtu
		}
		p := make([]byte, n)
		if sent < HeaderSize {
			copy(p, hb[sent:])
		}
		if err := conn.Send(p); err != nil {
			return err
		}
		if onPacket != nil {
			onPacket(n)
		}
		sent += n
	}
	return nil
}

// objectAssembly reassembles one object from any number of receive
// callbacks, by total-byte-count bookkeeping against the header.
type objectAssembly struct {
	headerBuf  []byte
	header     ObjectHeader
	haveHeader bool
	received   int
}

func (a *objectAssembly) reset() {
	a.headerBuf = a.headerBuf[:0]
	a.haveHeader = false
	a.received = 0
}

// feed consumes one received packet. It reports whether the object is
// now complete, along with the decoded header once available.
func (a *objectAssembly) feed(p []byte) (complete bool, hdr ObjectHeader, err error) {
	a.received += len(p)
	if !a.haveHeader {
		a.headerBuf = append(a.headerBuf, p...)
		if len(a.headerBuf) < HeaderSize {
			return false, ObjectHeader{}, nil
		}
		h, err := decodeHeader(a.headerBuf)
		if err != nil {
			return false, ObjectHeader{}, err
		}
		a.header = h
		a.haveHeader = true
		a.headerBuf = a.headerBuf[:0]
	}
	return a.received >= int(a.header.TotalSize), a.header, nil
}
