// Package pubsub implements the zero-copy publish-subscribe transport: the
// per-connection sample-ownership protocol between one Publisher and many
// Subscribers, including loan/send/receive/release, history replay, and
// overflow policy.
package pubsub

import "encoding/binary"

// Header is stamped into every sample alongside its payload so a receiver
// can attribute origin without a side channel.
type Header struct {
	PublisherPortId string
	SequenceNumber  uint64
}

// HeaderSize is the fixed width reserved at the front of every slot: 8
// bytes for the sequence number, 2 for the port-id length, the rest for
// the port-id text itself, zero-padded.
const HeaderSize = 32

func encodeHeader(h Header, dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], h.SequenceNumber)
	id := []byte(h.PublisherPortId)
	if len(id) > HeaderSize-10 {
		id = id[:HeaderSize-10]
	}
	binary.LittleEndian.PutUint16(dst[8:10], uint16(len(id)))
	copy(dst[10:], id)
	for i := 10 + len(id); i < HeaderSize; i++ {
		dst[i] = 0
	}
}

func decodeHeader(src []byte) Header {
	seq := binary.LittleEndian.Uint64(src[0:8])
	n := binary.LittleEndian.Uint16(src[8:10])
	return Header{PublisherPortId: string(src[10 : 10+int(n)]), SequenceNumber: seq}
}

// Sample is a typed view over one slot of a Publisher's data segment: raw
// is the full slot (header prefix plus payload), Payload the caller-facing
// sub-slice past the header. Ownership is exclusive while borrowed: a
// Publisher holds it between Loan and Send, a Subscriber holds it between
// Receive and Release.
type Sample struct {
	Header  Header
	Payload []byte

	raw     []byte
	gen     int
	slot    uint32
	release func(gen int, slot uint32)
	done    bool
}

// Release returns the underlying slot; calling it twice is a no-op so a
// deferred Release alongside an explicit one in the happy path is safe.
func (s *Sample) Release() {
	if s.done {
		return
	}
	s.done = true
	s.release(s.gen, s.slot)
}
