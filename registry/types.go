// Package registry implements the named-resource layer: ServiceId
// derivation, StaticConfig persistence, DynamicConfig shared-memory
// control blocks, the create-or-open protocol, and Node monitoring
// tokens with dead-participant reclamation.
package registry

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
)

// Pattern tags the messaging pattern a StaticConfig was created under.
type Pattern uint8

const (
	PatternPublishSubscribe Pattern = iota
	PatternEvent
)

func (p Pattern) String() string {
	switch p {
	case PatternPublishSubscribe:
		return "pub-sub"
	case PatternEvent:
		return "event"
	default:
		return "unknown"
	}
}

// TypeVariant distinguishes fixed-size payloads/headers from dynamically
// sized ones (slices), per the spec's TypeDetail variant tag.
type TypeVariant uint8

const (
	FixedSize TypeVariant = iota
	DynamicSize
)

// TypeDetail structurally describes a payload or header type. Equality
// across processes is required for a connection to be established; it is
// checked field-by-field on open, never by comparing type names loosely.
type TypeDetail struct {
	Variant   TypeVariant
	TypeName  string
	Size      uint32
	Alignment uint32
}

func (t TypeDetail) Equal(o TypeDetail) bool {
	return t.Variant == o.Variant && t.TypeName == o.TypeName &&
		t.Size == o.Size && t.Alignment == o.Alignment
}

// ServiceName is a bounded, restricted-charset human-readable identifier;
// validity is enforced by cmn/cos.ValidateServiceName before a ServiceId is
// ever derived from it.
type ServiceName string

// ServiceId is the content-addressed, fixed-width hex identity of a
// service: two processes deriving it from the same
// {name, pattern, payload type, header type, config prefix} tuple always
// land on the same string.
type ServiceId string

// ComputeServiceId hashes the tuple that determines service identity with
// XXH64 over a canonical byte encoding - field lengths are length-prefixed
// so no two distinct tuples can collide on their concatenation alone.
func ComputeServiceId(name ServiceName, pattern Pattern, payload, header TypeDetail, configPrefix string) ServiceId {
	h := xxhash.New64()
	writeField(h, []byte(name))
	writeField(h, []byte{byte(pattern)})
	writeTypeDetail(h, payload)
	writeTypeDetail(h, header)
	writeField(h, []byte(configPrefix))
	return ServiceId(fmt.Sprintf("%016x", h.Sum64()))
}

func writeField(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [4]byte
	n := len(b)
	lenBuf[0] = byte(n)
	lenBuf[1] = byte(n >> 8)
	lenBuf[2] = byte(n >> 16)
	lenBuf[3] = byte(n >> 24)
	h.Write(lenBuf[:])
	h.Write(b)
}

func writeTypeDetail(h interface{ Write([]byte) (int, error) }, t TypeDetail) {
	writeField(h, []byte{byte(t.Variant)})
	writeField(h, []byte(t.TypeName))
	var szBuf [8]byte
	putUint32(szBuf[0:4], t.Size)
	putUint32(szBuf[4:8], t.Alignment)
	h.Write(szBuf[:])
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
