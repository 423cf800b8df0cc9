package registry

import (
	"github.com/tinylib/msgp/msgp"
)

// StaticConfig is the immutable descriptor persisted once at service
// creation; everything after the service id is pattern-specific tuning.
type StaticConfig struct {
	Id      ServiceId
	Name    ServiceName
	Pattern Pattern

	Payload TypeDetail
	Header  TypeDetail

	MaxPublishers         uint32
	MaxSubscribers        uint32
	SubscriberBufferSize  uint32
	HistorySize           uint32
	EnableSafeOverflow    bool
}

const staticConfigVersion = 1

// Marshal serializes sc byte-exactly using msgp's low-level Append* writers
// directly (no generated Encodable), so the wire layout is fully under this
// package's control and stable across Go versions.
func (sc *StaticConfig) Marshal() []byte {
	b := make([]byte, 0, 128)
	b = msgp.AppendUint8(b, staticConfigVersion)
	b = msgp.AppendString(b, string(sc.Id))
	b = msgp.AppendString(b, string(sc.Name))
	b = msgp.AppendUint8(b, uint8(sc.Pattern))
	b = appendTypeDetail(b, sc.Payload)
	b = appendTypeDetail(b, sc.Header)
	b = msgp.AppendUint32(b, sc.MaxPublishers)
	b = msgp.AppendUint32(b, sc.MaxSubscribers)
	b = msgp.AppendUint32(b, sc.SubscriberBufferSize)
	b = msgp.AppendUint32(b, sc.HistorySize)
	b = msgp.AppendBool(b, sc.EnableSafeOverflow)
	return b
}

func appendTypeDetail(b []byte, t TypeDetail) []byte {
	b = msgp.AppendUint8(b, uint8(t.Variant))
	b = msgp.AppendString(b, t.TypeName)
	b = msgp.AppendUint32(b, t.Size)
	b = msgp.AppendUint32(b, t.Alignment)
	return b
}

// UnmarshalStaticConfig parses bytes produced by Marshal; a version mismatch
// or truncated buffer is reported as a corrupted-static-config error rather
// than a generic decode failure, since the caller treats them differently
// (reclaim-if-unowned vs. plain I/O retry).
func UnmarshalStaticConfig(b []byte) (*StaticConfig, error) {
	var (
		sc  StaticConfig
		err error
	)
	version, b, err := msgp.ReadUint8Bytes(b)
	if err != nil {
		return nil, ErrCorrupted("static config: %v", err)
	}
	if version != staticConfigVersion {
		return nil, ErrCorrupted("static config: unsupported version %d", version)
	}
	var s string
	if s, b, err = msgp.ReadStringBytes(b); err != nil {
		return nil, ErrCorrupted("static config id: %v", err)
	}
	sc.Id = ServiceId(s)
	if s, b, err = msgp.ReadStringBytes(b); err != nil {
		return nil, ErrCorrupted("static config name: %v", err)
	}
	sc.Name = ServiceName(s)
	var pat uint8
	if pat, b, err = msgp.ReadUint8Bytes(b); err != nil {
		return nil, ErrCorrupted("static config pattern: %v", err)
	}
	sc.Pattern = Pattern(pat)
	if sc.Payload, b, err = readTypeDetail(b); err != nil {
		return nil, err
	}
	if sc.Header, b, err = readTypeDetail(b); err != nil {
		return nil, err
	}
	if sc.MaxPublishers, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return nil, ErrCorrupted("static config max publishers: %v", err)
	}
	if sc.MaxSubscribers, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return nil, ErrCorrupted("static config max subscribers: %v", err)
	}
	if sc.SubscriberBufferSize, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return nil, ErrCorrupted("static config buffer size: %v", err)
	}
	if sc.HistorySize, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return nil, ErrCorrupted("static config history size: %v", err)
	}
	if sc.EnableSafeOverflow, _, err = msgp.ReadBoolBytes(b); err != nil {
		return nil, ErrCorrupted("static config overflow flag: %v", err)
	}
	return &sc, nil
}

func readTypeDetail(b []byte) (TypeDetail, []byte, error) {
	var t TypeDetail
	variant, b, err := msgp.ReadUint8Bytes(b)
	if err != nil {
		return t, b, ErrCorrupted("type detail variant: %v", err)
	}
	t.Variant = TypeVariant(variant)
	if t.TypeName, b, err = msgp.ReadStringBytes(b); err != nil {
		return t, b, ErrCorrupted("type detail name: %v", err)
	}
	if t.Size, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return t, b, ErrCorrupted("type detail size: %v", err)
	}
	if t.Alignment, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return t, b, ErrCorrupted("type detail alignment: %v", err)
	}
	return t, b, nil
}

// CompatibleForOpen reports whether a builder requesting `want` may attach
// to a service persisted as sc under open (not create-only) semantics: type
// descriptors must match exactly, but requested maxima need only fit within
// what was persisted.
func (sc *StaticConfig) CompatibleForOpen(want *StaticConfig) error {
	if !sc.Payload.Equal(want.Payload) {
		return ErrIncompatibleType("payload type mismatch")
	}
	if !sc.Header.Equal(want.Header) {
		return ErrIncompatibleType("header type mismatch")
	}
	if sc.Pattern != want.Pattern {
		return ErrIncompatibleMessagingPattern("pattern mismatch")
	}
	if want.MaxPublishers > sc.MaxPublishers {
		return ErrExceedsMaxSupported("publishers")
	}
	if want.MaxSubscribers > sc.MaxSubscribers {
		return ErrExceedsMaxSupported("subscribers")
	}
	if want.SubscriberBufferSize > sc.SubscriberBufferSize {
		return ErrIncompatibleBufferSize("subscriber buffer size")
	}
	return nil
}
