package registry_test

import (
	"testing"

	"github.com/shmbus/shmbus/registry"
)

func sampleConfig() *registry.StaticConfig {
	return &registry.StaticConfig{
		Id:                   registry.ComputeServiceId("demo", registry.PatternPublishSubscribe, payloadType(), headerType(), ""),
		Name:                 "demo",
		Pattern:              registry.PatternPublishSubscribe,
		Payload:              payloadType(),
		Header:               headerType(),
		MaxPublishers:        4,
		MaxSubscribers:       16,
		SubscriberBufferSize: 8,
		HistorySize:          2,
		EnableSafeOverflow:   true,
	}
}

func payloadType() registry.TypeDetail {
	return registry.TypeDetail{Variant: registry.FixedSize, TypeName: "demo.Frame", Size: 64, Alignment: 8}
}

func headerType() registry.TypeDetail {
	return registry.TypeDetail{Variant: registry.FixedSize, TypeName: "demo.Header", Size: 16, Alignment: 8}
}

func TestStaticConfigRoundTrip(t *testing.T) {
	sc := sampleConfig()
	b := sc.Marshal()
	got, err := registry.UnmarshalStaticConfig(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Id != sc.Id || got.Name != sc.Name || got.Pattern != sc.Pattern {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, sc)
	}
	if !got.Payload.Equal(sc.Payload) || !got.Header.Equal(sc.Header) {
		t.Fatal("type detail round trip mismatch")
	}
	if got.MaxPublishers != sc.MaxPublishers || got.SubscriberBufferSize != sc.SubscriberBufferSize {
		t.Fatal("tunable parameter round trip mismatch")
	}
}

func TestUnmarshalCorruptedReportsKind(t *testing.T) {
	_, err := registry.UnmarshalStaticConfig([]byte{0xff, 0xff})
	if err == nil {
		t.Fatal("expected error on garbage input")
	}
	if registry.Kind(err) != "ServiceInCorruptedState" {
		t.Fatalf("expected ServiceInCorruptedState, got %q", registry.Kind(err))
	}
}

func TestServiceIdDeterministic(t *testing.T) {
	a := registry.ComputeServiceId("demo", registry.PatternPublishSubscribe, payloadType(), headerType(), "")
	b := registry.ComputeServiceId("demo", registry.PatternPublishSubscribe, payloadType(), headerType(), "")
	if a != b {
		t.Fatalf("expected deterministic ids, got %q and %q", a, b)
	}
	c := registry.ComputeServiceId("other", registry.PatternPublishSubscribe, payloadType(), headerType(), "")
	if a == c {
		t.Fatal("different names must not collide")
	}
}

func TestCompatibleForOpen(t *testing.T) {
	persisted := sampleConfig()
	want := sampleConfig()
	want.MaxPublishers = 2
	if err := persisted.CompatibleForOpen(want); err != nil {
		t.Fatalf("requesting fewer than persisted maxima should be compatible: %v", err)
	}
	want.Payload.Size = 128
	if err := persisted.CompatibleForOpen(want); err == nil {
		t.Fatal("expected incompatible type error on payload size mismatch")
	}
}
