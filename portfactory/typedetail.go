// Package portfactory is the builder chain an application actually calls:
// NewServiceBuilder(node, reg, name) -> PublishSubscribe[T](sb, cfg)/
// Event(sb, cfg) -> OpenOrCreate(mode) -> a PortFactory exposing Publisher()/Subscriber() or
// Notifier()/Listener() constructors, matching the registry's create-or-
// open protocol and DynamicConfig port tables underneath.
package portfactory

import (
	"reflect"

	"github.com/shmbus/shmbus/registry"
)

// typeDetail reflects T into the structural descriptor two processes
// compare on open: a slice payload is DynamicSize, everything else is
// treated as a fixed-layout value type.
func typeDetail[T any]() registry.TypeDetail {
	var zero T
	t := reflect.TypeOf(zero)
	variant := registry.FixedSize
	size := 0
	align := 1
	if t != nil {
		size = int(t.Size())
		align = t.Align()
		if t.Kind() == reflect.Slice {
			variant = registry.DynamicSize
			size = int(t.Elem().Size())
			align = t.Elem().Align()
		}
	}
	name := "<nil>"
	if t != nil {
		name = t.String()
	}
	return registry.TypeDetail{
		Variant:   variant,
		TypeName:  name,
		Size:      uint32(size),
		Alignment: uint32(align),
	}
}
