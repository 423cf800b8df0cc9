package pubsub

// ResolveCreator decides which of two racing ports creates a connection's
// shared state and which attaches to it: the lexicographically smaller id
// creates, the other attaches. Both sides compute this independently from
// the same two ids and always agree, so no further coordination is needed
// to settle a simultaneous connection-creation race.
func ResolveCreator(a, b UniquePortId) (creator, attacher UniquePortId) {
	if a < b {
		return a, b
	}
	return b, a
}
