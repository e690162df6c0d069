package model

// Effect is the net result of folding a sequence of ops.
//
// Backends must apply it in this order: Clear, Prefixes, Upserts, Deletes.
// Upserts and Deletes never share a key.
type Effect struct {
	Clear    bool
	Prefixes []string
	Upserts  map[string][]byte
	Deletes  []string
}

func (e Effect) IsEmpty() bool {
	return !e.Clear && len(e.Prefixes) == 0 && len(e.Upserts) == 0 && len(e.Deletes) == 0
}
