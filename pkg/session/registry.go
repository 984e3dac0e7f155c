package session

// registry is the in-memory store of session records plus the default-record
// and active-id pointers. It is not safe for concurrent use; Manager guards it.
//
// defaultRecord always equals records[defaultID] or is nil.
type registry struct {
	records       map[string]*Record
	defaultID     string
	defaultRecord *Record
	activeID      string
}

func newRegistry(defaultID string) *registry {
	return &registry{
		records:   make(map[string]*Record),
		defaultID: defaultID,
		activeID:  defaultID,
	}
}

func (r *registry) get(id string) *Record {
	return r.records[id]
}

func (r *registry) put(rec *Record) {
	r.records[rec.ID] = rec
	if rec.ID == r.defaultID {
		r.defaultRecord = rec
	}
}

// remove deletes id only while it still maps to rec, so a late removal for an
// old record never drops its replacement. Removing an absent id is a no-op.
func (r *registry) remove(id string, rec *Record) bool {
	cur, ok := r.records[id]
	if !ok || cur != rec {
		return false
	}
	delete(r.records, id)
	if id == r.defaultID {
		r.defaultRecord = nil
	}
	return true
}

// forget removes rec and restores the active-id invariant. It is safe to apply
// more than once for the same record. It reports whether the active id was reset.
func (r *registry) forget(id string, rec *Record) bool {
	if rec != nil {
		r.remove(id, rec)
	}
	if r.activeID == id && id != r.defaultID && r.records[id] == nil {
		r.activeID = r.defaultID
		return true
	}
	return false
}

// has reports whether id may be made active.
func (r *registry) has(id string) bool {
	_, ok := r.records[id]
	return ok || id == r.defaultID
}

func (r *registry) clear() {
	clear(r.records)
	r.defaultRecord = nil
	r.activeID = r.defaultID
}

func (r *registry) snapshot() map[string]*Record {
	out := make(map[string]*Record, len(r.records))
	for id, rec := range r.records {
		out[id] = rec
	}
	return out
}
