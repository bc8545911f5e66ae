package event

import "encoding/json"

// Event is a single record from the upstream feed. The fields the query
// layer filters on are lifted out; everything else is carried verbatim in
// Extra so stored documents reproduce the upstream record exactly.
type Event struct {
	SubjID       string
	ObjID        string
	SourceID     string
	Experimental bool
	Extra        map[string]json.RawMessage
}

const (
	keySubjID       = "subj_id"
	keyObjID        = "obj_id"
	keySourceID     = "source_id"
	keyExperimental = "experimental"
)

// UnmarshalJSON pulls out the filterable fields and keeps the remaining
// fields untouched.
func (e *Event) UnmarshalJSON(data []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields[keySubjID]; ok {
		if err := json.Unmarshal(raw, &e.SubjID); err != nil {
			return err
		}
		delete(fields, keySubjID)
	}
	if raw, ok := fields[keyObjID]; ok {
		if err := json.Unmarshal(raw, &e.ObjID); err != nil {
			return err
		}
		delete(fields, keyObjID)
	}
	if raw, ok := fields[keySourceID]; ok {
		if err := json.Unmarshal(raw, &e.SourceID); err != nil {
			return err
		}
		delete(fields, keySourceID)
	}
	if raw, ok := fields[keyExperimental]; ok {
		if err := json.Unmarshal(raw, &e.Experimental); err != nil {
			return err
		}
		delete(fields, keyExperimental)
	}
	e.Extra = fields
	return nil
}

// MarshalJSON reassembles the original record. Map keys marshal in sorted
// order, so output is deterministic for a given event.
func (e Event) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(e.Extra)+4)
	for k, v := range e.Extra {
		fields[k] = v
	}
	put := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}
	if err := put(keySubjID, e.SubjID); err != nil {
		return nil, err
	}
	if err := put(keyObjID, e.ObjID); err != nil {
		return nil, err
	}
	if err := put(keySourceID, e.SourceID); err != nil {
		return nil, err
	}
	if e.Experimental {
		if err := put(keyExperimental, true); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}
