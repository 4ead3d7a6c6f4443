package docstore

// IDField is the identity field every document must carry.
const IDField = "id"

// Document is one JSON object in a collection.
type Document map[string]any

// ID returns the document's identity, or "" when it is missing or not a string.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a shallow copy of d. Nested values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// merge applies patch to a copy of d. The identity field is never overwritten.
func (d Document) merge(patch map[string]any) Document {
	out := d.Clone()
	for k, v := range patch {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}
