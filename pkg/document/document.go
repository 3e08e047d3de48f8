package document

import (
	"fmt"

	"github.com/cuemby/chronodb/pkg/codec"
)

// Document is an immutable mapping from attribute name to value
// (scalar or collection). Mutation is by writing a new Document with
// a new ContentHash, referenced by the same EntityId from a new
// transaction op.
type Document struct {
	Attrs map[string]interface{}
}

// New wraps an attribute map as a Document.
func New(attrs map[string]interface{}) Document {
	return Document{Attrs: attrs}
}

// ContentHash computes the SHA-1 digest of the document's canonical
// serialization.
func (d Document) ContentHash() (ContentHash, error) {
	raw, err := CanonicalBytes(d.Attrs)
	if err != nil {
		return ContentHash{}, err
	}
	return codec.Sha1(raw), nil
}

// Bytes returns the document's canonical serialization, the same
// bytes that are stored in the object store and produced to the
// doc-topic.
func (d Document) Bytes() ([]byte, error) {
	return CanonicalBytes(d.Attrs)
}

// FromBytes reconstructs a Document from its canonical serialization.
// The indexer calls this after reading a record off the doc-topic to
// recover the attribute map needed to populate the attribute/value
// index (index-doc operation).
func FromBytes(raw []byte) (Document, error) {
	v, err := DecodeCanonical(raw)
	if err != nil {
		return Document{}, fmt.Errorf("document: decode: %w", err)
	}
	attrs, ok := v.(map[string]interface{})
	if !ok {
		return Document{}, fmt.Errorf("document: decoded value is %T, not a document map", v)
	}
	return Document{Attrs: attrs}, nil
}
