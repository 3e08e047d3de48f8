package document

import (
	"encoding/hex"
	"fmt"

	"github.com/cuemby/chronodb/pkg/chronoerr"
	"github.com/cuemby/chronodb/pkg/codec"
	"github.com/google/uuid"
)

// EntityId is a canonical, fixed-width identifier: always a 20-byte
// SHA-1 digest.
type EntityId = codec.Hash

// ContentHash is the SHA-1 digest of a document's canonical
// serialization.
type ContentHash = codec.Hash

// TombstoneHash is the fixed sentinel content-hash an evicted
// entity's index-3 entries are rewritten to point at on eviction. It
// is distinct from ZeroHash so a caller can tell "entity evicted"
// apart from "decoded a nil byte array".
var TombstoneHash = codec.Sha1([]byte("chronodb/tombstone"))

// CanonicalizeEntityId reduces any of the accepted EntityId input
// shapes (keyword-like strings, UUIDs, hex strings of the digest
// width, raw byte arrays, or arbitrary maps) to a fixed-width
// EntityId.
//
// Precedence:
//  1. Already an EntityId/Hash: returned unchanged.
//  2. []byte of exactly HashSize: taken as a literal digest.
//  3. []byte of any other length: SHA-1 hashed.
//  4. string parseable as a UUID: SHA-1 of the 16 raw UUID bytes.
//  5. string of exactly 2*HashSize hex characters: valid hex decodes
//     to a literal digest; invalid hex at that exact width is
//     rejected as malformed, since that width signals hex-digest
//     intent rather than a keyword that happens to look hex-ish.
//  6. any other string: treated as a keyword-like identifier and
//     SHA-1 hashed directly.
//  7. map[string]interface{}: canonically serialized, then SHA-1
//     hashed.
func CanonicalizeEntityId(v interface{}) (EntityId, error) {
	switch x := v.(type) {
	case EntityId:
		return x, nil
	case []byte:
		if len(x) == codec.HashSize {
			return codec.HashFromBytes(x)
		}
		return codec.Sha1(x), nil
	case uuid.UUID:
		return codec.Sha1(x[:]), nil
	case string:
		return canonicalizeIDString(x)
	case map[string]interface{}:
		raw, err := CanonicalBytes(x)
		if err != nil {
			return EntityId{}, fmt.Errorf("%w: %v", chronoerr.ErrMalformedID, err)
		}
		return codec.Sha1(raw), nil
	default:
		return EntityId{}, fmt.Errorf("%w: unsupported entity id type %T", chronoerr.ErrMalformedID, v)
	}
}

func canonicalizeIDString(s string) (EntityId, error) {
	if u, err := uuid.Parse(s); err == nil {
		return codec.Sha1(u[:]), nil
	}

	if len(s) == codec.HashSize*2 {
		raw, err := hex.DecodeString(s)
		if err != nil {
			return EntityId{}, fmt.Errorf("%w: %q looks like a digest-width hex string but is not valid hex", chronoerr.ErrMalformedID, s)
		}
		return codec.HashFromBytes(raw)
	}

	return codec.Sha1([]byte(s)), nil
}
