package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DecoderKind classifies the decoder bound to a tag. The set is closed.
type DecoderKind int

const (
	// KindOpaque tags carry no structured payload
	KindOpaque DecoderKind = iota
	KindUint8
	KindBool
	KindFloat32
	KindText
	// KindRecord tags decode into a fixed-layout composite
	KindRecord
)

// String returns the short name used in listings
func (k DecoderKind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindUint8:
		return "u8"
	case KindBool:
		return "bool"
	case KindFloat32:
		return "float"
	case KindText:
		return "text"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("DecoderKind(%d)", k)
	}
}

// PayloadKind returns the ParseValue kind matching this decoder, or "" for
// kinds with no scalar command-line form.
func (k DecoderKind) PayloadKind() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindBool:
		return "bool"
	case KindFloat32:
		return "float"
	case KindOpaque:
		return "empty"
	default:
		return ""
	}
}

// Entry binds a tag to its name and decoder.
type Entry struct {
	Tag    byte
	Name   string
	Kind   DecoderKind
	Decode DecodeFunc // nil for KindOpaque
}

// Opaque returns an entry whose payload is not interpreted.
func Opaque(tag byte, name string) Entry {
	return Entry{Tag: tag, Name: name, Kind: KindOpaque}
}

// Scalar returns an entry using the standard decoder for kind.
func Scalar(tag byte, name string, kind DecoderKind) Entry {
	e := Entry{Tag: tag, Name: name, Kind: kind}
	switch kind {
	case KindUint8:
		e.Decode = DecodeUint8
	case KindBool:
		e.Decode = DecodeBool
	case KindFloat32:
		e.Decode = DecodeFloat32
	case KindText:
		e.Decode = DecodeText
	default:
		panic(fmt.Sprintf("protocol: %s is not a scalar kind", kind))
	}
	return e
}

// Composite returns an entry with a record decoder.
func Composite(tag byte, name string, decode DecodeFunc) Entry {
	return Entry{Tag: tag, Name: name, Kind: KindRecord, Decode: decode}
}

// HasDecoder reports whether payloads for this tag are interpreted.
func (e Entry) HasDecoder() bool {
	return e.Decode != nil
}

// Catalog is an immutable tag table. It is safe for concurrent use.
type Catalog struct {
	name    string
	byTag   [256]*Entry
	byName  map[string]*Entry
	entries []Entry
}

// NewCatalog builds a catalog from a fixed list of entries. A duplicated
// tag or name is a programming error and panics.
func NewCatalog(name string, entries ...Entry) *Catalog {
	c := &Catalog{
		name:    name,
		byName:  make(map[string]*Entry, len(entries)),
		entries: make([]Entry, len(entries)),
	}
	copy(c.entries, entries)
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Tag < c.entries[j].Tag })

	for i := range c.entries {
		e := &c.entries[i]
		if e.Kind != KindOpaque && e.Decode == nil {
			panic(fmt.Sprintf("protocol: %s entry %s has kind %s but no decoder", name, e.Name, e.Kind))
		}
		if c.byTag[e.Tag] != nil {
			panic(fmt.Sprintf("protocol: %s tag 0x%02X registered twice", name, e.Tag))
		}
		key := strings.ToUpper(e.Name)
		if _, dup := c.byName[key]; dup {
			panic(fmt.Sprintf("protocol: %s name %s registered twice", name, e.Name))
		}
		c.byTag[e.Tag] = e
		c.byName[key] = e
	}
	return c
}

// Name returns the catalog's name, used in error messages
func (c *Catalog) Name() string {
	return c.name
}

// Lookup returns the entry for tag.
func (c *Catalog) Lookup(tag byte) (Entry, bool) {
	e := c.byTag[tag]
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Resolve returns the entry for tag, or an UnknownTag error carrying payload.
func (c *Catalog) Resolve(tag byte, payload []byte) (Entry, error) {
	e, ok := c.Lookup(tag)
	if !ok {
		return Entry{}, NewUnknownTagError(c.name, tag, payload)
	}
	return e, nil
}

// ByName finds an entry by name, ignoring case. Names may be given with
// dashes in place of underscores ("v-set" for "V_SET").
func (c *Catalog) ByName(name string) (Entry, bool) {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	e, ok := c.byName[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns a copy of all entries sorted by tag.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// TagName returns the name for tag, or a hex placeholder for unknown tags.
func (c *Catalog) TagName(tag byte) string {
	if e, ok := c.Lookup(tag); ok {
		return e.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", tag)
}

// Decode resolves tag and runs its decoder. Opaque tags return a nil Value.
func (c *Catalog) Decode(tag byte, payload []byte) (Value, error) {
	e, err := c.Resolve(tag, payload)
	if err != nil {
		return nil, err
	}
	if !e.HasDecoder() {
		return nil, nil
	}
	v, err := e.Decode(payload)
	if err != nil {
		var fe *FrameError
		if errors.As(err, &fe) && !fe.HasTag {
			tagged := *fe
			tagged.Tag, tagged.HasTag = tag, true
			return nil, &tagged
		}
		return nil, err
	}
	return v, nil
}
