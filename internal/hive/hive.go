// Package hive models the persistent configuration store that tunectl
// mutates: a tree of keys addressed by hive and slash-separated path, each
// key holding named, typed values.
package hive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/skovgaard/tunectl/internal/errors"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates the requested key or value does not exist.
	// Absence is normal control flow, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the store rejected a write because the
	// process lacks the rights to modify it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidKind indicates a value was accessed or parsed as the wrong kind.
	ErrInvalidKind = errors.New("invalid value kind")

	// ErrInvalidKey indicates a malformed key.
	ErrInvalidKey = errors.New("invalid key")
)

// Hive is the top-level namespace of a key, analogous to a registry root.
type Hive string

// Well-known hives. Arbitrary hive names are permitted; these cover the
// tuning domains tunectl ships profiles for.
const (
	System Hive = "system"
	User   Hive = "user"
	Boot   Hive = "boot"
)

// Sep separates path elements within a key.
const Sep = "/"

// Key addresses one location in the store: a hive plus a slash-separated
// path of containers.
type Key struct {
	Hive Hive
	Path string
}

// NewKey builds a key from a hive and path elements.
func NewKey(h Hive, elems ...string) Key {
	return Key{Hive: h, Path: strings.Join(elems, Sep)}
}

// ParseKey parses "hive/path/elements" into a Key.
func ParseKey(s string) (Key, error) {
	hive, path, ok := strings.Cut(s, Sep)
	if !ok || hive == "" || path == "" {
		return Key{}, errors.Wrapf(ErrInvalidKey, "%q", s)
	}
	k := Key{Hive: Hive(hive), Path: path}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// String renders the key as "hive/path".
func (k Key) String() string {
	return string(k.Hive) + Sep + k.Path
}

// Elems returns the path split into elements.
func (k Key) Elems() []string {
	if k.Path == "" {
		return nil
	}
	return strings.Split(k.Path, Sep)
}

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool {
	return k.Hive == "" && k.Path == ""
}

// Validate checks that the key is well-formed: non-empty hive, non-empty
// path, and no empty, relative, or NUL-containing path elements.
func (k Key) Validate() error {
	if k.Hive == "" {
		return errors.Wrap(ErrInvalidKey, "empty hive")
	}
	if strings.ContainsRune(string(k.Hive), '\x00') {
		return errors.Wrapf(ErrInvalidKey, "hive %q", string(k.Hive))
	}
	if k.Path == "" {
		return errors.Wrap(ErrInvalidKey, "empty path")
	}
	for _, e := range k.Elems() {
		if e == "" || e == "." || e == ".." || strings.ContainsRune(e, '\x00') {
			return errors.Wrapf(ErrInvalidKey, "path element %q in %q", e, k.Path)
		}
	}
	return nil
}

// Kind tags the type of a stored value.
type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name as used in profiles and artifacts.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "integer", "int":
		return KindInteger, nil
	case "string", "str":
		return KindString, nil
	case "bytes", "binary":
		return KindBytes, nil
	default:
		return 0, errors.Wrapf(ErrInvalidKind, "%q", s)
	}
}

// Value is a tagged payload stored under a name within a key.
type Value struct {
	kind Kind
	raw  []byte
}

// Integer builds an integer value.
func Integer(v int64) Value {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(v))
	return Value{kind: KindInteger, raw: raw}
}

// String builds a string value.
func String(s string) Value {
	return Value{kind: KindString, raw: []byte(s)}
}

// Bytes builds a binary value. The payload is copied.
func Bytes(b []byte) Value {
	raw := make([]byte, len(b))
	copy(raw, b)
	return Value{kind: KindBytes, raw: raw}
}

// Kind returns the value's kind tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero reports whether the value is the zero value (no kind, no payload).
func (v Value) IsZero() bool {
	return v.kind == 0 && v.raw == nil
}

// Int returns the integer payload, or ErrInvalidKind for other kinds.
func (v Value) Int() (int64, error) {
	if v.kind != KindInteger {
		return 0, errors.Wrapf(ErrInvalidKind, "want integer, have %s", v.kind)
	}
	if len(v.raw) != 8 {
		return 0, errors.Wrapf(ErrInvalidKind, "integer payload is %d bytes", len(v.raw))
	}
	return int64(binary.BigEndian.Uint64(v.raw)), nil
}

// Str returns the string payload, or ErrInvalidKind for other kinds.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", errors.Wrapf(ErrInvalidKind, "want string, have %s", v.kind)
	}
	return string(v.raw), nil
}

// Raw returns a copy of the payload regardless of kind.
func (v Value) Raw() []byte {
	out := make([]byte, len(v.raw))
	copy(out, v.raw)
	return out
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && bytes.Equal(v.raw, other.raw)
}

// Display renders the value for humans: the integer in decimal, the string
// quoted, bytes as a length tag.
func (v Value) Display() string {
	switch v.kind {
	case KindInteger:
		n, err := v.Int()
		if err != nil {
			return "<corrupt integer>"
		}
		return strconv.FormatInt(n, 10)
	case KindString:
		return strconv.Quote(string(v.raw))
	case KindBytes:
		return "<" + strconv.Itoa(len(v.raw)) + " bytes>"
	default:
		return "<unset>"
	}
}

// encode serializes a value as one kind byte followed by the raw payload.
func (v Value) encode() []byte {
	out := make([]byte, 1+len(v.raw))
	out[0] = byte(v.kind)
	copy(out[1:], v.raw)
	return out
}

// decodeValue parses the kind-byte-plus-payload wire form.
func decodeValue(data []byte) (Value, error) {
	if len(data) < 1 {
		return Value{}, errors.Wrap(ErrInvalidKind, "empty encoded value")
	}
	k := Kind(data[0])
	switch k {
	case KindInteger:
		if len(data) != 9 {
			return Value{}, errors.Wrapf(ErrInvalidKind, "integer payload is %d bytes", len(data)-1)
		}
	case KindString, KindBytes:
	default:
		return Value{}, errors.Wrapf(ErrInvalidKind, "kind byte %d", data[0])
	}
	raw := make([]byte, len(data)-1)
	copy(raw, data[1:])
	return Value{kind: k, raw: raw}, nil
}

// valueJSON is the artifact serialization of a Value. Exactly one payload
// field is set, matching the kind.
type valueJSON struct {
	Kind    string  `json:"kind"`
	Integer *int64  `json:"integer,omitempty"`
	String  *string `json:"string,omitempty"`
	Bytes   []byte  `json:"bytes,omitempty"`
}

// MarshalJSON renders the value in the self-describing artifact form.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.kind.String()}
	switch v.kind {
	case KindInteger:
		n, err := v.Int()
		if err != nil {
			return nil, err
		}
		out.Integer = &n
	case KindString:
		s := string(v.raw)
		out.String = &s
	case KindBytes:
		out.Bytes = v.Raw()
	default:
		return nil, errors.Wrapf(ErrInvalidKind, "kind %d", v.kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the artifact form back into a Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "decoding value")
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case KindInteger:
		if in.Integer == nil {
			return errors.Wrap(ErrInvalidKind, "integer value missing payload")
		}
		*v = Integer(*in.Integer)
	case KindString:
		if in.String == nil {
			return errors.Wrap(ErrInvalidKind, "string value missing payload")
		}
		*v = String(*in.String)
	case KindBytes:
		*v = Bytes(in.Bytes)
	}
	return nil
}

// Subtree is a portable, self-contained export of a key: its named values
// and all child keys, recursively. It is the payload of snapshot artifacts.
type Subtree struct {
	Values   map[string]Value    `json:"values,omitempty"`
	Children map[string]*Subtree `json:"children,omitempty"`
}

// NewSubtree returns an empty subtree with initialized maps.
func NewSubtree() *Subtree {
	return &Subtree{
		Values:   make(map[string]Value),
		Children: make(map[string]*Subtree),
	}
}

// ValueCount returns the total number of values in the subtree, recursively.
func (s *Subtree) ValueCount() int {
	if s == nil {
		return 0
	}
	n := len(s.Values)
	for _, child := range s.Children {
		n += child.ValueCount()
	}
	return n
}

// Store is the mutation surface over the configuration hive.
//
// Get and Export report absence via ErrNotFound; callers treat that as
// normal flow. Set creates any missing intermediate containers along the
// key's path. Import replaces the whole subtree at the key so that repeated
// imports of the same snapshot converge to the same state.
type Store interface {
	Get(key Key, name string) (Value, error)
	Set(key Key, name string, value Value) error
	Remove(key Key, name string) error
	Exists(key Key) (bool, error)
	Export(key Key) (*Subtree, error)
	Import(key Key, sub *Subtree) error
	DeleteKey(key Key) error
	Close() error
}
