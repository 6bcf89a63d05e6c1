// Package object contains methods and structs to work with git objects
package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/internal/errutil"
	"github.com/go-vcs/gitcore/internal/readutil"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/xerrors"
)

var (
	// ErrObjectUnknown represents an error thrown when encountering an
	// unknown object type
	ErrObjectUnknown = errors.New("invalid object type")

	// ErrObjectInvalid represents an error thrown when an object
	// contains unexpected data or when the wrong object is provided
	// to a method
	ErrObjectInvalid = errors.New("invalid object")

	// ErrTreeInvalid represents an error thrown when parsing an
	// invalid tree object
	ErrTreeInvalid = errors.New("invalid tree")

	// ErrCommitInvalid represents an error thrown when parsing an
	// invalid commit object
	ErrCommitInvalid = errors.New("invalid commit")

	// ErrTagInvalid represents an error thrown when parsing an
	// invalid tag object
	ErrTagInvalid = errors.New("invalid tag")
)

// Type represents the type of an object as stored in a packfile
type Type int8

// List of all the possible object types
const (
	TypeCommit Type = 1
	TypeTree   Type = 2
	TypeBlob   Type = 3
	TypeTag    Type = 4
	// 5 is reserved for future use
	TypeDeltaOFS Type = 6
	TypeDeltaRef Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeTag:
		return "tag"
	case TypeDeltaOFS:
		return "ofs-delta"
	case TypeDeltaRef:
		return "ref-delta"
	default:
		panic(fmt.Sprintf("unknown object type %d", t))
	}
}

// IsValid checks if the object type is an existing type
func (t Type) IsValid() bool {
	switch t {
	case TypeCommit,
		TypeTree,
		TypeBlob,
		TypeTag,
		TypeDeltaOFS,
		TypeDeltaRef:
		return true
	default:
		return false
	}
}

// IsDelta returns whether the type is one of the two delta types
func (t Type) IsDelta() bool {
	return t == TypeDeltaOFS || t == TypeDeltaRef
}

// NewTypeFromString returns a Type from its string representation
func NewTypeFromString(t string) (Type, error) {
	switch t {
	case "commit":
		return TypeCommit, nil
	case "tree":
		return TypeTree, nil
	case "blob":
		return TypeBlob, nil
	case "tag":
		return TypeTag, nil
	default:
		return 0, ErrObjectUnknown
	}
}

// Object represents a git object. An object can be of multiple types
// but they all share the same storage system and the same header.
// Objects are stored in .git/objects, either as a standalone
// zlib-compressed file (loose object), or inside a packfile
// https://git-scm.com/book/en/v2/Git-Internals-Git-Objects
type Object struct {
	id      ginternals.Oid
	typ     Type
	content []byte
}

// New creates a new git object of the given type.
// The ID of the object is computed right away from its framed content
func New(typ Type, content []byte) *Object {
	o := &Object{
		typ:     typ,
		content: content,
	}
	o.id = ginternals.NewOidFromContent(o.framedContent())
	return o
}

// NewWithID creates a new git object of the given type with the
// given ID, skipping the hash computation. Used by the loose object
// reader, which knows the ID from the file path
func NewWithID(id ginternals.Oid, typ Type, content []byte) *Object {
	return &Object{
		id:      id,
		typ:     typ,
		content: content,
	}
}

// ID returns the ID of the object
func (o *Object) ID() ginternals.Oid {
	if o.id.IsZero() {
		o.id = ginternals.NewOidFromContent(o.framedContent())
	}
	return o.id
}

// Size returns the size of the object's content
func (o *Object) Size() int {
	return len(o.content)
}

// Type returns the Type of the object
func (o *Object) Type() Type {
	return o.typ
}

// Bytes returns the object's contents
func (o *Object) Bytes() []byte {
	return o.content
}

// framedContent returns the content of the object in the canonical
// storage format:
// [type] [size][NULL][content]
// The type in ascii, followed by a space, followed by the size in
// ascii, followed by a null character (0), followed by the object data.
// The id of an object is the SHA-1 of its framed content, which means
// two identical payloads of different types have different ids
func (o *Object) framedContent() []byte {
	// Quick reminder that the Write* methods on bytes.Buffer never
	// fail, the error returned is always nil
	w := new(bytes.Buffer)
	w.WriteString(o.typ.String())
	w.WriteRune(' ')
	w.WriteString(strconv.Itoa(o.Size()))
	w.WriteByte(0)
	w.Write(o.content)
	return w.Bytes()
}

// Compress returns the object zlib-compressed in its framed format,
// ready to be stored as a loose object
func (o *Object) Compress() (data []byte, err error) {
	compressed := new(bytes.Buffer)
	zw := zlib.NewWriter(compressed)
	defer errutil.Close(zw, &err)

	if _, err = zw.Write(o.framedContent()); err != nil {
		return nil, xerrors.Errorf("could not zlib the object: %w", err)
	}
	return compressed.Bytes(), nil
}

// NewFromLoose creates an Object from the content of a loose object
// file. The provided reader must produce zlib-compressed framed data.
// The oid comes from the file path, so the content is not re-hashed
func NewFromLoose(oid ginternals.Oid, r io.Reader) (o *Object, err error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, xerrors.Errorf("could not decompress the object: %w", err)
	}
	defer errutil.Close(zr, &err)

	// We directly read the entire file since most of it is the content
	// we need, this allows us to easily store the object's content
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, xerrors.Errorf("could not read the object: %w", err)
	}

	// the type of the object starts at offset 0 and ends at the first
	// space character
	typ := readutil.ReadTo(buf, ' ')
	if typ == nil {
		return nil, xerrors.Errorf("could not find the object type: %w", ErrObjectInvalid)
	}
	oType, err := NewTypeFromString(string(typ))
	if err != nil {
		return nil, xerrors.Errorf("unsupported type %s: %w", string(typ), ErrObjectInvalid)
	}
	offset := len(typ) + 1 // +1 for the space

	// The size of the object starts after the space and ends at a
	// NULL char
	size := readutil.ReadTo(buf[offset:], 0)
	if size == nil {
		return nil, xerrors.Errorf("could not find the object size: %w", ErrObjectInvalid)
	}
	oSize, err := strconv.Atoi(string(size))
	if err != nil {
		return nil, xerrors.Errorf("invalid size %s: %w", size, ErrObjectInvalid)
	}
	offset += len(size) + 1 // +1 for the NULL char

	content := buf[offset:]
	if len(content) != oSize {
		return nil, xerrors.Errorf("object marked as size %d, but has %d: %w", oSize, len(content), ErrObjectInvalid)
	}

	return NewWithID(oid, oType, content), nil
}

// AsBlob parses the object as Blob
func (o *Object) AsBlob() (*Blob, error) {
	if o.typ != TypeBlob {
		return nil, xerrors.Errorf("type %s is not a blob: %w", o.typ, ErrObjectInvalid)
	}
	return NewBlob(o), nil
}

// AsTree parses the object as Tree
func (o *Object) AsTree() (*Tree, error) {
	return NewTreeFromObject(o)
}

// AsCommit parses the object as Commit
func (o *Object) AsCommit() (*Commit, error) {
	return NewCommitFromObject(o)
}

// AsTag parses the object as Tag
func (o *Object) AsTag() (*Tag, error) {
	return NewTagFromObject(o)
}
