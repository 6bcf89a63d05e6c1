package object

import (
	"bytes"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/internal/readutil"
	"golang.org/x/xerrors"
)

// Tag represents an annotated tag object
type Tag struct {
	rawObject *Object

	tagger  Signature
	tag     string
	message string

	target ginternals.Oid
	typ    Type
}

// NewTagFromObject creates a tag from a raw object
//
// A tag has the following format:
//
// object {sha}
// type {target_object_type}
// tag {tag_name}
// tagger {name} <{email}> {date_seconds} {date_timezone}
// {a blank line}
// {tag message}
func NewTagFromObject(o *Object) (*Tag, error) {
	if o.typ != TypeTag {
		return nil, xerrors.Errorf("type %s is not a tag: %w", o.typ, ErrObjectInvalid)
	}
	tag := &Tag{
		rawObject: o,
	}
	offset := 0
	objData := o.Bytes()
	for {
		line := readutil.ReadTo(objData[offset:], '\n')
		offset += len(line) + 1 // +1 to count the \n

		// If we didn't find anything then something is wrong
		if len(line) == 0 && offset == 1 {
			return nil, xerrors.Errorf("could not find tag first line: %w", ErrTagInvalid)
		}

		// if we got an empty line, it means everything from now to the
		// end will be the tag message
		if len(line) == 0 {
			if offset < len(objData) {
				tag.message = string(objData[offset:])
			}
			break
		}

		kv := bytes.SplitN(line, []byte{' '}, 2)
		var err error
		switch string(kv[0]) {
		case "object":
			tag.target, err = ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("could not parse target id %#v: %w", kv[1], err)
			}
		case "type":
			tag.typ, err = NewTypeFromString(string(kv[1]))
			if err != nil {
				return nil, xerrors.Errorf("object type %s: %w", string(kv[1]), err)
			}
		case "tag":
			tag.tag = string(kv[1])
		case "tagger":
			tag.tagger, err = NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("could not parse tagger signature [%s]: %w", string(kv[1]), err)
			}
		}
	}

	return tag, nil
}

// ID returns the tag's ID
func (t *Tag) ID() ginternals.Oid {
	return t.rawObject.ID()
}

// Target returns the ID of the object targeted by the tag
func (t *Tag) Target() ginternals.Oid {
	return t.target
}

// Type returns the type of the targeted object
func (t *Tag) Type() Type {
	return t.typ
}

// Name returns the name of the tag
func (t *Tag) Name() string {
	return t.tag
}

// Tagger returns the Signature of the person that created the tag
func (t *Tag) Tagger() Signature {
	return t.tagger
}

// Message returns the tag's message
func (t *Tag) Message() string {
	return t.message
}

// ToObject returns the underlying Object
func (t *Tag) ToObject() *Object {
	return t.rawObject
}
