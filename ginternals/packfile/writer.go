package packfile

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"sort"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/xerrors"
)

// ObjectGetter represents a method that returns the object matching
// the given oid. It is used so the encoder can walk the object graph
// without depending on a specific backend
type ObjectGetter func(oid ginternals.Oid) (*object.Object, error)

// Encode builds a pack stream containing every object reachable from
// the commit head, excluding everything reachable from the commit
// stop (the boundary itself included). Pass ginternals.NullOid as
// stop to pack the full history.
//
// All the records are emitted undeltified, commits first in walk
// order, then trees and blobs sorted by oid, so the output is
// deterministic for a given object set
func Encode(get ObjectGetter, head, stop ginternals.Oid) ([]byte, error) {
	commits, others, err := collectReachable(get, head, stop)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.Write(packfileMagic())
	buf.Write(packfileVersion())

	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, uint32(len(commits)+len(others)))
	buf.Write(count)

	for _, oid := range append(commits, others...) {
		o, err := get(oid)
		if err != nil {
			return nil, xerrors.Errorf("could not get object %s: %w", oid.String(), err)
		}
		if err = writeRecord(buf, o); err != nil {
			return nil, xerrors.Errorf("could not write record %s: %w", oid.String(), err)
		}
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// collectReachable walks the commit graph from head, skipping the
// history of stop, and returns the ids of the reachable commits (in
// walk order) and of their trees and blobs (sorted by oid)
func collectReachable(get ObjectGetter, head, stop ginternals.Oid) (commits, others []ginternals.Oid, err error) {
	excluded := map[ginternals.Oid]struct{}{}
	if !stop.IsZero() {
		if err = walkCommits(get, stop, func(oid ginternals.Oid) { excluded[oid] = struct{}{} }, excluded); err != nil {
			return nil, nil, xerrors.Errorf("could not walk the boundary history: %w", err)
		}
	}

	visited := map[ginternals.Oid]struct{}{}
	for oid := range excluded {
		visited[oid] = struct{}{}
	}
	if err = walkCommits(get, head, func(oid ginternals.Oid) { commits = append(commits, oid) }, visited); err != nil {
		return nil, nil, err
	}

	seen := map[ginternals.Oid]struct{}{}
	for _, commitOid := range commits {
		o, err := get(commitOid)
		if err != nil {
			return nil, nil, xerrors.Errorf("could not get commit %s: %w", commitOid.String(), err)
		}
		ci, err := o.AsCommit()
		if err != nil {
			return nil, nil, err
		}
		if err = collectTree(get, ci.TreeID(), seen); err != nil {
			return nil, nil, err
		}
	}

	others = make([]ginternals.Oid, 0, len(seen))
	for oid := range seen {
		others = append(others, oid)
	}
	sort.Slice(others, func(i, j int) bool {
		return bytes.Compare(others[i].Bytes(), others[j].Bytes()) < 0
	})
	return commits, others, nil
}

// walkCommits runs visit on every commit reachable from start that
// isn't already in visited. The visited set protects the walk against
// malformed cyclic histories
func walkCommits(get ObjectGetter, start ginternals.Oid, visit func(ginternals.Oid), visited map[ginternals.Oid]struct{}) error {
	queue := []ginternals.Oid{start}
	for len(queue) > 0 {
		oid := queue[0]
		queue = queue[1:]

		if _, ok := visited[oid]; ok {
			continue
		}
		visited[oid] = struct{}{}

		o, err := get(oid)
		if err != nil {
			return xerrors.Errorf("could not get commit %s: %w", oid.String(), err)
		}
		ci, err := o.AsCommit()
		if err != nil {
			return err
		}
		visit(oid)
		queue = append(queue, ci.ParentIDs()...)
	}
	return nil
}

// collectTree adds the tree and everything it references to seen,
// recursing into sub-trees
func collectTree(get ObjectGetter, treeOid ginternals.Oid, seen map[ginternals.Oid]struct{}) error {
	if _, ok := seen[treeOid]; ok {
		return nil
	}
	seen[treeOid] = struct{}{}

	o, err := get(treeOid)
	if err != nil {
		return xerrors.Errorf("could not get tree %s: %w", treeOid.String(), err)
	}
	tree, err := o.AsTree()
	if err != nil {
		return err
	}
	for _, e := range tree.Entries() {
		switch e.Mode {
		case object.ModeDirectory:
			if err = collectTree(get, e.ID, seen); err != nil {
				return err
			}
		case object.ModeGitLink:
			// submodule commits live in another repository
		default:
			seen[e.ID] = struct{}{}
		}
	}
	return nil
}

// writeRecord emits one undeltified record: the varint type+size
// header followed by the zlib-compressed payload
func writeRecord(buf *bytes.Buffer, o *object.Object) error {
	size := uint64(o.Size())

	// first byte: MSB + type on 3 bits + low 4 bits of the size
	b := byte(o.Type()&0b_0111) << 4
	b |= byte(size & 0b_0000_1111)
	size >>= 4
	for size > 0 {
		buf.WriteByte(b | 0b_1000_0000)
		b = byte(size & 0b_0111_1111)
		size >>= 7
	}
	buf.WriteByte(b)

	zw := zlib.NewWriter(buf)
	if _, err := zw.Write(o.Bytes()); err != nil {
		zw.Close() //nolint:errcheck // it already failed
		return err
	}
	return zw.Close()
}
