package gitcore_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-vcs/gitcore"
	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/go-vcs/gitcore/ginternals/packfile"
	"github.com/go-vcs/gitcore/ginternals/pktline"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory smart-HTTP remote. It keeps its objects
// and refs in maps and speaks just enough of the protocol to serve
// clone, pull, and push
type fakeRemote struct {
	t *testing.T

	mu      sync.Mutex
	objects map[ginternals.Oid]*object.Object
	refs    map[string]ginternals.Oid
	uploads int

	srv *httptest.Server
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()

	rem := &fakeRemote{
		t:       t,
		objects: map[ginternals.Oid]*object.Object{},
		refs:    map[string]ginternals.Oid{},
	}
	rem.srv = httptest.NewServer(http.HandlerFunc(rem.handle))
	t.Cleanup(rem.srv.Close)
	return rem
}

func (rem *fakeRemote) URL() string {
	return rem.srv.URL
}

// seed copies the history reachable from tip out of the given
// repository and moves the remote's branch to it
func (rem *fakeRemote) seed(src *gitcore.Repository, branch string, tip ginternals.Oid) {
	rem.t.Helper()

	pack, err := packfile.Encode(src.Object, tip, ginternals.NullOid)
	require.NoError(rem.t, err)
	p, err := packfile.Parse(pack)
	require.NoError(rem.t, err)

	rem.mu.Lock()
	defer rem.mu.Unlock()
	for _, o := range p.Objects() {
		rem.objects[o.ID()] = o
	}
	rem.refs[ginternals.LocalBranchFullName(branch)] = tip
}

func (rem *fakeRemote) setRef(name string, id ginternals.Oid) {
	rem.mu.Lock()
	defer rem.mu.Unlock()
	rem.refs[name] = id
}

func (rem *fakeRemote) ref(name string) (ginternals.Oid, bool) {
	rem.mu.Lock()
	defer rem.mu.Unlock()
	id, ok := rem.refs[name]
	return id, ok
}

func (rem *fakeRemote) uploadCount() int {
	rem.mu.Lock()
	defer rem.mu.Unlock()
	return rem.uploads
}

func (rem *fakeRemote) hasObject(id ginternals.Oid) bool {
	rem.mu.Lock()
	defer rem.mu.Unlock()
	_, ok := rem.objects[id]
	return ok
}

// get implements packfile.ObjectGetter over the remote's object map
func (rem *fakeRemote) get(oid ginternals.Oid) (*object.Object, error) {
	rem.mu.Lock()
	defer rem.mu.Unlock()
	o, ok := rem.objects[oid]
	if !ok {
		return nil, ginternals.ErrObjectNotFound
	}
	return o, nil
}

func (rem *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/info/refs":
		rem.advertise(w, r.URL.Query().Get("service"))
	case r.Method == http.MethodPost && r.URL.Path == "/git-upload-pack":
		rem.uploadPack(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/git-receive-pack":
		rem.receivePack(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (rem *fakeRemote) advertise(w http.ResponseWriter, service string) {
	rem.mu.Lock()
	names := make([]string, 0, len(rem.refs))
	for name := range rem.refs {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	pw := pktline.NewWriter(buf)
	require.NoError(rem.t, pw.WriteString(fmt.Sprintf("# service=%s\n", service)))
	require.NoError(rem.t, pw.Flush())
	if len(names) == 0 {
		line := fmt.Sprintf("%s capabilities^{}\x00report-status\n", ginternals.NullOid.String())
		require.NoError(rem.t, pw.WriteString(line))
	}
	for i, name := range names {
		line := fmt.Sprintf("%s %s\n", rem.refs[name].String(), name)
		if i == 0 {
			line = fmt.Sprintf("%s %s\x00report-status\n", rem.refs[name].String(), name)
		}
		require.NoError(rem.t, pw.WriteString(line))
	}
	require.NoError(rem.t, pw.Flush())
	rem.mu.Unlock()

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-advertisement", service))
	_, _ = w.Write(buf.Bytes())
}

func (rem *fakeRemote) uploadPack(w http.ResponseWriter, r *http.Request) {
	rem.mu.Lock()
	rem.uploads++
	rem.mu.Unlock()

	// the negotiation ends on "done", everything but the wants can be
	// ignored since the answer is always a full pack
	var want ginternals.Oid
	pr := pktline.NewReader(r.Body)
	for {
		data, isFlush, err := pr.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(rem.t, err)
		if isFlush {
			continue
		}
		line := strings.TrimSuffix(string(data), "\n")
		if line == "done" {
			break
		}
		if strings.HasPrefix(line, "want ") && want.IsZero() {
			id, err := ginternals.NewOidFromStr(strings.TrimPrefix(line, "want "))
			require.NoError(rem.t, err)
			want = id
		}
	}
	require.False(rem.t, want.IsZero(), "upload-pack request has no want")

	pack, err := packfile.Encode(rem.get, want, ginternals.NullOid)
	require.NoError(rem.t, err)

	buf := new(bytes.Buffer)
	pw := pktline.NewWriter(buf)
	require.NoError(rem.t, pw.WriteString("NAK\n"))
	buf.Write(pack)
	_, _ = w.Write(buf.Bytes())
}

func (rem *fakeRemote) receivePack(w http.ResponseWriter, r *http.Request) {
	pr := pktline.NewReader(r.Body)
	cmd, _, err := pr.ReadPacket()
	require.NoError(rem.t, err)
	line := strings.TrimSuffix(string(cmd), "\n")
	if i := strings.IndexByte(line, 0); i >= 0 {
		line = line[:i]
	}
	parts := strings.Split(line, " ")
	require.Len(rem.t, parts, 3, "unexpected update command %q", line)
	newID, err := ginternals.NewOidFromStr(parts[1])
	require.NoError(rem.t, err)
	refName := parts[2]

	_, isFlush, err := pr.ReadPacket()
	require.NoError(rem.t, err)
	require.True(rem.t, isFlush, "update command not followed by a flush")

	packData, err := io.ReadAll(r.Body)
	require.NoError(rem.t, err)
	p, err := packfile.Parse(packData)
	require.NoError(rem.t, err)

	rem.mu.Lock()
	for _, o := range p.Objects() {
		rem.objects[o.ID()] = o
	}
	rem.refs[refName] = newID
	rem.mu.Unlock()

	buf := new(bytes.Buffer)
	pw := pktline.NewWriter(buf)
	require.NoError(rem.t, pw.WriteString("unpack ok\n"))
	require.NoError(rem.t, pw.WriteString(fmt.Sprintf("ok %s\n", refName)))
	require.NoError(rem.t, pw.Flush())
	_, _ = w.Write(buf.Bytes())
}
