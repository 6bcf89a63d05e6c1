package object_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-vcs/gitcore/ginternals"
	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureString(t *testing.T) {
	t.Parallel()

	sig := object.NewSignature("John Doe", "john@domain.tld")
	// for the sake of the test we gonna cheat a little bit and force
	// the time to be UTC. Otherwise the test would not be consistent
	// on everyone's computer
	now := time.Now().UTC()
	sig.Time = now

	expect := fmt.Sprintf("John Doe <john@domain.tld> %d +0000", now.Unix())
	assert.Equal(t, expect, sig.String())
}

func TestNewSignatureFromBytes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc          string
		signature     string
		expectsError  bool
		expectedName  string
		expectedEmail string
		expectedTime  int64
	}{
		{
			desc:          "valid with a negative offset",
			signature:     "John Doe <john@domain.tld> 1566115917 -0700",
			expectedName:  "John Doe",
			expectedEmail: "john@domain.tld",
			expectedTime:  1566115917,
		},
		{
			desc:          "valid with a positive offset",
			signature:     "John Doe <john@domain.tld> 1566005917 +0100",
			expectedName:  "John Doe",
			expectedEmail: "john@domain.tld",
			expectedTime:  1566005917,
		},
		{
			desc:         "missing email should fail",
			signature:    "John Doe 1566115917 -0700",
			expectsError: true,
		},
		{
			desc:         "missing timestamp should fail",
			signature:    "John Doe <john@domain.tld> -0700",
			expectsError: true,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			sig, err := object.NewSignatureFromBytes([]byte(tc.signature))
			if tc.expectsError {
				require.ErrorIs(t, err, object.ErrSignatureInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedName, sig.Name)
			assert.Equal(t, tc.expectedEmail, sig.Email)
			assert.Equal(t, tc.expectedTime, sig.Time.Unix())
		})
	}
}

func TestCommitRoundTrip(t *testing.T) {
	t.Parallel()

	treeID := oidFromStr(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904")
	parentID := oidFromStr(t, "bd9dbf5aae1a3862dd1526723246b20206e5fc37")

	author := object.NewSignature("John Doe", "john@domain.tld")
	c := object.NewCommit(treeID, author, &object.CommitOptions{
		Message:   "initial commit\n\nwith a body\n",
		ParentsID: []ginternals.Oid{parentID},
	})

	parsed, err := object.NewCommitFromObject(c.ToObject())
	require.NoError(t, err)
	assert.Equal(t, treeID, parsed.TreeID())
	assert.Equal(t, []ginternals.Oid{parentID}, parsed.ParentIDs())
	assert.Equal(t, c.Message(), parsed.Message())
	assert.Equal(t, author.Name, parsed.Author().Name)
	assert.Equal(t, author.Email, parsed.Author().Email)
	assert.Equal(t, c.ID(), parsed.ID())
}

func TestCommitDefaultCommitter(t *testing.T) {
	t.Parallel()

	treeID := oidFromStr(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904")
	author := object.NewSignature("John Doe", "john@domain.tld")

	c := object.NewCommit(treeID, author, &object.CommitOptions{Message: "msg"})
	assert.Equal(t, author, c.Committer())
}

func TestNewCommitFromObjectInvalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc    string
		content string
	}{
		{
			desc:    "missing tree should fail",
			content: "author John Doe <john@domain.tld> 1566115917 -0700\n\nmsg",
		},
		{
			desc:    "missing author should fail",
			content: "tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\n\nmsg",
		},
		{
			desc:    "header without a value should fail",
			content: "tree\nauthor John Doe <john@domain.tld> 1566115917 -0700\n\nmsg",
		},
		{
			desc:    "parent without a value should fail",
			content: "tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\nparent\nauthor John Doe <john@domain.tld> 1566115917 -0700\n\nmsg",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			o := object.New(object.TypeCommit, []byte(tc.content))
			_, err := object.NewCommitFromObject(o)
			require.ErrorIs(t, err, object.ErrCommitInvalid)
		})
	}
}
