package object_test

import (
	"bytes"
	"testing"

	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectID(t *testing.T) {
	t.Parallel()

	t.Run("a known blob should have its well-known id", func(t *testing.T) {
		t.Parallel()

		o := object.New(object.TypeBlob, []byte("what is up, doc?"))
		assert.Equal(t, "bd9dbf5aae1a3862dd1526723246b20206e5fc37", o.ID().String())
	})

	t.Run("the type should be part of the id", func(t *testing.T) {
		t.Parallel()

		blob := object.New(object.TypeBlob, []byte("content"))
		tag := object.New(object.TypeTag, []byte("content"))
		assert.NotEqual(t, blob.ID(), tag.ID())
	})
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	o := object.New(object.TypeBlob, []byte("what is up, doc?"))
	data, err := o.Compress()
	require.NoError(t, err)

	parsed, err := object.NewFromLoose(o.ID(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, o.ID(), parsed.ID())
	assert.Equal(t, o.Type(), parsed.Type())
	assert.Equal(t, o.Bytes(), parsed.Bytes())
}

func TestNewTypeFromString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc         string
		str          string
		expected     object.Type
		expectsError bool
	}{
		{desc: "commit should work", str: "commit", expected: object.TypeCommit},
		{desc: "tree should work", str: "tree", expected: object.TypeTree},
		{desc: "blob should work", str: "blob", expected: object.TypeBlob},
		{desc: "tag should work", str: "tag", expected: object.TypeTag},
		{desc: "anything else should fail", str: "doggo", expectsError: true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			typ, err := object.NewTypeFromString(tc.str)
			if tc.expectsError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, typ)
		})
	}
}
