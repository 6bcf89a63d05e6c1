package object_test

import (
	"fmt"
	"testing"

	"github.com/go-vcs/gitcore/ginternals/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagFromObject(t *testing.T) {
	t.Parallel()

	targetSha := "bd9dbf5aae1a3862dd1526723246b20206e5fc37"
	raw := fmt.Sprintf("object %s\n", targetSha) +
		"type commit\n" +
		"tag v1.0.0\n" +
		"tagger John Doe <john@domain.tld> 1566115917 -0700\n" +
		"\n" +
		"first stable release\n"

	tag, err := object.New(object.TypeTag, []byte(raw)).AsTag()
	require.NoError(t, err)

	assert.Equal(t, targetSha, tag.Target().String())
	assert.Equal(t, object.TypeCommit, tag.Type())
	assert.Equal(t, "v1.0.0", tag.Name())
	assert.Equal(t, "John Doe", tag.Tagger().Name)
	assert.Equal(t, "john@domain.tld", tag.Tagger().Email)
	assert.Equal(t, "first stable release\n", tag.Message())

	t.Run("a blob should not parse as a tag", func(t *testing.T) {
		t.Parallel()

		_, err := object.New(object.TypeBlob, []byte("nope")).AsTag()
		require.ErrorIs(t, err, object.ErrObjectInvalid)
	})

	t.Run("garbage should be rejected", func(t *testing.T) {
		t.Parallel()

		_, err := object.New(object.TypeTag, []byte("\n")).AsTag()
		require.ErrorIs(t, err, object.ErrTagInvalid)
	})
}
