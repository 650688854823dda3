package lowering

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	for _, test := range []struct {
		err  error
		want ErrorKind
	}{
		{Unsupportedf("rank %d", 5), KindUnsupported},
		{InvalidInputf("bad payload"), KindInvalidInput},
		{Internalf("arena closed"), KindInternal},
		{errors.New("plain"), KindNone},
		{nil, KindNone},
	} {
		require.Equal(t, test.want, Kind(test.err))
	}
}

func TestErrorKindSurvivesWrapping(t *testing.T) {
	err := Unsupportedf("rank %d transpose", 5)
	wrapped := errors.WithMessagef(err, "importing node %q", "conv0")
	require.Equal(t, KindUnsupported, Kind(wrapped))
	require.Contains(t, wrapped.Error(), `importing node "conv0"`)
	require.Contains(t, wrapped.Error(), "rank 5 transpose")
}

func TestErrorKindString(t *testing.T) {
	require.Equal(t, "unsupported", KindUnsupported.String())
	require.Equal(t, "invalid_input", KindInvalidInput.String())
	require.Equal(t, "internal", KindInternal.String())
	require.Equal(t, "none", KindNone.String())
}
