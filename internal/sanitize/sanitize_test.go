package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "in_transit", Key(" In_Transit "))
	require.Equal(t, "fedex", Key("FedEx!"))
	require.Equal(t, "a-b_c9", Key("A-B_c9"))
	require.Equal(t, "", Key("!!!"))
}

func TestText(t *testing.T) {
	require.Equal(t, "hello world", Text("  hello\t\nworld  "))
	require.Equal(t, "a b", Text("a\x00\x01b"))
	require.Equal(t, "", Text("   "))
}
