package carriers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameFromID(t *testing.T) {
	require.Equal(t, "FedEx", NameFromID("fedex"))
	require.Equal(t, "FedEx", NameFromID(" FedEx ")) // id нормализуется как slug
	require.Equal(t, "", NameFromID("nope"))
	require.Equal(t, "", NameFromID(""))
}

func TestBuildURL(t *testing.T) {
	require.Equal(t,
		"https://www.ups.com/track?tracknum=1Z999AA10123456784",
		BuildURL("ups", "1Z999AA10123456784"))

	// Номер с пробелом кодируется.
	require.Equal(t,
		"https://www.aramex.com/track/shipments/AB%2012",
		BuildURL("aramex", "AB 12"))

	require.Equal(t, "", BuildURL("custom", "X1"))  // пустой шаблон
	require.Equal(t, "", BuildURL("unknown", "X1")) // неизвестный перевозчик
	require.Equal(t, "", BuildURL("ups", "  "))
}
