package netutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCIDRs(t *testing.T) {
	nets, err := ParseCIDRs([]string{"127.0.0.0/8", " ::1 ", "", "10.0.0.7"})
	require.NoError(t, err)
	require.Len(t, nets, 3)
	require.True(t, nets[1].Contains(net.ParseIP("::1")))
	require.True(t, nets[2].Contains(net.ParseIP("10.0.0.7")))
	require.False(t, nets[2].Contains(net.ParseIP("10.0.0.8")))
}

func TestParseCIDRsInvalid(t *testing.T) {
	_, err := ParseCIDRs([]string{"300.0.0.0/8"})
	require.Error(t, err)
}
