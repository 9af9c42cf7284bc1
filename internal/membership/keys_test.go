package membership

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/streamgroup/types"
)

func TestNewMemberID(t *testing.T) {
	a := NewMemberID("app-1", 2)
	b := NewMemberID("app-1", 2)

	require.True(t, strings.HasPrefix(a, "app-1-StreamThread-2-consumer-"))
	require.NotEqual(t, a, b)
	require.Equal(t, a, SanitizeToken(a))
}

func TestInstanceID(t *testing.T) {
	require.Empty(t, InstanceID("", 1))
	require.Equal(t, "someGroupInstance-1", InstanceID("someGroupInstance", 1))
}

func TestMemberKey(t *testing.T) {
	t.Run("dynamic member", func(t *testing.T) {
		rec := types.MemberRecord{GroupID: "orders.app", MemberID: "m-1"}
		require.Equal(t, "orders_app.m-1", MemberKey(rec))
	})

	t.Run("static member uses instance id", func(t *testing.T) {
		rec := types.MemberRecord{GroupID: "orders", MemberID: "m-1", GroupInstanceID: "inst-2"}
		require.Equal(t, "orders.inst-2", MemberKey(rec))
	})
}

func TestGroupFilter(t *testing.T) {
	require.Equal(t, "my_group.*", GroupFilter("my group"))
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"with.dot", "with_dot"},
		{"a*b>c", "a_b_c"},
		{"path/sep\\x", "path_sep_x"},
		{"white space\t", "white_space_"},
		{"ok-_=", "ok-_="},
		{"ünï", "___"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, SanitizeToken(tt.in))
		})
	}
}
