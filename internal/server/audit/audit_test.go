package audit

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	name string
	sink *[]string
	ops  []Op
}

func (l *recordingListener) AuthOp(_ context.Context, op Op) {
	l.ops = append(l.ops, op)
	if l.sink != nil {
		*l.sink = append(*l.sink, l.name)
	}
}

func TestSink_FanOutInRegistrationOrder(t *testing.T) {
	var order []string
	first := &recordingListener{name: "first", sink: &order}
	second := &recordingListener{name: "second", sink: &order}

	s := NewSink(first)
	s.Register(second)

	s.Log(context.Background(), Op{UserKey: "alice", Action: ActionLogin, Response: auth.LoginSuccessful})
	s.Log(context.Background(), Op{UserKey: "alice", Action: ActionLogout, Response: auth.LogoutSuccessful})

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
	require.Len(t, first.ops, 2)
	assert.Equal(t, ActionLogin, first.ops[0].Action)
	assert.Equal(t, ActionLogout, first.ops[1].Action)
}

func TestSink_StampsTimestamp(t *testing.T) {
	l := &recordingListener{}
	s := NewSink(l)

	s.Log(context.Background(), Op{UserKey: "alice", Action: ActionLogin, Response: auth.LoginFailed})

	require.Len(t, l.ops, 1)
	assert.NotZero(t, l.ops[0].TimestampMillis)
}

func TestSink_KeepsExplicitTimestamp(t *testing.T) {
	l := &recordingListener{}
	s := NewSink(l)

	s.Log(context.Background(), Op{UserKey: "alice", Action: ActionLogin, Response: auth.LoginSuccessful, TimestampMillis: 12345})

	require.Len(t, l.ops, 1)
	assert.Equal(t, int64(12345), l.ops[0].TimestampMillis)
}

func TestOp_Succeeded(t *testing.T) {
	ok := Op{Action: ActionLogin, Response: auth.LoginSuccessful}
	bad := Op{Action: ActionLogin, Response: auth.LoginFailed}

	assert.True(t, ok.Succeeded(auth.LoginSuccessful))
	assert.False(t, bad.Succeeded(auth.LoginSuccessful))
}

func TestSink_NoListeners(t *testing.T) {
	var s Sink
	s.Log(context.Background(), Op{UserKey: "alice", Action: ActionLogin, Response: auth.LoginSuccessful})
}
