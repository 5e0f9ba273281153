package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name   string
	fail   bool
	titles []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	if f.fail {
		return errors.New("boom")
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func newTestNotifier(events []string, senders ...Sender) *Notifier {
	return NewNotifier(senders, events, slog.New(slog.DiscardHandler))
}

func TestNotify_FiltersByEvent(t *testing.T) {
	s := &fakeSender{name: "telegram"}
	n := newTestNotifier([]string{"dispute", "emergency_withdraw"}, s)

	require.NoError(t, n.Notify(context.Background(), "dispute", "Resolution disputed", "market m1"))
	require.NoError(t, n.Notify(context.Background(), "finalized", "Market finalized", "market m1"))

	assert.Equal(t, []string{"Resolution disputed"}, s.titles)
}

func TestNotify_EmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "discord"}
	n := newTestNotifier(nil, s)

	require.NoError(t, n.Notify(context.Background(), "finalized", "Market finalized", "market m1"))
	assert.Len(t, s.titles, 1)
}

func TestNotifyAll_BypassesFilter(t *testing.T) {
	s := &fakeSender{name: "telegram"}
	n := newTestNotifier([]string{"dispute"}, s)

	require.NoError(t, n.NotifyAll(context.Background(), "Shutting down", "bye"))
	assert.Equal(t, []string{"Shutting down"}, s.titles)
}

func TestNotify_OneSenderFailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSender{name: "telegram", fail: true}
	good := &fakeSender{name: "discord"}
	n := newTestNotifier(nil, bad, good)

	err := n.Notify(context.Background(), "error", "Something broke", "details")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Len(t, good.titles, 1)
}

func TestNotify_NoSendersIsNoop(t *testing.T) {
	n := newTestNotifier(nil)
	assert.NoError(t, n.Notify(context.Background(), "dispute", "t", "m"))
}
