package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

type recordedSend struct {
	title   string
	message string
}

type fakeSender struct {
	name    string
	sendErr error
	sent    []recordedSend
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.sent = append(f.sent, recordedSend{title, message})
	return f.sendErr
}

func (f *fakeSender) Name() string { return f.name }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNotifyDeliversToAllSenders(t *testing.T) {
	tg := &fakeSender{name: "telegram"}
	dc := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{tg, dc}, domain.RiskWarning, testLogger())

	err := n.Notify(context.Background(), "pos-1", domain.RiskCritical, "ratio 1.10")
	require.NoError(t, err)

	require.Len(t, tg.sent, 1)
	require.Len(t, dc.sent, 1)
	assert.Equal(t, "[CRITICAL] position pos-1", tg.sent[0].title)
	assert.Equal(t, "ratio 1.10", tg.sent[0].message)
}

func TestNotifySeverityFloor(t *testing.T) {
	tg := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{tg}, domain.RiskWarning, testLogger())

	require.NoError(t, n.Notify(context.Background(), "pos-1", domain.RiskModerate, "drifting"))
	assert.Empty(t, tg.sent)

	require.NoError(t, n.Notify(context.Background(), "pos-1", domain.RiskWarning, "at floor"))
	assert.Len(t, tg.sent, 1)
}

func TestNotifyEmptyFloorAllowsEverything(t *testing.T) {
	tg := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{tg}, "", testLogger())

	require.NoError(t, n.Notify(context.Background(), "pos-1", domain.RiskSafe, "all clear"))
	assert.Len(t, tg.sent, 1)
}

func TestNotifyPartialFailure(t *testing.T) {
	tg := &fakeSender{name: "telegram", sendErr: errors.New("api 500")}
	dc := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{tg, dc}, domain.RiskSafe, testLogger())

	err := n.Notify(context.Background(), "pos-1", domain.RiskCritical, "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")

	// One failing channel never blocks the other.
	assert.Len(t, dc.sent, 1)
}

func TestNotifyNoSenders(t *testing.T) {
	n := NewNotifier(nil, domain.RiskSafe, testLogger())
	assert.NoError(t, n.Notify(context.Background(), "pos-1", domain.RiskCritical, "msg"))
}
