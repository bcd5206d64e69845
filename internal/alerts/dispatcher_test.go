package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gifts_radar/internal/metrics"
	"gifts_radar/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInApp отвечает по сценарию: ended[i] — результат сброса i-го звонка.
type fakeInApp struct {
	mu        sync.Mutex
	ended     []bool
	callErr   error
	calls     []string
	terminate int
}

func (f *fakeInApp) Call(_ context.Context, id string) (models.CallSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.callErr != nil {
		return models.CallSession{}, f.callErr
	}
	return models.CallSession{ID: int64(len(f.calls)), AccessHash: 1, Live: true}, nil
}

func (f *fakeInApp) Terminate(_ context.Context, _ models.CallSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.terminate
	f.terminate++
	if i < len(f.ended) {
		return f.ended[i], nil
	}
	return false, nil
}

type fakePhone struct {
	mu      sync.Mutex
	numbers []string
	message string
	err     error
}

func (f *fakePhone) Call(_ context.Context, phone, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numbers = append(f.numbers, phone)
	f.message = message
	return f.err == nil, f.err
}

type fakeSos struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeSos) SaveSos(_ context.Context, _ string, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

// recordSleep фиксирует запрошенные паузы, не тратя время.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestDispatcher(inApp InAppChannel, phone PhoneChannel, sos SosRecorder, sl *recordSleep) *Dispatcher {
	return NewDispatcher(inApp, phone, Options{
		DeclineDelay: 30 * time.Second,
		RetryBackoff: 3 * time.Second,
		Sos:          sos,
		Sleep:        sl.sleep,
	})
}

func TestDispatchAttentionOnFirstCall(t *testing.T) {
	inApp := &fakeInApp{ended: []bool{true}}
	phone := &fakePhone{}
	sl := &recordSleep{}
	d := newTestDispatcher(inApp, phone, nil, sl)

	out := d.Dispatch(context.Background(), []models.CallRecipient{{TelegramID: "@alice", PhoneNumber: "+1"}})

	require.Len(t, out, 1)
	assert.True(t, out[0].Attention)
	assert.Equal(t, 1, out[0].InAppAttempts)
	assert.Len(t, inApp.calls, 1, "второй звонок не нужен")
	assert.Empty(t, phone.numbers, "звонок на телефон не нужен")
	assert.Equal(t, []time.Duration{30 * time.Second}, sl.delays)
}

func TestDispatchNoPhoneChannel(t *testing.T) {
	inApp := &fakeInApp{ended: []bool{false, false}}
	sos := &fakeSos{}
	sl := &recordSleep{}
	d := newTestDispatcher(inApp, nil, sos, sl)

	out := d.Dispatch(context.Background(), []models.CallRecipient{{TelegramID: "@alice", PhoneNumber: "+1"}})

	require.Len(t, out, 1)
	assert.False(t, out[0].Attention)
	assert.False(t, out[0].PhoneCalled)
	assert.Equal(t, 2, out[0].InAppAttempts)
	assert.Equal(t, []time.Duration{30 * time.Second, 3 * time.Second, 30 * time.Second}, sl.delays)
	assert.Len(t, sos.msgs, 1)
}

func TestDispatchFallsBackToPhone(t *testing.T) {
	inApp := &fakeInApp{ended: []bool{false, false}}
	phone := &fakePhone{}
	sos := &fakeSos{}
	d := newTestDispatcher(inApp, phone, sos, &recordSleep{})

	out := d.Dispatch(context.Background(), []models.CallRecipient{{TelegramID: "@alice", PhoneNumber: "+15550001"}})

	assert.Len(t, inApp.calls, 2)
	assert.Equal(t, []string{"+15550001"}, phone.numbers)
	assert.Equal(t, PhoneMessage, phone.message)
	assert.True(t, out[0].PhoneCalled)
	assert.Empty(t, sos.msgs)
}

func TestDispatchCallErrorIsNoAttention(t *testing.T) {
	inApp := &fakeInApp{callErr: errors.New("USER_PRIVACY_RESTRICTED")}
	phone := &fakePhone{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := NewDispatcher(inApp, phone, Options{Metrics: m, Sleep: (&recordSleep{}).sleep})

	out := d.Dispatch(context.Background(), []models.CallRecipient{{TelegramID: "@bob", PhoneNumber: "+2"}})

	assert.Equal(t, 2, out[0].InAppAttempts)
	assert.Len(t, phone.numbers, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertAttempts.WithLabelValues("in_app", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertAttempts.WithLabelValues("phone", "placed")))
}

func TestDispatchPhoneOnlyRecipient(t *testing.T) {
	inApp := &fakeInApp{}
	phone := &fakePhone{}
	d := newTestDispatcher(inApp, phone, nil, &recordSleep{})

	out := d.Dispatch(context.Background(), []models.CallRecipient{{PhoneNumber: "+3"}})

	assert.Empty(t, inApp.calls)
	assert.Equal(t, 0, out[0].InAppAttempts)
	assert.True(t, out[0].PhoneCalled)
}

func TestDispatchRecipientsIsolated(t *testing.T) {
	inApp := &fakeInApp{ended: []bool{true, true, true, true}}
	phone := &fakePhone{err: errors.New("twilio down")}
	sos := &fakeSos{}
	d := newTestDispatcher(inApp, phone, sos, &recordSleep{})

	out := d.Dispatch(context.Background(), []models.CallRecipient{
		{TelegramID: "@a"},
		{PhoneNumber: "+4"},
		{TelegramID: "@c"},
	})

	require.Len(t, out, 3)
	assert.True(t, out[0].Attention)
	assert.False(t, out[1].PhoneCalled)
	assert.True(t, out[2].Attention)
	assert.Len(t, sos.msgs, 1)
}

func TestDispatchCancelledHangsUp(t *testing.T) {
	inApp := &fakeInApp{ended: []bool{true}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newTestDispatcher(inApp, &fakePhone{}, nil, &recordSleep{})

	out := d.Dispatch(ctx, []models.CallRecipient{{TelegramID: "@a", PhoneNumber: "+5"}})

	assert.False(t, out[0].Attention)
	assert.Equal(t, 1, inApp.terminate, "звонок должен быть сброшен даже после отмены")
	assert.False(t, out[0].PhoneCalled)
}
