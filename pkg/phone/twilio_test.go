package phone

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCreator struct {
	calls []*twilioApi.CreateCallParams
	err   error
}

func (f *fakeCreator) CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "CA123"
	return &twilioApi.ApiV2010Call{Sid: &sid}, nil
}

func TestCallPlaced(t *testing.T) {
	api := &fakeCreator{}
	c := newCaller(api, "+10000000000")

	placed, err := c.Call(context.Background(), "+20000000000", "New Telegram Gifts Notification.")
	require.NoError(t, err)
	assert.True(t, placed)
	require.Len(t, api.calls, 1)
	assert.Equal(t, "+20000000000", *api.calls[0].To)
	assert.Equal(t, "+10000000000", *api.calls[0].From)
	assert.Equal(t, "<Response><Say>New Telegram Gifts Notification.</Say></Response>", *api.calls[0].Twiml)
}

func TestCallBreakerOpens(t *testing.T) {
	api := &fakeCreator{err: errors.New("twilio down")}
	c := newCaller(api, "+10000000000")

	for i := 0; i < 3; i++ {
		placed, err := c.Call(context.Background(), "+2", "msg")
		assert.False(t, placed)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	placed, err := c.Call(context.Background(), "+2", "msg")
	assert.False(t, placed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, api.calls, 3)
}

func TestCallCancelledContext(t *testing.T) {
	api := &fakeCreator{}
	c := newCaller(api, "+1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, "+2", "msg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.calls)
}

func TestTwimlEscapes(t *testing.T) {
	assert.Equal(t, "<Response><Say>a &lt;b&gt; &amp; c</Say></Response>", Twiml("a <b> & c"))
}
