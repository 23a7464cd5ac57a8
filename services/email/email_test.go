package emailsvc

import (
	"context"
	"net/http"
	"net/mail"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/schoolhub/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(core.NewTestConfig())

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Name: "A", Address: "a@test.cd"}}, Subject: "hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "b@test.cd"}}, Subject: "no content"},
	)

	if assert.Len(t, SentMessages, 1) {
		assert.Equal(t, "hello", SentMessages[0].TextContent)
	}
	assert.Len(t, SentTo("a@test.cd"), 1)
	assert.Empty(t, SentTo("b@test.cd"))
}

func Test_sendgridService_send(t *testing.T) {
	defer func(f func(rest.Request) (*rest.Response, error), base time.Duration) {
		sendgridAPIFunc = f
		retryBase = base
	}(sendgridAPIFunc, retryBase)
	retryBase = time.Millisecond

	svc := NewSendgridService(core.NewTestConfig(), nil).(*sendgridService)
	msg := core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, Subject: "hi", TextContent: "hello"}

	tests := []struct {
		name      string
		responses []int
		netErr    bool
		wantCalls int
		wantErr   bool
	}{
		{name: "accepted", responses: []int{http.StatusAccepted}, wantCalls: 1},
		{name: "retries on 5xx", responses: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusAccepted}, wantCalls: 3},
		{name: "no retry on 4xx", responses: []int{http.StatusBadRequest}, wantCalls: 1, wantErr: true},
		{
			name:      "gives up",
			responses: []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway},
			wantCalls: 4, wantErr: true,
		},
		{name: "network error", netErr: true, wantCalls: 4, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			sendgridAPIFunc = func(req rest.Request) (*rest.Response, error) {
				calls++
				assert.Equal(t, http.MethodPost, string(req.Method))
				if tt.netErr {
					return nil, errors.New("connection refused")
				}
				return &rest.Response{StatusCode: tt.responses[calls-1]}, nil
			}

			err := svc.send(context.Background(), msg)
			assert.Equal(t, tt.wantErr, err != nil, "send() error = %v", err)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}
