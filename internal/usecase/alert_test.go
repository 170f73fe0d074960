package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

func newAlerts(n *fakeNotifier, l port.IncidentLedger) *AlertUseCase {
	return NewAlertUseCase(
		port.ClassifierFunc(func(text string) bool { return text == "incident" }),
		n, l,
		AlertConfig{PublicURL: "https://chat.example.com", Subject: "Alerta", Recipients: []string{"jefe@example.com", "hse@example.com"}},
		discardLogger(),
	)
}

func TestAlertUseCase_Process(t *testing.T) {
	n := &fakeNotifier{}
	u := newAlerts(n, nil)

	incident, notified := u.Process(context.Background(), "q", "routine", u.ContextURL("routine"))
	assert.False(t, incident)
	assert.False(t, notified)

	incident, notified = u.Process(context.Background(), "q", "incident", u.ContextURL("incident"))
	assert.True(t, incident)
	assert.True(t, notified)
	require.Len(t, n.sent(), 1)
	assert.Equal(t, "https://chat.example.com/?response=incident", n.sent()[0].Link)
	assert.Len(t, n.sent()[0].To, 2)
}

func TestAlertUseCase_Send(t *testing.T) {
	n := &fakeNotifier{}
	u := newAlerts(n, nil)

	ok, err := u.Send(context.Background(), MessageRequest{Subject: "Aviso", Body: "Simulacro a las 10"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, n.sent()[0].To, 2)

	ok, err = u.Send(context.Background(), MessageRequest{To: "HSE@example.com", Subject: "Aviso", Body: "x"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"HSE@example.com"}, n.sent()[1].To)
}

func TestAlertUseCase_SendValidation(t *testing.T) {
	u := newAlerts(&fakeNotifier{}, nil)

	tests := []struct {
		name  string
		req   MessageRequest
		field string
	}{
		{"missing subject", MessageRequest{Body: "x"}, "subject"},
		{"missing body", MessageRequest{Subject: "x"}, "body"},
		{"unknown recipient", MessageRequest{To: "someone@else.com", Subject: "x", Body: "y"}, "to_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.Send(context.Background(), tt.req)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAlertUseCase_SendFailure(t *testing.T) {
	u := newAlerts(&fakeNotifier{err: errors.New("smtp down")}, nil)
	ok, err := u.Send(context.Background(), MessageRequest{Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAlertUseCase_Incidents(t *testing.T) {
	u := newAlerts(&fakeNotifier{}, nil)
	list, err := u.Incidents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	l := &fakeLedger{}
	u = newAlerts(&fakeNotifier{}, l)
	u.Process(context.Background(), "q", "incident", u.ContextURL("incident"))
	list, err = u.Incidents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].ID)
	assert.Equal(t, "q", list[0].Query)
}
