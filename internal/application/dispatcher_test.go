package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vn.io.arda/marketplace-notification/internal/domain"
)

func newTestDispatcher(emailOK bool, opts DispatcherOptions) (*Dispatcher, *memNotifications, *fakeEmail) {
	repo := &memNotifications{}
	email := &fakeEmail{result: emailOK}
	return NewDispatcher(repo, email, nil, opts), repo, email
}

func confirmation(email string) domain.OrderConfirmation {
	return domain.OrderConfirmation{
		UserID:      "u-1",
		OrderID:     "o-1",
		OrderNumber: "MP-1001",
		Email:       email,
		Items:       []domain.OrderItem{{ProductID: "p-1", Quantity: 1, Price: 10}},
		Total:       10,
	}
}

func TestSendOrderConfirmation_ChannelSuccess(t *testing.T) {
	d, repo, email := newTestDispatcher(true, DispatcherOptions{})

	n, err := d.SendOrderConfirmation(context.Background(), confirmation("ada@example.com"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSent, n.Status)
	assert.NotNil(t, n.SentAt)
	require.Len(t, repo.all(), 1)
	assert.Equal(t, domain.StatusSent, repo.all()[0].Status)
	assert.Equal(t, "ada@example.com", *repo.all()[0].Email)
	assert.Equal(t, 1, email.calls())
	assert.Equal(t, "Order confirmation #MP-1001", email.sent[0].Subject)
}

func TestSendOrderConfirmation_ChannelFailureStaysPending(t *testing.T) {
	d, repo, _ := newTestDispatcher(false, DispatcherOptions{})

	n, err := d.SendOrderConfirmation(context.Background(), confirmation("ada@example.com"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, n.Status)
	assert.Nil(t, n.SentAt)
	assert.Equal(t, domain.StatusPending, repo.all()[0].Status)
}

func TestSendOrderConfirmation_NoDestination(t *testing.T) {
	d, repo, email := newTestDispatcher(true, DispatcherOptions{})

	n, err := d.SendOrderConfirmation(context.Background(), confirmation(""))
	require.NoError(t, err)

	assert.Equal(t, 0, email.calls())
	assert.Equal(t, domain.StatusPending, n.Status)
	assert.Nil(t, n.Email)
	assert.Nil(t, repo.all()[0].Email)
}

func TestSendToUser_AlwaysOneRowRecordedSent(t *testing.T) {
	cases := []struct {
		name    string
		emailOK bool
		email   string
		calls   int
	}{
		{"email delivered", true, "ada@example.com", 1},
		{"email failed", false, "ada@example.com", 1},
		{"no email", false, "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, repo, email := newTestDispatcher(tc.emailOK, DispatcherOptions{})

			n, err := d.SendToUser(context.Background(), domain.SendToUserInput{
				UserID: "u-1", Kind: domain.KindPaymentReceived, Subject: "Payment received",
				Content: "We received your payment.", Email: tc.email,
			})
			require.NoError(t, err)

			require.Len(t, repo.all(), 1)
			assert.Equal(t, domain.StatusSent, n.Status)
			assert.NotNil(t, n.SentAt)
			assert.Equal(t, tc.calls, email.calls())
		})
	}
}

func TestSendToUser_StrictStatusRecordsFailure(t *testing.T) {
	d, repo, _ := newTestDispatcher(false, DispatcherOptions{StrictStatus: true})

	n, err := d.SendToUser(context.Background(), domain.SendToUserInput{
		UserID: "u-1", Subject: "s", Content: "c", Email: "ada@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, n.Status)
	assert.Equal(t, domain.KindGeneric, repo.all()[0].Kind)
}

func TestSendToUser_MissingUser(t *testing.T) {
	d, repo, _ := newTestDispatcher(true, DispatcherOptions{})

	_, err := d.SendToUser(context.Background(), domain.SendToUserInput{Subject: "s"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, repo.all())
}

func TestDispatch_SameEventIDIsIdempotent(t *testing.T) {
	d, repo, email := newTestDispatcher(true, DispatcherOptions{})
	o := confirmation("ada@example.com")
	o.EventID = "evt-1"

	first, err := d.SendOrderConfirmation(context.Background(), o)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := d.SendOrderConfirmation(context.Background(), o)
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Len(t, repo.all(), 1)
	assert.Equal(t, 1, email.calls())
}

func TestDispatch_WithoutEventIDEveryCallCreatesARow(t *testing.T) {
	d, repo, _ := newTestDispatcher(true, DispatcherOptions{})

	for i := 0; i < 2; i++ {
		_, err := d.SendOrderConfirmation(context.Background(), confirmation("ada@example.com"))
		require.NoError(t, err)
	}
	assert.Len(t, repo.all(), 2)
}

func TestSendOrderShipped(t *testing.T) {
	d, _, email := newTestDispatcher(true, DispatcherOptions{})

	n, err := d.SendOrderShipped(context.Background(), domain.ShipmentNotice{
		UserID: "u-1", OrderID: "o-1", OrderNumber: "MP-1", ShipmentID: "s-1",
		TrackingNumber: "TRK9", Email: "ada@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KindOrderShipped, n.Kind)
	assert.Equal(t, domain.StatusSent, n.Status)
	assert.Contains(t, n.Content, "TRK9")
	assert.Contains(t, email.sent[0].HTML, "TRK9")
}

func TestSendOrderDelivered_FailureStaysPending(t *testing.T) {
	d, _, _ := newTestDispatcher(false, DispatcherOptions{})

	n, err := d.SendOrderDelivered(context.Background(), domain.ShipmentNotice{
		UserID: "u-1", OrderID: "o-1", Email: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, n.Status)
}

func TestListAndMarkRead(t *testing.T) {
	d, _, _ := newTestDispatcher(true, DispatcherOptions{})
	ctx := context.Background()

	for i := 0; i < MaxListed+5; i++ {
		_, err := d.SendToUser(ctx, domain.SendToUserInput{UserID: "u-1", Subject: "s", Content: "c"})
		require.NoError(t, err)
	}

	list, err := d.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, list, MaxListed)

	read, err := d.MarkRead(ctx, list[0].ID.String(), "u-1")
	require.NoError(t, err)
	assert.NotNil(t, read.ReadAt)
	assert.Equal(t, domain.StatusSent, read.Status)

	unread, err := d.CountUnread(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxListed+4), unread)

	_, err = d.MarkRead(ctx, "not-a-uuid", "u-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
