package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/internal/testutil"
)

func newContactService(t *testing.T) (*services.ContactService, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	repo := store.NewContactRepository(testutil.NewDB(t))
	return services.NewContactService(repo, notifier, discardLogger()).WithClock(testutil.NewClock(start).Now), notifier
}

func validContact() services.ContactInput {
	return services.ContactInput{Name: "Visitor", Email: "visitor@example.com", Subject: "Hello", Message: "Nice site"}
}

func TestContactSubmit(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newContactService(t)

	msg, err := svc.Submit(ctx, validContact(), services.ClientInfo{IP: "203.0.113.7", UserAgent: "curl/8"})
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.IPAddress)
	assert.Equal(t, "203.0.113.7", *msg.IPAddress)
	require.Len(t, notifier.contacts, 1)
	assert.Equal(t, msg.ID, notifier.contacts[0].ID)

	anonymous, err := svc.Submit(ctx, validContact(), services.ClientInfo{})
	require.NoError(t, err)
	assert.Nil(t, anonymous.IPAddress)
	assert.Nil(t, anonymous.UserAgent)
}

func TestContactSubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newContactService(t)

	cases := map[string]func(*services.ContactInput){
		"name":    func(in *services.ContactInput) { in.Name = strings.Repeat("n", 101) },
		"email":   func(in *services.ContactInput) { in.Email = "nope" },
		"subject": func(in *services.ContactInput) { in.Subject = strings.Repeat("s", 201) },
		"message": func(in *services.ContactInput) { in.Message = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := validContact()
			mutate(&in)
			_, err := svc.Submit(ctx, in, services.ClientInfo{})
			requireValidation(t, err, field)
		})
	}
	assert.Empty(t, notifier.contacts)
}

func TestContactSubmitNotificationFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newContactService(t)
	notifier.err = errBoom

	msg, err := svc.Submit(ctx, validContact(), services.ClientInfo{})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nice site", stored.Message)
}

func TestContactInbox(t *testing.T) {
	ctx := context.Background()
	svc, _ := newContactService(t)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		msg, err := svc.Submit(ctx, validContact(), services.ClientInfo{})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	page, err := svc.List(ctx, store.Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 3, page.UnreadCount)
	assert.Len(t, page.Items, 2)

	read, err := svc.SetRead(ctx, ids[0], true)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	count, err := svc.BulkMarkRead(ctx, []string{ids[0], ids[1], "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	page, err = svc.List(ctx, store.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.UnreadCount)

	unread, err := svc.SetRead(ctx, ids[0], false)
	require.NoError(t, err)
	assert.False(t, unread.IsRead)

	_, err = svc.BulkMarkRead(ctx, nil)
	requireValidation(t, err, "message_ids")

	assert.ErrorIs(t, svc.MarkRead(ctx, "missing"), store.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, ids[2]))
	assert.ErrorIs(t, svc.Delete(ctx, ids[2]), store.ErrNotFound)
}
