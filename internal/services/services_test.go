package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

var start = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHasher(t *testing.T) *auth.PasswordHasher {
	t.Helper()
	h, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// requireValidation asserts err is a ValidationError carrying message.
func requireValidation(t *testing.T, err error, message string) {
	t.Helper()
	verr, ok := services.IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	if message != "" {
		require.Contains(t, verr.Message, message)
	}
}

type recordingNotifier struct {
	mu          sync.Mutex
	contacts    []types.ContactMessage
	deliveries  [][]string
	newsletters []types.Newsletter
	err         error
}

func (n *recordingNotifier) ContactSubmitted(_ context.Context, msg types.ContactMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.contacts = append(n.contacts, msg)
	return nil
}

func (n *recordingNotifier) NewsletterDelivery(_ context.Context, nl types.Newsletter, recipients []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.newsletters = append(n.newsletters, nl)
	n.deliveries = append(n.deliveries, recipients)
	return nil
}

var errBoom = errors.New("boom")
