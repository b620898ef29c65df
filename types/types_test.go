package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlogPostApply(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	excerpt := "short"
	post := BlogPost{Title: "Old", Content: "body", Status: PostStatusDraft}

	title := "New"
	post.Apply(BlogPostUpdate{Title: &title, Excerpt: &excerpt}, now)
	assert.Equal(t, "New", post.Title)
	assert.Equal(t, "body", post.Content)
	require.NotNil(t, post.Excerpt)
	assert.Equal(t, "short", *post.Excerpt)
	assert.Nil(t, post.PublishedAt)

	published := PostStatusPublished
	post.Apply(BlogPostUpdate{Status: &published}, now)
	require.NotNil(t, post.PublishedAt)
	assert.Equal(t, now, *post.PublishedAt)

	later := now.Add(time.Hour)
	draft := PostStatusDraft
	post.Apply(BlogPostUpdate{Status: &draft}, later)
	post.Apply(BlogPostUpdate{Status: &published}, later)
	assert.Equal(t, now, *post.PublishedAt, "published_at is only stamped once")
}

func TestPostStatusUnmarshal(t *testing.T) {
	var update BlogPostUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"status":"published"}`), &update))
	require.NotNil(t, update.Status)
	assert.Equal(t, PostStatusPublished, *update.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"archived"}`), &update))
}

func TestNewsletterApply(t *testing.T) {
	n := Newsletter{Subject: "Hi", Content: "c", Status: NewsletterStatusDraft}
	content := "updated"
	n.Apply(NewsletterUpdate{Content: &content})
	assert.Equal(t, "Hi", n.Subject)
	assert.Equal(t, "updated", n.Content)

	var status NewsletterStatus
	assert.Error(t, json.Unmarshal([]byte(`"queued"`), &status))
}

func TestAdminUserJSONOmitsPasswordHash(t *testing.T) {
	data, err := json.Marshal(AdminUser{ID: "1", Username: "admin", PasswordHash: "secret-hash"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-hash")
	assert.NotContains(t, string(data), "password")
}

func TestDefaultVisibility(t *testing.T) {
	assert.True(t, DefaultVisibility("about"))
	assert.False(t, DefaultVisibility("blog"))
	assert.False(t, DefaultVisibility("newsletter"))
}
