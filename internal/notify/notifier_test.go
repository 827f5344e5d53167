package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewatch/sitewatch/internal/detect"
)

func TestRenderBody(t *testing.T) {
	t.Parallel()

	changes := []detect.Change{
		{
			Kind:              detect.KindTextChange,
			Location:          "Paragraph 1",
			Before:            "old text",
			After:             "new text",
			SignificanceScore: 8,
			Analysis:          &detect.Analysis{Explanation: "Pricing changed"},
		},
		{
			Kind:              detect.KindLinksAdded,
			Location:          "Links",
			After:             "https://example.com/sale",
			SignificanceScore: 4,
		},
	}

	body := renderBody("https://example.com/", changes)

	assert.Contains(t, body, "The following changes were detected on https://example.com/:")
	assert.Contains(t, body, "Type: text_change")
	assert.Contains(t, body, "Location: Paragraph 1")
	assert.Contains(t, body, "Significance: 8/10")
	assert.Contains(t, body, "Before: old text")
	assert.Contains(t, body, "After: new text")
	assert.Contains(t, body, "Analysis: Pricing changed")
	assert.Contains(t, body, "Type: links_added")
	// One separator block per change.
	assert.Equal(t, 2, strings.Count(body, strings.Repeat("-", 50)))
}

func TestEmailNotifierSendsMessage(t *testing.T) {
	t.Parallel()

	n, err := NewEmailNotifier(SMTPConfig{
		Host:      "smtp.example.com",
		Username:  "watcher",
		Password:  "secret",
		From:      "alerts@example.com",
		Recipient: "owner@example.com",
	})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	changes := []detect.Change{{Kind: detect.KindTextChange, Location: "Paragraph 1"}}
	require.NoError(t, n.Notify(context.Background(), "https://example.com/", changes))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth, "PlainAuth expected when a username is set")
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"owner@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Website Changes Detected - https://example.com/")
	assert.Contains(t, string(gotMsg), "Type: text_change")
}

func TestEmailNotifierSkipsEmptyBatch(t *testing.T) {
	t.Parallel()

	n, err := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", Recipient: "owner@example.com", From: "a@b.c"})
	require.NoError(t, err)
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called for an empty batch")
		return nil
	}
	require.NoError(t, n.Notify(context.Background(), "https://example.com/", nil))
}

func TestEmailNotifierRequiresHostAndRecipient(t *testing.T) {
	t.Parallel()

	_, err := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)
	_, err = NewEmailNotifier(SMTPConfig{Recipient: "owner@example.com"})
	assert.Error(t, err)
}

type flakyNotifier struct {
	err   error
	calls int
}

func (n *flakyNotifier) Notify(context.Context, string, []detect.Change) error {
	n.calls++
	return n.err
}

func TestMultiDeliversThroughAllTransports(t *testing.T) {
	t.Parallel()

	failing := &flakyNotifier{err: errors.New("smtp down")}
	healthy := &flakyNotifier{}
	m := NewMulti(zap.NewNop(), failing, healthy)

	err := m.Notify(context.Background(), "https://example.com/", []detect.Change{{Kind: detect.KindSiteCheck}})
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, healthy.calls, "a failing transport must not stop the rest")
}
