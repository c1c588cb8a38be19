package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/email"
)

func TestDevSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes html and metadata files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := email.NewDevSender(dir)

		params := validParams()
		params.Tag = "billing"
		receipt, err := sender.SendEmail(ctx, params)
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.NotEmpty(t, receipt.MessageID)
		assert.Zero(t, receipt.Cost, "development sends are free")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		var htmlFile, jsonFile string
		for _, e := range entries {
			switch filepath.Ext(e.Name()) {
			case ".html":
				htmlFile = filepath.Join(dir, e.Name())
			case ".json":
				jsonFile = filepath.Join(dir, e.Name())
			}
			assert.Contains(t, e.Name(), "billing", "tag is part of the filename")
		}
		require.NotEmpty(t, htmlFile)
		require.NotEmpty(t, jsonFile)

		html, err := os.ReadFile(htmlFile)
		require.NoError(t, err)
		assert.Equal(t, params.BodyHTML, string(html))

		raw, err := os.ReadFile(jsonFile)
		require.NoError(t, err)
		var meta map[string]any
		require.NoError(t, json.Unmarshal(raw, &meta))
		assert.Equal(t, params.SendTo, meta["send_to"])
		assert.Equal(t, params.Subject, meta["subject"])
		assert.Equal(t, receipt.MessageID, meta["message_id"])
	})

	t.Run("falls back to subject for the filename", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := email.NewDevSender(dir)

		params := validParams()
		params.Subject = "Class Reminder!"
		_, err := sender.SendEmail(ctx, params)
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.True(t, strings.Contains(entries[0].Name(), "class_reminder"),
			"subject is sanitized into the filename: %s", entries[0].Name())
	})

	t.Run("rejects invalid params", func(t *testing.T) {
		t.Parallel()

		sender := email.NewDevSender(t.TempDir())
		_, err := sender.SendEmail(ctx, email.SendEmailParams{})
		assert.ErrorIs(t, err, email.ErrInvalidParams)
	})
}
