package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&filteringHandler{underlying: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	t.Cleanup(func() { EnableSections("service", "cli") })

	EnableSections("loader")
	logger.With("section", "loader").Debug("kept")
	logger.With("section", "box").Debug("dropped")
	logger.Info("inline", "section", "loader")
	logger.With("section", "box").Warn("warnings always pass")

	out := buf.String()
	assert.Contains(t, out, "kept")
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "inline")
	assert.Contains(t, out, "warnings always pass")

	buf.Reset()
	EnableSections("*")
	logger.With("section", "box").Debug("everything")
	assert.Contains(t, buf.String(), "everything")
}
