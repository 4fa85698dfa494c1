package logging

import (
	"log/slog"
	"testing"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestFromDomain(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, FromDomain(domain.LogLevelDebug))
	assert.Equal(t, slog.LevelWarn, FromDomain(domain.LogLevelWarn))
	assert.Equal(t, LevelFatal, FromDomain(domain.LogLevelFatal))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
