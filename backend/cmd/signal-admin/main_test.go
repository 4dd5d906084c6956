package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/signal-admin/backend/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr string
	}{
		{name: "json", level: "info", format: "json"},
		{name: "console", level: "debug", format: "console"},
		{name: "invalid level", level: "loud", format: "json", wantErr: "invalid log level"},
		{name: "invalid format", level: "info", format: "xml", wantErr: "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Observability: config.ObservabilityConfig{LogLevel: tt.level, LogFormat: tt.format}}
			logger, err := initLogger(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}
