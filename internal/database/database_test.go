package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "basic",
			cfg: config.DatabaseConfig{
				Host: "replica.local", Port: 3306,
				User: "wiki", Password: "pw", Database: "commonswiki",
			},
			want: "wiki:pw@tcp(replica.local:3306)/commonswiki?parseTime=true&tls=preferred",
		},
		{
			name: "tls disabled",
			cfg: config.DatabaseConfig{
				Host: "h", Port: 3307, User: "u", Password: "p", Database: "d",
				TLS: "disable",
			},
			want: "u:p@tcp(h:3307)/d?parseTime=true&tls=false",
		},
		{
			name: "tls required",
			cfg: config.DatabaseConfig{
				Host: "h", Port: 3306, User: "u", Password: "p", Database: "d",
				TLS: "required",
			},
			want: "u:p@tcp(h:3306)/d?parseTime=true&tls=true",
		},
		{
			name: "no database name",
			cfg: config.DatabaseConfig{
				Host: "h", Port: 3306, User: "u", Password: "p",
				TLS: "preferred",
			},
			want: "u:p@tcp(h:3306)/?parseTime=true&tls=preferred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDSN(&tt.cfg))
		})
	}
}

func TestManagerNotConnected(t *testing.T) {
	m := NewManager(&config.DatabaseConfig{})

	assert.Error(t, m.Ping(context.Background()))
	assert.NoError(t, m.Close(), "closing an unconnected manager is a no-op")
}
