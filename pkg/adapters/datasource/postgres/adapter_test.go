package postgres

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-health/pkg/adapters/datasource"
)

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "db",
		"port":     float64(6432),
		"user":     "health",
		"password": "pw",
		"database": "safety",
	})
	require.NoError(t, err)
	assert.Equal(t, 6432, cfg.Port)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, "public", cfg.Schema)
	assert.Equal(t, int32(10), cfg.MaxConns)

	_, err = FromMap(map[string]any{"user": "u", "database": "d"})
	assert.ErrorContains(t, err, "host")
	_, err = FromMap(map[string]any{"host": "h", "database": "d"})
	assert.ErrorContains(t, err, "user")
	_, err = FromMap(map[string]any{"host": "h", "user": "u"})
	assert.ErrorContains(t, err, "database")
}

func TestBuildConnectionString_EscapesCredentials(t *testing.T) {
	connStr := buildConnectionString(&Config{
		Host:     "db.internal",
		Port:     5432,
		User:     "health",
		Password: "p@ss/w#rd?",
		Database: "safety",
		SSLMode:  "disable",
	})

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/w#rd?", pw)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/safety", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestQualifiedTableName(t *testing.T) {
	assert.Equal(t, `"public"."unsafe_events_srs"`, qualifiedTableName("public", "unsafe_events_srs"))
	assert.Equal(t, `"odd""name"`, quoteIdent(`odd"name`))
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered("postgres"))
}
