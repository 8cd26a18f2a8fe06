package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waconnect/pkg/entities"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestAutoMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrations?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))
	// idempotent
	require.NoError(t, AutoMigrate(db))

	m := db.Migrator()
	assert.True(t, m.HasTable(&entities.Connection{}))
	assert.True(t, m.HasTable("whatsapp_connections"))
	for _, col := range []string{"owner_id", "gateway_instance_name", "status", "qr_payload", "phone_number", "gateway_metadata"} {
		assert.True(t, m.HasColumn(&entities.Connection{}, col), col)
	}
}
