package entities

import "time"

type ConnectionStatus string

const (
	StatusAwaitingQr   ConnectionStatus = "awaiting_qr"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// Connection is one messaging-gateway pairing owned by a user.
type Connection struct {
	ID                  uint                   `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID             string                 `json:"owner_id" gorm:"type:varchar(64);index;not null"`
	DisplayName         string                 `json:"display_name" gorm:"type:varchar(255);not null"`
	GatewayInstanceName string                 `json:"gateway_instance_name" gorm:"type:varchar(128);uniqueIndex;not null"`
	Status              ConnectionStatus       `json:"status" gorm:"type:varchar(20);index;not null;default:'awaiting_qr'"`
	QrPayload           *string                `json:"qr_payload" gorm:"type:text"`
	PhoneNumber         *string                `json:"phone_number" gorm:"type:varchar(32)"`
	GatewayMetadata     map[string]interface{} `json:"gateway_metadata" gorm:"serializer:json;type:text"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func (Connection) TableName() string {
	return "whatsapp_connections"
}

// Transition is a status change together with the fields whose validity
// depends on it. Only the constructors below build one.
type Transition struct {
	Status      ConnectionStatus
	QrPayload   *string
	PhoneNumber *string
}

// AwaitQr records a freshly retrieved pairing code.
func AwaitQr(payload string) Transition {
	return Transition{Status: StatusAwaitingQr, QrPayload: &payload}
}

// Connect records a completed pairing. An empty phone is stored as null.
func Connect(phone string) Transition {
	t := Transition{Status: StatusConnected}
	if phone != "" {
		t.PhoneNumber = &phone
	}
	return t
}

func Disconnect() Transition {
	return Transition{Status: StatusDisconnected}
}

// Columns is the column map written by an update-by-id. Nil pointers are
// kept so the columns are cleared.
func (t Transition) Columns() map[string]interface{} {
	return map[string]interface{}{
		"status":       t.Status,
		"qr_payload":   t.QrPayload,
		"phone_number": t.PhoneNumber,
	}
}

func (c *Connection) Apply(t Transition) {
	c.Status = t.Status
	c.QrPayload = t.QrPayload
	c.PhoneNumber = t.PhoneNumber
}
