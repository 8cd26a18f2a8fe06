package dtos

import (
	"time"

	"github.com/waconnect/pkg/entities"
)

type CreateConnectionDTO struct {
	DisplayName string `json:"display_name" binding:"required,displayname"`
}

type ConnectionDTO struct {
	ID           uint                      `json:"id"`
	DisplayName  string                    `json:"display_name"`
	InstanceName string                    `json:"instance_name"`
	Status       entities.ConnectionStatus `json:"status"`
	QRCode       *string                   `json:"qr_code,omitempty"`
	PhoneNumber  *string                   `json:"phone_number,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

func NewConnectionDTO(c *entities.Connection) ConnectionDTO {
	return ConnectionDTO{
		ID:           c.ID,
		DisplayName:  c.DisplayName,
		InstanceName: c.GatewayInstanceName,
		Status:       c.Status,
		QRCode:       c.QrPayload,
		PhoneNumber:  c.PhoneNumber,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func NewConnectionDTOs(conns []entities.Connection) []ConnectionDTO {
	out := make([]ConnectionDTO, 0, len(conns))
	for i := range conns {
		out = append(out, NewConnectionDTO(&conns[i]))
	}
	return out
}

type QRCodeDTO struct {
	ConnectionID uint   `json:"connection_id"`
	QRCode       string `json:"qr_code"`
}

// PollDTO overrides the default pairing poll budget. Zero fields keep the
// defaults.
type PollDTO struct {
	IntervalSeconds    int `json:"interval_seconds" binding:"omitempty,min=1,max=60"`
	MaxDurationSeconds int `json:"max_duration_seconds" binding:"omitempty,min=1,max=900"`
}
