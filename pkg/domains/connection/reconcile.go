package connection

import (
	"context"
	"errors"

	"github.com/waconnect/pkg/entities"
	apperrors "github.com/waconnect/pkg/errors"
	"github.com/waconnect/pkg/gateway"
	"github.com/waconnect/pkg/logger"
)

// SyncStatuses re-reads the gateway state of every connected record and
// marks the ones whose instance was logged out or removed behind our back.
// Records with a running loop are skipped; that loop owns them.
func (s *service) SyncStatuses(ctx context.Context) error {
	conns, err := s.repository.FindByStatus(ctx, entities.StatusConnected)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var changed int
	for i := range conns {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn := &conns[i]
		if s.loops.active(conn.ID) {
			continue
		}

		name := instanceName(conn)
		body, err := s.gateway.GetStatus(ctx, name)
		switch {
		case errors.Is(err, gateway.ErrInstanceNotFound):
			// removed at the gateway
		case err != nil:
			logger.Get().Debugw("status sync skipped", "connection_id", conn.ID, "instance", name, "error", err)
			continue
		default:
			if !gateway.MatchStatus(body).Closed() {
				continue
			}
		}

		if err := s.repository.Update(ctx, conn.ID, entities.Disconnect()); err != nil {
			logger.Get().Warnw("status sync write failed", "connection_id", conn.ID, "error", err)
			continue
		}
		changed++
		logger.Get().Infow("connection no longer paired at gateway", "connection_id", conn.ID, "instance", name)
	}

	if changed > 0 {
		logger.Get().Infow("status sync finished", "checked", len(conns), "disconnected", changed)
	}
	return nil
}
