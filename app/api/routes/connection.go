package routes

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/waconnect/pkg/constant"
	"github.com/waconnect/pkg/domains/connection"
	"github.com/waconnect/pkg/dtos"
	"github.com/waconnect/pkg/entities"
	apperrors "github.com/waconnect/pkg/errors"
	"github.com/waconnect/pkg/logger"
	"github.com/waconnect/pkg/middleware"
	"github.com/waconnect/pkg/state"
)

func ConnectionRoutes(r *gin.RouterGroup, s connection.Service, opts connection.Options) {
	authGroup := r.Group("", middleware.CheckAuth())
	{
		authGroup.GET("", listConnections(s))
		authGroup.POST("", createConnection(s))
		authGroup.GET("/:id", getConnection(s))
		authGroup.POST("/:id/qr-code", acquireQrCode(s, opts))
		authGroup.POST("/:id/refresh", refreshQrCode(s))
		authGroup.POST("/:id/poll", startPolling(s, opts))
		authGroup.DELETE("/:id/poll", stopPolling(s))
		authGroup.POST("/:id/disconnect", disconnect(s))
		authGroup.DELETE("/:id", deleteConnection(s))
	}
}

func AdminRoutes(r *gin.RouterGroup, s connection.Service) {
	adminGroup := r.Group("", middleware.Admin())
	{
		adminGroup.POST("/sync", syncStatuses(s))
	}
}

func listConnections(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conns, err := s.ListConnections(c, state.CurrentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": constant.CONNECTIONS_RETRIEVED,
			"data":    dtos.NewConnectionDTOs(conns),
		})
	}
}

func createConnection(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.CreateConnectionDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
			return
		}

		conn, err := s.CreateConnection(c, state.CurrentUser(c), req.DisplayName)
		if err != nil {
			respondError(c, err)
			return
		}

		// The record exists even if the first QR run can't be scheduled;
		// the client can still ask for a refresh.
		if err := s.StartPairing(conn); err != nil {
			logger.Get().Warnw("could not schedule initial pairing", "connection_id", conn.ID, "error", err)
		}

		c.JSON(201, gin.H{
			"message": constant.CONNECTION_CREATED,
			"data":    dtos.NewConnectionDTO(conn),
		})
	}
}

func getConnection(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		c.JSON(200, gin.H{
			"message": constant.CONNECTION_RETRIEVED,
			"data":    dtos.NewConnectionDTO(conn),
		})
	}
}

func acquireQrCode(s connection.Service, opts connection.Options) func(c *gin.Context) {
	return func(c *gin.Context) {
		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		// Replaces any running poll; on success a fresh one watches the
		// new code.
		payload, err := s.AcquireAndPoll(c.Request.Context(), conn, opts.QrBudget)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": constant.QR_CODE_READY,
			"data":    dtos.QRCodeDTO{ConnectionID: conn.ID, QRCode: payload},
		})
	}
}

func refreshQrCode(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		payload, err := s.RefreshQrCode(c.Request.Context(), conn)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": constant.QR_CODE_READY,
			"data":    dtos.QRCodeDTO{ConnectionID: conn.ID, QRCode: payload},
		})
	}
}

func startPolling(s connection.Service, opts connection.Options) func(c *gin.Context) {
	return func(c *gin.Context) {
		var req dtos.PollDTO
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(400, gin.H{"error": constant.INVALID_REQUEST})
				return
			}
		}

		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		interval, maxDuration := opts.PollInterval, opts.PollMaxDuration
		if req.IntervalSeconds > 0 {
			interval = time.Duration(req.IntervalSeconds) * time.Second
		}
		if req.MaxDurationSeconds > 0 {
			maxDuration = time.Duration(req.MaxDurationSeconds) * time.Second
		}

		// The poll outlives this request.
		if _, err := s.PollForPairing(context.Background(), conn, interval, maxDuration); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(202, gin.H{"message": constant.POLLING_STARTED})
	}
}

func stopPolling(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		msg := constant.NO_ACTIVE_POLL
		if s.StopPolling(conn) {
			msg = constant.POLLING_STOPPED
		}
		c.JSON(200, gin.H{"message": msg})
	}
}

func disconnect(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		if err := s.Disconnect(c, conn); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"message": constant.CONNECTION_DISCONNECTED,
			"data":    dtos.NewConnectionDTO(conn),
		})
	}
}

func deleteConnection(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		conn, ok := loadConnection(c, s)
		if !ok {
			return
		}

		if err := s.DeleteConnection(c, conn); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{"message": constant.CONNECTION_DELETED})
	}
}

func syncStatuses(s connection.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		if err := s.SyncStatuses(c); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": constant.STATUS_SYNC_DONE})
	}
}

// loadConnection resolves :id for the current owner and writes the error
// response itself when it can't.
func loadConnection(c *gin.Context, s connection.Service) (*entities.Connection, bool) {
	id, err := cast.ToUintE(c.Param("id"))
	if err != nil || id == 0 {
		respondError(c, apperrors.ErrConnectionNotFound)
		return nil, false
	}

	conn, err := s.GetConnection(c, state.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return conn, true
}

// respondError maps application errors to their HTTP status. Anything
// unexpected is logged and reported as an internal error.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unhandled error", "path", c.FullPath(), "error", err)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Warnw("request failed", "path", c.FullPath(), "code", appErr.Code, "error", appErr.Internal)
	}

	c.JSON(appErr.StatusCode, gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}
