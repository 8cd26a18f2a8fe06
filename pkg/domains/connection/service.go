package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"github.com/waconnect/pkg/entities"
	apperrors "github.com/waconnect/pkg/errors"
	"github.com/waconnect/pkg/gateway"
	"github.com/waconnect/pkg/logger"
	"gorm.io/gorm"
)

// Gateway is the slice of the messaging gateway the manager drives.
type Gateway interface {
	CreateInstance(ctx context.Context, name string) error
	GetStatus(ctx context.Context, name string) (gateway.Payload, error)
	GetQrCode(ctx context.Context, name string) (gateway.Payload, error)
	Logout(ctx context.Context, name string) error
	DeleteInstance(ctx context.Context, name string) error
	FetchInstance(ctx context.Context, name string) (gateway.Payload, error)
}

type Service interface {
	CreateConnection(ctx context.Context, ownerID, displayName string) (*entities.Connection, error)
	AcquireQrCode(ctx context.Context, conn *entities.Connection, budget QrBudget) (string, error)
	AcquireAndPoll(ctx context.Context, conn *entities.Connection, budget QrBudget) (string, error)
	PollForPairing(ctx context.Context, conn *entities.Connection, interval, maxDuration time.Duration) (*PollHandle, error)
	RefreshQrCode(ctx context.Context, conn *entities.Connection) (string, error)
	Disconnect(ctx context.Context, conn *entities.Connection) error
	DeleteConnection(ctx context.Context, conn *entities.Connection) error

	StartPairing(conn *entities.Connection) error
	StopPolling(conn *entities.Connection) bool
	GetConnection(ctx context.Context, ownerID string, id uint) (*entities.Connection, error)
	ListConnections(ctx context.Context, ownerID string) ([]entities.Connection, error)
	SyncStatuses(ctx context.Context) error
	Close()
}

// QrBudget bounds one QR acquisition run.
type QrBudget struct {
	Attempts int
	Interval time.Duration
	// WarmUp is waited once before the first request.
	WarmUp time.Duration
}

type Options struct {
	QrRendererURL   string
	Integration     string
	NodeID          int64
	QrBudget        QrBudget
	RefreshAttempts int
	LogoutSettle    time.Duration
	PollInterval    time.Duration
	PollMaxDuration time.Duration
	Workers         int
}

func DefaultOptions() Options {
	return Options{
		QrRendererURL:   "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=",
		Integration:     "WHATSAPP-BAILEYS",
		NodeID:          1,
		QrBudget:        QrBudget{Attempts: 24, Interval: 2 * time.Second, WarmUp: 2500 * time.Millisecond},
		RefreshAttempts: 12,
		LogoutSettle:    time.Second,
		PollInterval:    3 * time.Second,
		PollMaxDuration: 120 * time.Second,
		Workers:         256,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.PollMaxDuration <= 0 {
		o.PollMaxDuration = def.PollMaxDuration
	}
	if o.RefreshAttempts <= 0 {
		o.RefreshAttempts = def.RefreshAttempts
	}
	return o
}

type service struct {
	repository Repository
	gateway    Gateway
	bus        EventBus.Bus
	opts       Options

	names *namer
	loops *loopRegistry
	pool  *ants.Pool

	// ctx outlives requests; background loops derive from it.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(r Repository, gw Gateway, bus EventBus.Bus, opts Options) (Service, error) {
	names, err := newNamer(opts.NodeID)
	if err != nil {
		return nil, fmt.Errorf("instance namer: %w", err)
	}
	opts = opts.withDefaults()
	// Nonblocking: a saturated pool fails the submit instead of parking
	// the caller, which may itself be a worker.
	pool, err := ants.NewPool(opts.Workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	if bus == nil {
		bus = EventBus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		repository: r,
		gateway:    gw,
		bus:        bus,
		opts:       opts,
		names:      names,
		loops:      newLoopRegistry(),
		pool:       pool,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func (s *service) CreateConnection(ctx context.Context, ownerID, displayName string) (*entities.Connection, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "display name is required")
	}
	if ownerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	name := s.names.derive(displayName)
	if err := s.gateway.CreateInstance(ctx, name); err != nil {
		logger.Get().Errorw("gateway instance creation failed", "instance", name, "error", err)
		connectionsCreated.WithLabelValues("gateway_unavailable").Inc()
		return nil, apperrors.Wrap(apperrors.ErrGatewayUnavailable, err)
	}

	conn := &entities.Connection{
		OwnerID:             ownerID,
		DisplayName:         displayName,
		GatewayInstanceName: name,
		Status:              entities.StatusAwaitingQr,
		GatewayMetadata:     newGatewayMetadata(name, s.opts.Integration),
	}
	if err := s.repository.Create(ctx, conn); err != nil {
		s.bestEffort(ctx, "delete orphaned instance", name, func(ctx context.Context) error {
			return s.gateway.DeleteInstance(ctx, name)
		})
		connectionsCreated.WithLabelValues("store_error").Inc()
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	connectionsCreated.WithLabelValues("ok").Inc()
	logger.Get().Infow("connection created", "connection_id", conn.ID, "owner_id", ownerID, "instance", name)
	return conn, nil
}

func (s *service) GetConnection(ctx context.Context, ownerID string, id uint) (*entities.Connection, error) {
	conn, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrConnectionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	// Foreign records are reported as missing.
	if conn.OwnerID != ownerID {
		return nil, apperrors.ErrConnectionNotFound
	}
	return &conn, nil
}

func (s *service) ListConnections(ctx context.Context, ownerID string) ([]entities.Connection, error) {
	conns, err := s.repository.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return conns, nil
}

func (s *service) Disconnect(ctx context.Context, conn *entities.Connection) error {
	s.loops.cancel(conn.ID)
	name := instanceName(conn)

	s.bestEffort(ctx, "logout", name, func(ctx context.Context) error {
		return s.gateway.Logout(ctx, name)
	})

	t := entities.Disconnect()
	if err := s.repository.Update(ctx, conn.ID, t); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrConnectionNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	conn.Apply(t)

	logger.Get().Infow("connection disconnected", "connection_id", conn.ID, "instance", name)
	return nil
}

func (s *service) DeleteConnection(ctx context.Context, conn *entities.Connection) error {
	// No loop may start for this id while (or after) the record goes away.
	s.loops.retire(conn.ID)
	name := instanceName(conn)

	s.bestEffort(ctx, "logout", name, func(ctx context.Context) error {
		return s.gateway.Logout(ctx, name)
	})
	s.bestEffort(ctx, "delete instance", name, func(ctx context.Context) error {
		return s.gateway.DeleteInstance(ctx, name)
	})

	if err := s.repository.Delete(ctx, conn.ID); err != nil {
		s.loops.unretire(conn.ID)
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("connection deleted", "connection_id", conn.ID, "instance", name)
	return nil
}

func (s *service) StopPolling(conn *entities.Connection) bool {
	return s.loops.cancel(conn.ID)
}

func (s *service) Close() {
	s.loops.cancelAll()
	s.cancel()
	s.pool.Release()
}

// bestEffort runs an advisory gateway call. Failures are logged and
// dropped: the target may already be logged out or gone.
func (s *service) bestEffort(ctx context.Context, op, instance string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		lvl := logger.Get().Debugw
		if !errors.Is(err, gateway.ErrInstanceNotFound) {
			lvl = logger.Get().Warnw
		}
		lvl("best-effort gateway call failed", "op", op, "instance", instance, "error", err)
	}
}

// sleep waits d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
