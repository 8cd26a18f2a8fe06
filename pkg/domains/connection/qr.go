package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/waconnect/pkg/entities"
	apperrors "github.com/waconnect/pkg/errors"
	"github.com/waconnect/pkg/gateway"
	"github.com/waconnect/pkg/logger"
)

var errQrPending = errors.New("gateway has no QR code yet")

func (s *service) AcquireQrCode(ctx context.Context, conn *entities.Connection, budget QrBudget) (string, error) {
	if err := checkAcquire(conn, budget); err != nil {
		return "", err
	}
	l := s.loops.begin(ctx, conn.ID)
	defer s.loops.end(conn.ID, l)
	return s.acquire(l, conn, budget)
}

// AcquireAndPoll acquires a QR code and, on success, keeps the same loop
// running as the pairing poll, so nothing can start or stop in between.
// ctx bounds the acquisition only; the poll outlives it.
func (s *service) AcquireAndPoll(ctx context.Context, conn *entities.Connection, budget QrBudget) (string, error) {
	if err := checkAcquire(conn, budget); err != nil {
		return "", err
	}
	l := s.loops.begin(s.ctx, conn.ID)
	detach := context.AfterFunc(ctx, l.stop)
	payload, err := s.acquire(l, conn, budget)
	detach()
	if err != nil {
		s.loops.end(conn.ID, l)
		return "", err
	}
	if _, err := s.watch(l, conn, s.opts.PollInterval, s.opts.PollMaxDuration); err != nil {
		logger.Get().Warnw("could not start pairing poll", "connection_id", conn.ID, "error", err)
	}
	return payload, nil
}

func checkAcquire(conn *entities.Connection, budget QrBudget) error {
	if budget.Attempts < 1 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "max attempts must be at least 1")
	}
	if conn.Status == entities.StatusConnected {
		return apperrors.ErrAlreadyConnected
	}
	return nil
}

// acquire runs the QR retry loop on l. The caller owns l.
func (s *service) acquire(l *loop, conn *entities.Connection, budget QrBudget) (string, error) {
	name := instanceName(conn)
	log := logger.Get().With("connection_id", conn.ID, "instance", name)

	if err := sleep(l.ctx, budget.WarmUp); err != nil {
		qrAcquisitions.WithLabelValues("cancelled").Inc()
		return "", apperrors.ErrQrNotAvailable
	}

	var payload string
	attempt := 0
	op := func() error {
		attempt++
		body, err := s.gateway.GetQrCode(l.ctx, name)
		if err != nil {
			return err
		}
		m := gateway.MatchQr(body)
		switch m.Kind {
		case gateway.QrImage:
			payload = m.Value
		case gateway.QrCode:
			payload = gateway.RenderQrURL(s.opts.QrRendererURL, m.Value)
		case gateway.QrPending:
			return errQrPending
		default:
			return fmt.Errorf("unrecognized QR response shape: %v", keys(body))
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		if errors.Is(err, errQrPending) {
			log.Debugw("QR not generated yet", "attempt", attempt, "next_in", next)
			return
		}
		log.Infow("transient gateway error during QR acquisition", "attempt", attempt, "error", err)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(budget.Interval), uint64(budget.Attempts-1)),
		l.ctx,
	)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		log.Infow("QR code not available within budget", "attempts", attempt, "last_error", err)
		qrAcquisitions.WithLabelValues("not_available").Inc()
		return "", apperrors.ErrQrNotAvailable
	}

	t := entities.AwaitQr(payload)
	err := l.commit(func(ctx context.Context) error {
		return s.repository.Update(ctx, conn.ID, t)
	})
	switch {
	case errors.Is(err, errLoopStopped):
		// A newer loop owns this connection now.
		qrAcquisitions.WithLabelValues("superseded").Inc()
		return "", apperrors.ErrQrNotAvailable
	case err != nil:
		qrAcquisitions.WithLabelValues("store_error").Inc()
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	conn.Apply(t)

	qrAcquisitions.WithLabelValues("ok").Inc()
	log.Infow("QR code acquired", "attempts", attempt)
	return payload, nil
}

// RefreshQrCode regenerates the pairing code of a stuck connection. The
// gateway has no "new QR" call, so it logs the instance out and connects
// again.
func (s *service) RefreshQrCode(ctx context.Context, conn *entities.Connection) (string, error) {
	if conn.Status == entities.StatusConnected {
		return "", apperrors.ErrAlreadyConnected
	}
	s.loops.cancel(conn.ID)

	if err := s.ensureInstance(ctx, conn); err != nil {
		return "", err
	}

	name := instanceName(conn)
	s.bestEffort(ctx, "logout", name, func(ctx context.Context) error {
		return s.gateway.Logout(ctx, name)
	})
	if err := sleep(ctx, s.opts.LogoutSettle); err != nil {
		return "", apperrors.ErrQrNotAvailable
	}

	return s.AcquireAndPoll(ctx, conn, QrBudget{
		Attempts: s.opts.RefreshAttempts,
		Interval: s.opts.QrBudget.Interval,
	})
}

// ensureInstance recreates the gateway instance when the gateway says it
// does not exist. Other probe failures leave it alone: a flaky network
// must not spawn a second instance.
func (s *service) ensureInstance(ctx context.Context, conn *entities.Connection) error {
	name := instanceName(conn)
	_, err := s.gateway.GetStatus(ctx, name)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gateway.ErrInstanceNotFound):
		logger.Get().Infow("gateway instance missing, recreating", "connection_id", conn.ID, "instance", name)
		if err := s.gateway.CreateInstance(ctx, name); err != nil {
			return apperrors.Wrap(apperrors.ErrGatewayUnavailable, err)
		}
		return nil
	default:
		logger.Get().Warnw("instance status probe failed, not recreating", "connection_id", conn.ID, "instance", name, "error", err)
		return nil
	}
}

// StartPairing continues the create flow in the background: acquire the
// first QR code, then wait for the phone to pair. Both phases run in one
// worker on one loop.
func (s *service) StartPairing(conn *entities.Connection) error {
	c := *conn
	if err := checkAcquire(&c, s.opts.QrBudget); err != nil {
		return err
	}
	return s.pool.Submit(func() {
		l := s.loops.begin(s.ctx, c.ID)
		if _, err := s.acquire(l, &c, s.opts.QrBudget); err != nil {
			s.loops.end(c.ID, l)
			logger.Get().Infow("initial QR acquisition ended without a code", "connection_id", c.ID, "error", err)
			return
		}
		s.runPollTask(l, newPollHandle(l), c.ID, instanceName(&c), s.opts.PollInterval, s.opts.PollMaxDuration)
	})
}

func keys(p gateway.Payload) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}
