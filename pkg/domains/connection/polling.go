package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waconnect/pkg/entities"
	apperrors "github.com/waconnect/pkg/errors"
	"github.com/waconnect/pkg/gateway"
	"github.com/waconnect/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event bus topics. Handlers receive a PairingEvent.
const (
	TopicConnected      = "connection:connected"
	TopicPairingTimeout = "connection:pairing_timeout"
)

type PairingEventType string

const (
	PairingConnected PairingEventType = "connected"
	PairingTimeout   PairingEventType = "timeout"
)

type PairingEvent struct {
	Type         PairingEventType `json:"type"`
	ConnectionID uint             `json:"connection_id"`
	PhoneNumber  string           `json:"phone_number,omitempty"`
	At           time.Time        `json:"at"`
}

// PollHandle controls one running pairing poll. Events yields at most one
// event and is closed when the poll ends; a cancelled poll emits nothing.
type PollHandle struct {
	events chan PairingEvent
	done   chan struct{}
	l      *loop
}

func (h *PollHandle) Events() <-chan PairingEvent { return h.events }

func (h *PollHandle) Done() <-chan struct{} { return h.done }

// Cancel stops the poll. Once it returns the poll performs no further
// writes.
func (h *PollHandle) Cancel() { h.l.stop() }

func (s *service) PollForPairing(ctx context.Context, conn *entities.Connection, interval, maxDuration time.Duration) (*PollHandle, error) {
	if interval <= 0 || maxDuration <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "poll interval and duration must be positive")
	}
	if conn.Status == entities.StatusConnected {
		return nil, apperrors.ErrAlreadyConnected
	}
	return s.watch(s.loops.begin(ctx, conn.ID), conn, interval, maxDuration)
}

func newPollHandle(l *loop) *PollHandle {
	return &PollHandle{
		events: make(chan PairingEvent, 1),
		done:   make(chan struct{}),
		l:      l,
	}
}

// watch schedules a pairing poll on l, which the caller has registered.
func (s *service) watch(l *loop, conn *entities.Connection, interval, maxDuration time.Duration) (*PollHandle, error) {
	id := conn.ID
	name := instanceName(conn)
	h := newPollHandle(l)

	err := s.pool.Submit(func() {
		s.runPollTask(l, h, id, name, interval, maxDuration)
	})
	if err != nil {
		s.loops.end(id, l)
		return nil, fmt.Errorf("schedule pairing poll: %w", err)
	}

	logger.Get().Debugw("pairing poll started", "connection_id", id, "instance", name, "interval", interval, "max_duration", maxDuration)
	return h, nil
}

func (s *service) runPollTask(l *loop, h *PollHandle, id uint, name string, interval, maxDuration time.Duration) {
	defer func() {
		s.loops.end(id, l)
		close(h.events)
		close(h.done)
	}()
	s.runPoll(l, h, id, name, interval, maxDuration)
}

func (s *service) runPoll(l *loop, h *PollHandle, id uint, name string, interval, maxDuration time.Duration) {
	log := logger.Get().With("connection_id", id, "instance", name)

	if !s.awaitingScan(l.ctx, id) {
		pairingOutcomes.WithLabelValues("stale").Inc()
		log.Infow("connection is not awaiting a scan, poll not started")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(maxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-l.ctx.Done():
			pairingOutcomes.WithLabelValues("cancelled").Inc()
			log.Debugw("pairing poll cancelled")
			return

		case <-deadline.C:
			// A sample due at the same instant still counts.
			select {
			case <-ticker.C:
				if s.sample(l, h, id, name, log) {
					return
				}
			default:
			}
			s.timeout(l, h, id, maxDuration, log)
			return

		case <-ticker.C:
			if s.sample(l, h, id, name, log) {
				return
			}
		}
	}
}

// sample takes one status reading and records the pairing when the phone
// has scanned. It reports whether the poll is over.
func (s *service) sample(l *loop, h *PollHandle, id uint, name string, log *zap.SugaredLogger) bool {
	body, err := s.gateway.GetStatus(l.ctx, name)
	if err != nil {
		log.Debugw("transient gateway error while polling", "error", err)
		return false
	}
	st := gateway.MatchStatus(body)
	if !st.Paired() {
		return false
	}
	if st.Owner == "" {
		st.Owner = s.lookupOwner(l.ctx, name, log)
	}

	phone := gateway.PhoneFromOwner(st.Owner)
	ev := PairingEvent{Type: PairingConnected, ConnectionID: id, PhoneNumber: phone, At: time.Now()}
	err = l.commit(func(ctx context.Context) error {
		if err := s.repository.UpdateFrom(ctx, id, entities.StatusAwaitingQr, entities.Connect(phone)); err != nil {
			return err
		}
		h.events <- ev
		return nil
	})
	switch {
	case errors.Is(err, errLoopStopped):
		return true
	case errors.Is(err, gorm.ErrRecordNotFound):
		pairingOutcomes.WithLabelValues("stale").Inc()
		log.Infow("connection left awaiting_qr during the poll, pairing not recorded")
		return true
	case err != nil:
		log.Warnw("could not persist pairing, retrying on next tick", "error", err)
		return false
	}

	pairingOutcomes.WithLabelValues("connected").Inc()
	log.Infow("connection paired", "phone_number", phone)
	s.bus.Publish(TopicConnected, ev)
	return true
}

func (s *service) timeout(l *loop, h *PollHandle, id uint, maxDuration time.Duration, log *zap.SugaredLogger) {
	ev := PairingEvent{Type: PairingTimeout, ConnectionID: id, At: time.Now()}
	err := l.commit(func(ctx context.Context) error {
		if !s.awaitingScan(ctx, id) {
			return errNotAwaiting
		}
		h.events <- ev
		return nil
	})
	if errors.Is(err, errNotAwaiting) {
		pairingOutcomes.WithLabelValues("stale").Inc()
		log.Infow("connection left awaiting_qr during the poll, no timeout emitted")
		return
	}
	if err != nil {
		return
	}
	pairingOutcomes.WithLabelValues("timeout").Inc()
	log.Infow("pairing poll timed out", "max_duration", maxDuration)
	s.bus.Publish(TopicPairingTimeout, ev)
}

var errNotAwaiting = errors.New("connection not awaiting a scan")

// awaitingScan reports whether the record still exists in awaiting_qr.
// Read errors count as yes; the guarded write decides in the end.
func (s *service) awaitingScan(ctx context.Context, id uint) bool {
	row, err := s.repository.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if err != nil {
		return true
	}
	return row.Status == entities.StatusAwaitingQr
}

// lookupOwner asks the gateway's instance record for the paired account.
// Best effort: an empty result stores a null phone number.
func (s *service) lookupOwner(ctx context.Context, name string, log *zap.SugaredLogger) string {
	body, err := s.gateway.FetchInstance(ctx, name)
	if err != nil {
		log.Debugw("owner lookup failed", "error", err)
		return ""
	}
	return gateway.MatchStatus(body).Owner
}
