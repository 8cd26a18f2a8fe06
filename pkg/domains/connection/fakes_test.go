package connection

import (
	"context"
	"sort"
	"sync"

	"github.com/waconnect/pkg/entities"
	"github.com/waconnect/pkg/gateway"
	"gorm.io/gorm"
)

// --- in-memory repository ---

type recordedUpdate struct {
	ID         uint
	Transition entities.Transition
}

type fakeRepo struct {
	mu        sync.Mutex
	rows      map[uint]entities.Connection
	nextID    uint
	updates   []recordedUpdate
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uint]entities.Connection)}
}

func (r *fakeRepo) Create(_ context.Context, conn *entities.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	conn.ID = r.nextID
	r.rows[conn.ID] = *conn
	return nil
}

func (r *fakeRepo) Update(_ context.Context, id uint, t entities.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Apply(t)
	r.rows[id] = row
	r.updates = append(r.updates, recordedUpdate{ID: id, Transition: t})
	return nil
}

func (r *fakeRepo) UpdateFrom(_ context.Context, id uint, from entities.ConnectionStatus, t entities.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != from {
		return gorm.ErrRecordNotFound
	}
	row.Apply(t)
	r.rows[id] = row
	r.updates = append(r.updates, recordedUpdate{ID: id, Transition: t})
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uint) (entities.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return entities.Connection{}, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *fakeRepo) FindByOwner(_ context.Context, ownerID string) ([]entities.Connection, error) {
	return r.filter(func(c entities.Connection) bool { return c.OwnerID == ownerID }), nil
}

func (r *fakeRepo) FindByStatus(_ context.Context, status entities.ConnectionStatus) ([]entities.Connection, error) {
	return r.filter(func(c entities.Connection) bool { return c.Status == status }), nil
}

func (r *fakeRepo) filter(keep func(entities.Connection) bool) []entities.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.Connection
	for _, c := range r.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRepo) row(id uint) (entities.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	return row, ok
}

func (r *fakeRepo) updatesFor(id uint, status entities.ConnectionStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.updates {
		if u.ID == id && u.Transition.Status == status {
			n++
		}
	}
	return n
}

func (r *fakeRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// --- scripted gateway ---

type reply struct {
	body gateway.Payload
	err  error
}

// script hands out replies in order and repeats the last one.
type script struct {
	replies []reply
	next    int
}

func (s *script) take() reply {
	if len(s.replies) == 0 {
		return reply{}
	}
	r := s.replies[s.next]
	if s.next < len(s.replies)-1 {
		s.next++
	}
	return r
}

type fakeGateway struct {
	mu        sync.Mutex
	calls     []string
	created   []string
	createErr error
	logoutErr error
	deleteErr error
	qr        script
	status    script
	instance  reply
	// byName overrides status for specific instances.
	byName map[string]reply
}

func (g *fakeGateway) record(call string) {
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) CreateInstance(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("create")
	if g.createErr != nil {
		return g.createErr
	}
	g.created = append(g.created, name)
	return nil
}

func (g *fakeGateway) GetStatus(_ context.Context, name string) (gateway.Payload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("status")
	if r, ok := g.byName[name]; ok {
		return r.body, r.err
	}
	r := g.status.take()
	return r.body, r.err
}

func (g *fakeGateway) GetQrCode(_ context.Context, _ string) (gateway.Payload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("qr")
	r := g.qr.take()
	return r.body, r.err
}

func (g *fakeGateway) Logout(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("logout")
	return g.logoutErr
}

func (g *fakeGateway) DeleteInstance(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("delete")
	return g.deleteErr
}

func (g *fakeGateway) FetchInstance(_ context.Context, _ string) (gateway.Payload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("fetch")
	return g.instance.body, g.instance.err
}

func (g *fakeGateway) setInstance(r reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.instance = r
}

func (g *fakeGateway) setStatus(replies ...reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = script{replies: replies}
}

func (g *fakeGateway) setQr(replies ...reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.qr = script{replies: replies}
}

func (g *fakeGateway) count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func state(s string) reply {
	return reply{body: gateway.Payload{"instance": map[string]interface{}{"state": s}}}
}

func pairedAs(owner string) reply {
	return reply{body: gateway.Payload{"instance": map[string]interface{}{"state": "open", "owner": owner}}}
}

func qrBody(kv ...interface{}) reply {
	p := gateway.Payload{}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i].(string)] = kv[i+1]
	}
	return reply{body: p}
}
