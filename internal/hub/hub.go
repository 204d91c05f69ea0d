package hub

import (
	"context"

	"github.com/DoyleJ11/duel-arena-backend/internal/arena"
	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type CreateArena struct {
	Duel  *engine.Duel
	Reply chan *arena.Arena
}

type GetArena struct {
	ID    string
	Reply chan *arena.Arena
}

// RemoveArena shuts the arena down. Reply, if non-nil, reports whether it
// existed.
type RemoveArena struct {
	ID    string
	Reply chan bool
}

type CountArenas struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateArena) isHubMsg() {}
func (GetArena) isHubMsg()    {}
func (RemoveArena) isHubMsg() {}
func (CountArenas) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	arenas map[string]*arena.Arena
	opts   arena.Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub starts the registry. opts is handed to every arena it creates;
// each arena gets its own clock when opts.Clock is nil.
func NewHub(parent context.Context, opts arena.Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		arenas: make(map[string]*arena.Arena),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Get is a convenience wrapper around GetArena. Returns nil when unknown.
func (h *Hub) Get(id string) *arena.Arena {
	reply := make(chan *arena.Arena, 1)
	select {
	case h.inbox <- GetArena{ID: id, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	select {
	case a := <-reply:
		return a
	case <-h.ctx.Done():
		return nil
	}
}

// Create registers duel, or returns the arena already running under its ID.
// Returns nil once the hub has shut down.
func (h *Hub) Create(duel *engine.Duel) *arena.Arena {
	reply := make(chan *arena.Arena, 1)
	select {
	case h.inbox <- CreateArena{Duel: duel, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	select {
	case a := <-reply:
		return a
	case <-h.ctx.Done():
		return nil
	}
}

// Remove shuts an arena down and reports whether it was registered.
func (h *Hub) Remove(id string) bool {
	reply := make(chan bool, 1)
	select {
	case h.inbox <- RemoveArena{ID: id, Reply: reply}:
	case <-h.ctx.Done():
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-h.ctx.Done():
		return false
	}
}

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateArena:
				if a := h.arenas[msg.Duel.ID]; a != nil {
					msg.Reply <- a
					break
				}
				a := arena.NewArena(h.ctx, msg.Duel, h.opts)
				h.arenas[msg.Duel.ID] = a
				h.log.Debug("arena created", zap.String("duel_id", msg.Duel.ID))
				msg.Reply <- a

			case GetArena:
				msg.Reply <- h.arenas[msg.ID] // May be nil

			case RemoveArena:
				a := h.arenas[msg.ID]
				if a != nil {
					a.Send(arena.Shutdown{})
					delete(h.arenas, msg.ID)
				}
				if msg.Reply != nil {
					msg.Reply <- a != nil
				}

			case CountArenas:
				msg.Reply <- len(h.arenas)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, a := range h.arenas {
		a.Send(arena.Shutdown{})
	}
	clear(h.arenas)
	h.cancel()
}
