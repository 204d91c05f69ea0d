package arena

import (
	"context"
	"time"

	"github.com/DoyleJ11/duel-arena-backend/internal/clock"
	"github.com/DoyleJ11/duel-arena-backend/internal/engine"
	"github.com/DoyleJ11/duel-arena-backend/internal/results"
	"github.com/DoyleJ11/duel-arena-backend/internal/scheduler"
	"github.com/DoyleJ11/duel-arena-backend/internal/session"
	"go.uber.org/zap"
)

type Msg interface{ isArenaMsg() }

// FromClient carries a command from a connected client. Claims is set when
// the client presented a verified session token. Reply, if non-nil, gets the
// engine's verdict.
type FromClient struct {
	ClientID string
	Cmd      engine.Command
	Claims   *session.Claims
	Reply    chan error
}

func (FromClient) isArenaMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isArenaMsg() {}

type Leave struct{ ClientID string }

func (Leave) isArenaMsg() {}

type Shutdown struct{}

func (Shutdown) isArenaMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isArenaMsg() {}

// AttackTick and FrameTick do what the schedulers do; tests post them to
// step a duel deterministically.
type AttackTick struct{}

func (AttackTick) isArenaMsg() {}

type FrameTick struct{}

func (FrameTick) isArenaMsg() {}

type Snapshot struct {
	Version int
	State   engine.View
}

type View struct {
	Version        int
	NumClients     int
	State          engine.View
	AttacksRunning bool
	FramesRunning  bool
	Reported       bool
}

// Ledger records which duel a session was spent on.
type Ledger interface {
	Consume(ctx context.Context, claims *session.Claims, duelID string) error
}

type Options struct {
	Clock         clock.Clock
	Sink          results.Sink
	Ledger        Ledger // when set, each session starts a single duel
	Logger        *zap.Logger
	FrameInterval time.Duration
	ReportTimeout time.Duration
}

type Arena struct {
	inbox   chan Msg
	duel    *engine.Duel
	version int
	clients map[string]chan Snapshot

	clock    clock.Clock
	attacks  *scheduler.Scheduler
	frames   *scheduler.Scheduler
	sink     results.Sink
	ledger   Ledger
	log      *zap.Logger
	timeout  time.Duration
	claims   *session.Claims
	reported bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewArena(parent context.Context, duel *engine.Duel, opts Options) *Arena {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = clock.NewMonotonic()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 10 * time.Second
	}

	a := &Arena{
		inbox:   make(chan Msg, 64), // Small buffer
		duel:    duel,
		clients: make(map[string]chan Snapshot),
		clock:   opts.Clock,
		attacks: scheduler.New(duel.Rules().AttackTick),
		frames:  scheduler.New(opts.FrameInterval),
		sink:    opts.Sink,
		ledger:  opts.Ledger,
		log:     opts.Logger.With(zap.String("duel_id", duel.ID)),
		timeout: opts.ReportTimeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go a.loop()
	return a
}

func (a *Arena) loop() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			a.shutdown()
			return

		case <-a.attacks.C():
			a.onAttackTick()

		case <-a.frames.C():
			a.onFrame()

		case m := <-a.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately.
				// An outbox with no room is treated like a slow client.
				select {
				case msg.Outbox <- Snapshot{Version: a.version, State: a.duel.View()}:
					a.clients[msg.ClientID] = msg.Outbox
				default:
					close(msg.Outbox)
				}

			case Leave:
				delete(a.clients, msg.ClientID)

			case FromClient:
				a.onCommand(msg)

			case AttackTick:
				a.onAttackTick()

			case FrameTick:
				a.onFrame()

			case GetState:
				msg.Reply <- View{
					Version:        a.version,
					NumClients:     len(a.clients),
					State:          a.duel.View(),
					AttacksRunning: a.attacks.Running(),
					FramesRunning:  a.frames.Running(),
					Reported:       a.reported,
				}

			case Shutdown:
				a.shutdown()
				return
			}
		}
	}
}

func (a *Arena) onCommand(msg FromClient) {
	var events []engine.Event
	err := a.claimSession(msg)
	if err == nil {
		events, err = a.duel.Apply(msg.Cmd)
	}
	if msg.Reply != nil {
		msg.Reply <- err
	}
	if err != nil {
		a.log.Debug("command rejected",
			zap.String("client_id", msg.ClientID),
			zap.String("command", string(msg.Cmd.Type)),
			zap.Error(err))
		return
	}

	if engine.ContainsEvent(events, engine.EvtDuelStarted) {
		a.claims = msg.Claims
		a.startSchedulers()
		a.log.Info("duel started",
			zap.String("player_choice", string(a.duel.PlayerChoice)),
			zap.String("first_turn", string(a.duel.Turn)))
	}
	a.commit(events)
}

// claimSession spends the session behind a start command on this duel. It
// runs only once the engine would accept the start, so a rejected start
// leaves the session unspent.
func (a *Arena) claimSession(msg FromClient) error {
	if a.ledger == nil || msg.Cmd.Type != engine.CmdStartDuel {
		return nil
	}
	if err := a.duel.CanStart(msg.Cmd.Auth); err != nil {
		return err
	}
	if msg.Claims == nil {
		return engine.ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	return a.ledger.Consume(ctx, msg.Claims, a.duel.ID)
}

func (a *Arena) startSchedulers() {
	if err := a.attacks.Start(); err != nil {
		a.log.Error("attack scheduler failed to start", zap.Error(err))
	}
	if err := a.frames.Start(); err != nil {
		a.log.Error("frame driver failed to start", zap.Error(err))
	}
}

func (a *Arena) onAttackTick() {
	a.commit(a.duel.Trigger(a.clock.Elapsed()))
}

func (a *Arena) onFrame() {
	a.commit(a.duel.Update(a.clock.Elapsed()))
}

// commit publishes a batch of engine events. Frames that changed nothing
// produce no snapshot.
func (a *Arena) commit(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	a.version++
	a.broadcast(Snapshot{Version: a.version, State: a.duel.View()})

	if evt, ok := engine.FindEvent(events, engine.EvtDuelConcluded); ok {
		a.conclude(evt)
	}
}

func (a *Arena) conclude(evt engine.Event) {
	a.attacks.Stop()
	a.frames.Stop()

	if a.reported || evt.Outcome == nil {
		return
	}
	a.reported = true

	rep := results.Report{
		DuelID:       a.duel.ID,
		Winner:       evt.Outcome.Winner,
		PlayerChoice: a.duel.PlayerChoice,
		PlayerWon:    evt.Outcome.PlayerWon,
		Reward:       evt.Outcome.Reward,
		SessionToken: a.duel.Authorization().Token,
		ConcludedAt:  time.Now().UTC(),
	}
	if a.claims != nil {
		rep.PlayerID = a.claims.PlayerID
		rep.Coupon = a.claims.Coupon
		rep.Row = a.claims.Row
	}

	a.log.Info("duel concluded",
		zap.String("winner", string(rep.Winner)),
		zap.Bool("player_won", rep.PlayerWon),
		zap.Int("reward", rep.Reward),
		zap.Int("triggers", a.duel.Triggers))

	if a.sink == nil {
		return
	}
	// Reporting runs off the loop: a slow or failing sink must not stall
	// or alter the duel.
	go a.report(rep)
}

func (a *Arena) report(rep results.Report) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), a.timeout)
	defer cancel()
	if err := a.sink.Record(ctx, rep); err != nil {
		a.log.Error("result sink failed", zap.Error(err), zap.Int("reward", rep.Reward))
		return
	}
	a.log.Debug("result recorded")
}

func (a *Arena) shutdown() {
	a.attacks.Stop()
	a.frames.Stop()
	for id, ch := range a.clients {
		close(ch) // Tell client no more snapshots
		delete(a.clients, id)
	}
	a.cancel()
}

func (a *Arena) broadcast(snap Snapshot) {
	for id, ch := range a.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(a.clients, id)
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (a *Arena) Inbox() chan<- Msg { return a.inbox }

// Send delivers msg unless the arena has already shut down.
func (a *Arena) Send(msg Msg) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.inbox <- msg:
		return true
	case <-a.done:
		return false
	}
}

func (a *Arena) ID() string { return a.duel.ID }

// Done is closed once the arena loop has exited.
func (a *Arena) Done() <-chan struct{} { return a.done }
