// Package cartsync keeps the server-side copy of the cart in step with the
// local one. Sync is best effort: failures are logged and never retried.
package cartsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/rs/zerolog"
)

// Remote is the backend cart endpoint.
type Remote interface {
	GetCart(ctx context.Context) ([]cart.CartItem, error)
	PutCart(ctx context.Context, items []cart.CartItem) error
}

// TokenSource reports the current session token.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Phase is the position in the reconcile state machine.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePullPending
	PhaseAdoptServer
	PhasePushLocal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePullPending:
		return "pull-pending"
	case PhaseAdoptServer:
		return "adopt-server"
	case PhasePushLocal:
		return "push-local"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Action is what a reconcile did.
type Action string

const (
	ActionSkipped       Action = "skipped"
	ActionNone          Action = "none"
	ActionAdoptedServer Action = "adopted-server"
	ActionPushedLocal   Action = "pushed-local"
	ActionFailed        Action = "failed"
)

// Outcome reports the result of PullAndReconcile. Refresh is true when the
// local cart was overwritten and views should re-render.
type Outcome struct {
	Action  Action
	Items   int
	Refresh bool
	Err     error
}

// Syncer pushes local cart changes and reconciles with the server cart.
type Syncer struct {
	store  *cart.Store
	remote Remote
	tokens TokenSource
	log    zerolog.Logger

	phase     atomic.Int32
	reconcile sync.Mutex
	inflight  sync.WaitGroup
}

// New creates a Syncer.
func New(store *cart.Store, remote Remote, tokens TokenSource, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		remote: remote,
		tokens: tokens,
		log:    log,
	}
}

// Phase returns the current reconcile phase.
func (s *Syncer) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Syncer) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

func (s *Syncer) signedIn(ctx context.Context) bool {
	_, ok := s.tokens.Token(ctx)
	return ok
}

// Push sends items to the server in the background. It returns immediately;
// the request is skipped when nobody is signed in and failures are only
// logged. The request is not canceled with ctx.
func (s *Syncer) Push(ctx context.Context, items []cart.CartItem) {
	if !s.signedIn(ctx) {
		s.log.Debug().Msg("not signed in, skipping cart push")
		return
	}

	snapshot := make([]cart.CartItem, len(items))
	copy(snapshot, items)
	pushCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.remote.PutCart(pushCtx, snapshot); err != nil {
			s.log.Warn().Err(err).Int("items", len(snapshot)).Msg("cart push failed")
			return
		}
		s.log.Debug().Int("items", len(snapshot)).Msg("cart pushed")
	}()
}

// Attach pushes after every local cart change until the returned function
// is called. Changes that came from the server are not echoed back.
func (s *Syncer) Attach(ctx context.Context) func() {
	return s.store.Subscribe(func(ev cart.Event) {
		if ev.Kind != cart.EventChanged || ev.Source == cart.SourceServer {
			return
		}
		s.Push(ctx, ev.State.Items)
	})
}

// PullAndReconcile fetches the server cart and settles the difference with
// the local cart: an empty local cart adopts a non-empty server cart,
// otherwise a non-empty local cart overwrites the server's.
func (s *Syncer) PullAndReconcile(ctx context.Context) Outcome {
	s.reconcile.Lock()
	defer s.reconcile.Unlock()
	defer s.setPhase(PhaseIdle)

	if !s.signedIn(ctx) {
		return Outcome{Action: ActionSkipped}
	}

	s.setPhase(PhasePullPending)
	server, err := s.remote.GetCart(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("cart pull failed")
		return Outcome{Action: ActionFailed, Err: fmt.Errorf("pull cart: %w", err)}
	}

	local := s.store.Cart(ctx)

	switch {
	case len(local) == 0 && len(server) > 0:
		s.setPhase(PhaseAdoptServer)
		st, err := s.store.Replace(ctx, server, cart.SourceServer)
		if err != nil {
			s.log.Warn().Err(err).Msg("adopting server cart failed")
			return Outcome{Action: ActionFailed, Err: err}
		}
		s.log.Info().Int("items", st.Len()).Msg("adopted server cart")
		return Outcome{Action: ActionAdoptedServer, Items: st.Len(), Refresh: true}

	case len(local) > 0:
		s.setPhase(PhasePushLocal)
		if err := s.remote.PutCart(ctx, local); err != nil {
			s.log.Warn().Err(err).Msg("pushing local cart failed")
			return Outcome{Action: ActionFailed, Err: fmt.Errorf("push cart: %w", err)}
		}
		s.log.Debug().Int("items", len(local)).Msg("local cart pushed over server cart")
		return Outcome{Action: ActionPushedLocal, Items: len(local)}

	default:
		return Outcome{Action: ActionNone}
	}
}

// Flush waits for background pushes to finish or for ctx to end.
func (s *Syncer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush cart sync: %w", ctx.Err())
	}
}
