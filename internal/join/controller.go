// Package join drives the member registration screen: field validation, the
// verification-code round trip and the final sign-up call.
package join

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hana/fieldmate/internal/attempt"
	"github.com/hana/fieldmate/internal/countdown"
	"github.com/hana/fieldmate/internal/event"
	"github.com/hana/fieldmate/internal/remote"
	"github.com/hana/fieldmate/internal/user/entity"
	"github.com/hana/fieldmate/internal/validation"
	"github.com/hana/fieldmate/pkg/utilities"
)

// LoadingState tracks the sign-up call.
type LoadingState int

const (
	Idle LoadingState = iota
	Loading
	Success
	Failed
)

func (l LoadingState) String() string {
	switch l {
	case Idle:
		return "Idle"
	case Loading:
		return "Loading"
	case Success:
		return "Success"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("LoadingState(%d)", int(l))
}

// State is a snapshot of the registration screen. RemainingSeconds only
// means something while TimerActive is set.
type State struct {
	NameValid        bool
	PhoneValid       bool
	CodeRequested    bool
	RemainingSeconds int
	TimerActive      bool
	CodeValid        bool
	PasswordChecks   [4]bool
	ConfirmValid     bool
	Loading          LoadingState
}

// RegistrationEnabled reports whether the sign-up button may be pressed.
func (s State) RegistrationEnabled() bool {
	return s.NameValid &&
		s.PhoneValid &&
		s.CodeValid &&
		validation.AllPassed(s.PasswordChecks) &&
		s.ConfirmValid
}

// Remote is the subset of the API the registration screen calls.
type Remote interface {
	SendMessage(ctx context.Context, phone string, typ remote.MessageType) error
	VerifyMessage(ctx context.Context, phone, code string, typ remote.MessageType) error
	Join(ctx context.Context, req remote.JoinRequest) (*remote.JoinResponse, error)
	FetchUserInfo(ctx context.Context) (*entity.UserInfo, error)
}

// Sessions persists what a successful sign-up hands back.
type Sessions interface {
	SaveTokens(ctx context.Context, t entity.Tokens) error
	SaveUserInfo(ctx context.Context, u *entity.UserInfo) error
}

// Gate decides whether another verification code may be sent.
type Gate interface {
	Gate(ctx context.Context) (attempt.Decision, error)
}

// Controller owns one registration screen session. Its operations block
// until the remote call they make returns, so callers that must stay
// responsive run them on their own goroutine.
type Controller struct {
	id       string
	remote   Remote
	sessions Sessions
	gate     Gate
	logger   *zap.SugaredLogger
	timer    *countdown.Countdown
	events   *event.Channel

	// held across a mutation and its fan-out so subscribers observe
	// changes in the order they were made
	notifyMu sync.Mutex

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// New builds a controller. clock drives the countdown; nil means real time.
func New(r Remote, sessions Sessions, gate Gate, clock clockwork.Clock, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	id := utilities.NewKSUID()
	c := &Controller{
		id:       id,
		remote:   r,
		sessions: sessions,
		gate:     gate,
		logger:   logger.With("join_session", id),
		events:   event.NewChannel(event.DefaultBuffer),
		state:    State{RemainingSeconds: countdown.DefaultSeconds, Loading: Idle},
		subs:     make(map[int]func(State)),
	}
	c.timer = countdown.New(clock, func(remaining int, active bool) {
		c.update(func(s *State) {
			s.RemainingSeconds = remaining
			s.TimerActive = active
		})
	})
	return c
}

// ID identifies this screen session in logs.
func (c *Controller) ID() string { return c.id }

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state change and immediately hands it the
// current state. fn must not call the controller's setters. The returned func
// removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.notifyMu.Lock()
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	s := c.state
	c.mu.Unlock()
	fn(s)
	c.notifyMu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Events is the one-shot UI intent stream.
func (c *Controller) Events() *event.Channel { return c.events }

func (c *Controller) update(fn func(*State)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	fn(&c.state)
	s := c.state
	subs := make([]func(State), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if f, ok := c.subs[i]; ok {
			subs = append(subs, f)
		}
	}
	c.mu.Unlock()

	for _, f := range subs {
		f(s)
	}
}

func (c *Controller) emit(e event.Event) {
	if !c.events.Send(e) {
		c.logger.Debugw("event dropped after close", "event", e.String())
	}
}

func (c *Controller) SetName(name string) {
	ok := validation.NameValid(name)
	c.update(func(s *State) { s.NameValid = ok })
}

func (c *Controller) SetPhone(phone string) {
	ok := validation.PhoneValid(phone)
	c.update(func(s *State) { s.PhoneValid = ok })
}

func (c *Controller) SetPassword(password string) {
	checks := validation.PasswordChecks(password)
	c.update(func(s *State) { s.PasswordChecks = checks })
}

func (c *Controller) SetConfirm(password, confirm string) {
	ok := validation.ConfirmValid(password, confirm)
	c.update(func(s *State) { s.ConfirmValid = ok })
}

// RequestCode asks the API to text a verification code to phone, subject to
// the hourly send limit. The countdown restarts once when the gate allows the
// send and again when the API accepts it.
func (c *Controller) RequestCode(ctx context.Context, phone string) error {
	d, err := c.gate.Gate(ctx)
	if err != nil {
		c.logger.Warnw("attempt gate failed", "err", err)
		c.emit(event.Dialog(event.DialogError, event.Open, err.Error()))
		return err
	}
	if d == attempt.Blocked {
		c.emit(event.Dialog(event.DialogError, event.Open, attempt.ErrTooManyAttempts.Error()))
		return attempt.ErrTooManyAttempts
	}

	c.update(func(s *State) { s.CodeRequested = true })
	c.timer.Start(countdown.DefaultSeconds)

	if err := c.remote.SendMessage(ctx, phone, remote.MessageJoin); err != nil {
		c.logger.Infow("send message failed", "err", err)
		c.emit(event.FromError(err))
		return err
	}
	c.timer.Start(countdown.DefaultSeconds)
	return nil
}

// VerifyCode checks the code the user typed.
func (c *Controller) VerifyCode(ctx context.Context, phone, code string) error {
	if err := c.remote.VerifyMessage(ctx, phone, code, remote.MessageJoin); err != nil {
		c.logger.Infow("verify message failed", "err", err)
		c.emit(event.FromError(err))
		return err
	}
	c.update(func(s *State) { s.CodeValid = true })
	c.emit(event.Dialog(event.DialogConfirm, event.Open, ""))
	return nil
}

// Submit signs the member up. It does nothing until every field is valid.
func (c *Controller) Submit(ctx context.Context, name, phone, password, confirm string) error {
	if !c.State().RegistrationEnabled() {
		return nil
	}
	c.update(func(s *State) { s.Loading = Loading })

	resp, err := c.remote.Join(ctx, remote.JoinRequest{
		Name:          name,
		PhoneNumber:   phone,
		Password:      password,
		PasswordCheck: confirm,
	})
	if err == nil {
		err = c.sessions.SaveTokens(ctx, entity.Tokens{Access: resp.AccessToken, Refresh: resp.RefreshToken})
	}
	if err != nil {
		c.logger.Infow("join failed", "err", err)
		c.update(func(s *State) { s.Loading = Failed })
		c.emit(event.FromError(err))
		return err
	}

	c.cacheUserInfo(ctx)
	c.emit(event.NavigateTo(event.ScreenSelectCompany))
	c.update(func(s *State) { s.Loading = Success })
	c.logger.Infow("member joined", "member_id", resp.MemberID)
	return nil
}

// cacheUserInfo is best effort; the next screen fetches again if needed.
func (c *Controller) cacheUserInfo(ctx context.Context) {
	info, err := c.remote.FetchUserInfo(ctx)
	if err != nil {
		c.logger.Warnw("fetch user info failed", "err", err)
		return
	}
	if err := c.sessions.SaveUserInfo(ctx, info); err != nil {
		c.logger.Warnw("save user info failed", "err", err)
	}
}

// StopTimer acknowledges the expired countdown.
func (c *Controller) StopTimer() {
	c.timer.Stop()
}

// Close stops the countdown and tears down the event stream.
func (c *Controller) Close() {
	c.timer.Close()
	c.events.Close()
}
