// Package withdrawal lets a signed-in member delete their account.
package withdrawal

import (
	"context"

	"go.uber.org/zap"

	"github.com/hana/fieldmate/internal/event"
)

// Remote deletes the member behind the current access token.
type Remote interface {
	QuitMember(ctx context.Context) error
}

// Sessions forgets the local credentials.
type Sessions interface {
	Clear(ctx context.Context) error
}

// Controller backs the withdrawal screen.
type Controller struct {
	remote   Remote
	sessions Sessions
	logger   *zap.SugaredLogger
	events   *event.Channel
}

func New(r Remote, sessions Sessions, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{
		remote:   r,
		sessions: sessions,
		logger:   logger,
		events:   event.NewChannel(event.DefaultBuffer),
	}
}

func (c *Controller) Events() *event.Channel { return c.events }

// Quit deletes the account and sends the user back to a fresh login screen.
// A failure to clear the local session is logged but does not stop the
// navigation, since the server side is already gone.
func (c *Controller) Quit(ctx context.Context) error {
	if err := c.remote.QuitMember(ctx); err != nil {
		c.logger.Infow("quit member failed", "err", err)
		c.events.Send(event.FromError(err))
		return err
	}
	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.Warnw("clear session failed", "err", err)
	}
	c.events.Send(event.NavigatePopUpTo(event.ScreenLogin, event.ScreenLogin, true, true))
	return nil
}

func (c *Controller) Close() { c.events.Close() }
