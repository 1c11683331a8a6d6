package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hana/fieldmate/internal/attempt"
	"github.com/hana/fieldmate/internal/event"
	"github.com/hana/fieldmate/internal/join"
	"github.com/hana/fieldmate/internal/remote"
	"github.com/hana/fieldmate/internal/router"
	"github.com/hana/fieldmate/internal/setting"
	settingrepo "github.com/hana/fieldmate/internal/setting/repo"
	"github.com/hana/fieldmate/internal/stubapi"
	"github.com/hana/fieldmate/internal/user"
	"github.com/hana/fieldmate/internal/withdrawal"
	"github.com/hana/fieldmate/pkg/database"
)

type app struct {
	con      *console
	join     *join.Controller
	quit     *withdrawal.Controller
	sessions *user.SessionService
	out      *bytes.Buffer
}

func newApp(t *testing.T) *app {
	t.Helper()
	lg := zaptest.NewLogger(t).Sugar()
	clock := clockwork.NewFakeClock()

	// server side
	serverDB, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { serverDB.Close() })
	issuer, err := stubapi.NewTokenIssuer("fieldmate-test", clock)
	require.NoError(t, err)
	svc := stubapi.NewService(serverDB, stubapi.BcryptHasher{Cost: bcrypt.MinCost}, issuer, clock, lg, stubapi.Config{})
	svc.NewCode = func() (string, error) { return "777777", nil }
	require.NoError(t, svc.EnsureSchema(context.Background()))
	srv := httptest.NewServer(router.RegisterRoutes(lg, stubapi.NewHandler(svc, lg)))
	t.Cleanup(srv.Close)

	// client side
	clientDB, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { clientDB.Close() })
	repo := settingrepo.NewRepo(clientDB)
	require.NoError(t, repo.EnsureTable(context.Background()))
	settings := setting.NewService(repo, clock)
	sessions := user.NewSessionService(settings)
	client := remote.NewClient(remote.Config{BaseURL: srv.URL}, sessions, lg, clock)

	j := join.New(client, sessions, attempt.NewLimiter(settings, clock, lg), clock, lg)
	q := withdrawal.New(client, sessions, lg)
	t.Cleanup(j.Close)
	t.Cleanup(q.Close)

	out := &bytes.Buffer{}
	return &app{con: newConsole(j, q, out, lg), join: j, quit: q, sessions: sessions, out: out}
}

// run executes a line the way the main loop would, but waits for the work.
func (a *app) run(t *testing.T, line string) {
	t.Helper()
	work, quit := a.con.dispatch(context.Background(), line)
	require.False(t, quit)
	if work != nil {
		work()
	}
}

func (a *app) render(t *testing.T, ch *event.Channel) event.Event {
	t.Helper()
	select {
	case e := <-ch.Events():
		a.con.onEvent(e)
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return event.Event{}
	}
}

func TestConsole_SignUpAndWithdraw(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	a.run(t, "name Hana")
	a.run(t, "phone 010-1234-5678")
	a.run(t, "password Abcd123!")
	a.run(t, "confirm Abcd123!")
	a.run(t, "submit")
	assert.Contains(t, a.out.String(), "form incomplete")

	a.run(t, "send")
	s := a.join.State()
	assert.True(t, s.CodeRequested)
	assert.True(t, s.TimerActive)

	a.run(t, "verify 000000")
	assert.Equal(t, event.DialogError, a.render(t, a.join.Events()).Dialog)
	assert.Contains(t, a.out.String(), "[error] verification code mismatch")

	a.run(t, "verify 777777")
	assert.Equal(t, event.DialogConfirm, a.render(t, a.join.Events()).Dialog)
	assert.True(t, a.join.State().RegistrationEnabled())

	a.run(t, "submit")
	assert.Equal(t, event.NavigateTo(event.ScreenSelectCompany), a.render(t, a.join.Events()))
	assert.Equal(t, join.Success, a.join.State().Loading)

	info, err := a.sessions.UserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hana", info.Name)

	a.run(t, "withdraw")
	assert.Equal(t, event.KindNavigatePopUpTo, a.render(t, a.quit.Events()).Kind)
	token, err := a.sessions.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	// without a session the next withdrawal routes to sign-in
	a.run(t, "withdraw")
	assert.Equal(t, event.DialogJwtExpired, a.render(t, a.quit.Events()).Dialog)
}

func TestConsole_LocalCommands(t *testing.T) {
	a := newApp(t)

	a.run(t, "password abcdefgh")
	a.run(t, "state")
	assert.Contains(t, a.out.String(), "password: length ok, mixed case --, digit --, symbol --")
	assert.Contains(t, a.out.String(), "sign-up disabled | loading Idle")

	a.run(t, "bogus")
	assert.Contains(t, a.out.String(), `unknown command "bogus"`)

	work, quit := a.con.dispatch(context.Background(), "exit")
	assert.Nil(t, work)
	assert.True(t, quit)
}

func TestConsole_WatchTimer(t *testing.T) {
	a := newApp(t)
	watch := a.con.watchTimer()

	watch(join.State{TimerActive: true, RemainingSeconds: 1})
	watch(join.State{TimerActive: true, RemainingSeconds: 0})
	watch(join.State{TimerActive: true, RemainingSeconds: 0})
	assert.Equal(t, 1, bytes.Count(a.out.Bytes(), []byte("verification time is up")))

	watch(join.State{TimerActive: true, RemainingSeconds: 180})
	watch(join.State{TimerActive: true, RemainingSeconds: 0})
	assert.Equal(t, 2, bytes.Count(a.out.Bytes(), []byte("verification time is up")))
}
