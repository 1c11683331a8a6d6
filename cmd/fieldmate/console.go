package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hana/fieldmate/internal/countdown"
	"github.com/hana/fieldmate/internal/event"
	"github.com/hana/fieldmate/internal/join"
	"github.com/hana/fieldmate/internal/withdrawal"
)

const helpText = `commands:
  name <name>          set your name
  phone <number>       set your phone number (010-1234-5678)
  password <password>  set your password
  confirm <password>   repeat the password
  send                 text a verification code
  verify <code>        check the verification code
  submit               sign up
  stop                 acknowledge an expired code timer
  state                show the form state
  withdraw             delete the signed-in account
  help                 show this text
  exit                 leave`

// console turns typed lines into controller calls. Field values live here;
// the controller only keeps the derived flags.
type console struct {
	join     *join.Controller
	withdraw *withdrawal.Controller
	out      io.Writer
	logger   *zap.SugaredLogger

	mu       sync.Mutex // guards out and the fields below
	name     string
	phone    string
	password string
	confirm  string
}

func newConsole(j *join.Controller, w *withdrawal.Controller, out io.Writer, logger *zap.SugaredLogger) *console {
	return &console{join: j, withdraw: w, out: out, logger: logger}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// dispatch parses line and returns the remote-bound work it implies, or nil
// when the command completed locally. quit is set on exit.
func (c *console) dispatch(ctx context.Context, line string) (work func(), quit bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "name":
		c.mu.Lock()
		c.name = arg
		c.mu.Unlock()
		c.join.SetName(arg)
	case "phone":
		c.mu.Lock()
		c.phone = arg
		c.mu.Unlock()
		c.join.SetPhone(arg)
	case "password":
		c.mu.Lock()
		c.password = arg
		confirm := c.confirm
		c.mu.Unlock()
		c.join.SetPassword(arg)
		c.join.SetConfirm(arg, confirm)
	case "confirm":
		c.mu.Lock()
		c.confirm = arg
		password := c.password
		c.mu.Unlock()
		c.join.SetConfirm(password, arg)
	case "send":
		phone := c.field(func() string { return c.phone })
		return func() { _ = c.join.RequestCode(ctx, phone) }, false
	case "verify":
		phone := c.field(func() string { return c.phone })
		return func() { _ = c.join.VerifyCode(ctx, phone, arg) }, false
	case "submit":
		c.mu.Lock()
		name, phone, password, confirm := c.name, c.phone, c.password, c.confirm
		c.mu.Unlock()
		if !c.join.State().RegistrationEnabled() {
			c.printf("form incomplete; type 'state' to see what is missing\n")
			return nil, false
		}
		return func() { _ = c.join.Submit(ctx, name, phone, password, confirm) }, false
	case "stop":
		c.join.StopTimer()
	case "state":
		c.printState(c.join.State())
	case "withdraw":
		return func() { _ = c.withdraw.Quit(ctx) }, false
	case "help":
		c.printf("%s\n", helpText)
	case "exit", "quit":
		return nil, true
	default:
		c.printf("unknown command %q; type 'help'\n", cmd)
	}
	return nil, false
}

func (c *console) field(get func() string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return get()
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "--"
}

func (c *console) printState(s join.State) {
	timer := "off"
	if s.TimerActive {
		timer = countdown.FormatRemaining(s.RemainingSeconds)
	}
	c.printf("name %s | phone %s | code requested %t | timer %s | code %s\n",
		mark(s.NameValid), mark(s.PhoneValid), s.CodeRequested, timer, mark(s.CodeValid))
	c.printf("password: length %s, mixed case %s, digit %s, symbol %s | confirm %s\n",
		mark(s.PasswordChecks[0]), mark(s.PasswordChecks[1]),
		mark(s.PasswordChecks[2]), mark(s.PasswordChecks[3]), mark(s.ConfirmValid))
	c.printf("sign-up %s | loading %s\n", enabled(s.RegistrationEnabled()), s.Loading)
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

// onEvent renders one UI intent.
func (c *console) onEvent(e event.Event) {
	c.logger.Debugw("ui event", "event", e.String())
	switch e.Kind {
	case event.KindNavigateTo, event.KindNavigatePopUpTo:
		c.printf("-> %s\n", e.Destination)
	case event.KindNavigateUp:
		c.printf("-> back\n")
	case event.KindDialog:
		switch e.Dialog {
		case event.DialogConfirm:
			c.printf("[ok] phone number verified\n")
		case event.DialogJwtExpired:
			c.printf("[session expired] %s; please sign in again\n", e.Description)
		default:
			c.printf("[%s] %s\n", strings.ToLower(e.Dialog.String()), e.Description)
		}
	}
}

// watchTimer announces when the code timer runs out.
func (c *console) watchTimer() func(join.State) {
	announced := false
	return func(s join.State) {
		switch {
		case s.TimerActive && s.RemainingSeconds == 0 && !announced:
			announced = true
			c.printf("verification time is up; type 'stop' and request a new code\n")
		case s.RemainingSeconds > 0:
			announced = false
		}
	}
}
