// Package event defines the one-shot UI intents a flow controller hands to
// the presentation layer, and the channel that carries them.
package event

import (
	"errors"
	"fmt"

	"github.com/hana/fieldmate/internal/remote"
)

// Kind tags the Event variant.
type Kind int

const (
	KindNavigateTo Kind = iota
	KindNavigateUp
	KindNavigatePopUpTo
	KindDialog
)

// DialogState names which dialog an event opens or closes.
type DialogState int

const (
	DialogAddEdit DialogState = iota
	DialogConfirm
	DialogDelete
	DialogTimeOut
	DialogPhotoPick
	DialogSelect
	DialogError
	DialogImage
	DialogJwtExpired
)

var dialogNames = [...]string{"AddEdit", "Confirm", "Delete", "TimeOut", "PhotoPick", "Select", "Error", "Image", "JwtExpired"}

func (d DialogState) String() string {
	if d < 0 || int(d) >= len(dialogNames) {
		return fmt.Sprintf("DialogState(%d)", int(d))
	}
	return dialogNames[d]
}

// DialogAction is Open or Close.
type DialogAction int

const (
	Open DialogAction = iota
	Close
)

func (a DialogAction) String() string {
	if a == Close {
		return "Close"
	}
	return "Open"
}

// Screen destinations used by the flows.
const (
	ScreenLogin         = "Login"
	ScreenSelectCompany = "SelectCompany"
)

// Event is a tagged union; only the fields of its Kind are meaningful.
type Event struct {
	Kind Kind

	// NavigateTo, NavigatePopUpTo
	Destination      string
	PopUpDestination string
	Inclusive        bool
	LaunchSingleTop  bool

	// Dialog
	Dialog      DialogState
	Action      DialogAction
	Description string
}

func NavigateTo(destination string) Event {
	return Event{Kind: KindNavigateTo, Destination: destination}
}

func NavigateUp() Event {
	return Event{Kind: KindNavigateUp}
}

func NavigatePopUpTo(destination, popUpDestination string, inclusive, launchSingleTop bool) Event {
	return Event{
		Kind:             KindNavigatePopUpTo,
		Destination:      destination,
		PopUpDestination: popUpDestination,
		Inclusive:        inclusive,
		LaunchSingleTop:  launchSingleTop,
	}
}

func Dialog(state DialogState, action DialogAction, description string) Event {
	return Event{Kind: KindDialog, Dialog: state, Action: action, Description: description}
}

// FromError picks the dialog for a failed operation: an expired session
// routes to re-authentication, anything else is a plain error dialog.
func FromError(err error) Event {
	msg := err.Error()
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	if errors.Is(err, remote.ErrTokenExpired) {
		return Dialog(DialogJwtExpired, Open, msg)
	}
	return Dialog(DialogError, Open, msg)
}

func (e Event) String() string {
	switch e.Kind {
	case KindNavigateTo:
		return "NavigateTo(" + e.Destination + ")"
	case KindNavigateUp:
		return "NavigateUp"
	case KindNavigatePopUpTo:
		return fmt.Sprintf("NavigatePopUpTo(%s, %s, inclusive=%t, singleTop=%t)",
			e.Destination, e.PopUpDestination, e.Inclusive, e.LaunchSingleTop)
	case KindDialog:
		return fmt.Sprintf("Dialog(%s, %s, %q)", e.Dialog, e.Action, e.Description)
	default:
		return fmt.Sprintf("Event(%d)", int(e.Kind))
	}
}
