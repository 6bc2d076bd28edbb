// Package sapgui holds the SAP GUI scripting conventions the step language relies on:
// element id completion and virtual key numbers.
package sapgui

import (
	"fmt"
	"strings"
)

// Locator completes partial element ids against the current connection, session and
// window numbers.
type Locator struct {
	Connection int
	Session    int
	Window     int
}

// BaseID is the id of the active main window.
func (l Locator) BaseID() string {
	return fmt.Sprintf("/app/con[%d]/ses[%d]/wnd[%d]", l.Connection, l.Session, l.Window)
}

func (l Locator) sessionID() string {
	return fmt.Sprintf("/app/con[%d]/ses[%d]", l.Connection, l.Session)
}

func (l Locator) connectionID() string {
	return fmt.Sprintf("/app/con[%d]", l.Connection)
}

// Complete turns a partial id such as "usr/txtFIELD" or "wnd[1]/tbar[0]" into a full
// scripting id. Ids that match no known prefix are returned unchanged.
func (l Locator) Complete(id string) string {
	switch {
	case strings.TrimSpace(id) == "":
		return l.BaseID()
	case strings.HasPrefix(id, "usr"):
		return l.BaseID() + "/" + id
	case strings.HasPrefix(id, "/usr"):
		return l.BaseID() + id
	case strings.HasPrefix(id, "wnd"):
		return l.sessionID() + "/" + id
	case strings.HasPrefix(id, "/wnd"):
		return l.sessionID() + id
	case strings.HasPrefix(id, "ses"):
		return l.connectionID() + "/" + id
	case strings.HasPrefix(id, "/ses"):
		return l.connectionID() + id
	case strings.HasPrefix(id, "con"):
		return "/app/" + id
	case strings.HasPrefix(id, "/con"):
		return "/app" + id
	case strings.HasPrefix(id, "app"):
		return "/" + id
	default:
		return id
	}
}
