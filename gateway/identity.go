package gateway

import "net/url"

// Identity names the device or module a connection belongs to. It is a value
// type fixed at connection-open time and never changed afterwards.
type Identity struct {
	DeviceID string
	ModuleID string // empty for plain devices
}

func (id Identity) IsModule() bool {
	return id.ModuleID != ""
}

// Address renders the routing address stamped onto outbound messages. Both
// path segments are percent-encoded so ids containing '/' or spaces cannot
// break the path structure.
func (id Identity) Address() string {
	if id.IsModule() {
		return "/devices/" + url.PathEscape(id.DeviceID) + "/modules/" + url.PathEscape(id.ModuleID)
	}
	return "/devices/" + url.PathEscape(id.DeviceID)
}

func (id Identity) String() string {
	if id.IsModule() {
		return id.DeviceID + "/" + id.ModuleID
	}
	return id.DeviceID
}
