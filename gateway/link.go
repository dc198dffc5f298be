package gateway

import (
	"context"

	"github.com/mbocsi/edgehub/proto"
)

// LinkRole identifies the purpose of a link within a connection. A connection
// holds at most one link per role.
type LinkRole string

const (
	RoleCloudToDevice   LinkRole = "cloud-to-device"
	RoleModuleMessages  LinkRole = "module-messages"
	RoleMethodSending   LinkRole = "method-sending"
	RoleMethodReceiving LinkRole = "method-receiving"
	RoleTwinSending     LinkRole = "twin-sending"
	RoleTwinReceiving   LinkRole = "twin-receiving"
)

// linkPairs declares which roles must agree on their correlation token.
var linkPairs = map[LinkRole]LinkRole{
	RoleMethodSending:   RoleMethodReceiving,
	RoleMethodReceiving: RoleMethodSending,
	RoleTwinSending:     RoleTwinReceiving,
	RoleTwinReceiving:   RoleTwinSending,
}

// sendingRoles are the roles the gateway forwards messages on. Receiving
// roles only carry device-to-cloud traffic.
var sendingRoles = map[LinkRole]struct{}{
	RoleCloudToDevice:  {},
	RoleModuleMessages: {},
	RoleMethodSending:  {},
	RoleTwinSending:    {},
}

func (r LinkRole) Valid() bool {
	switch r {
	case RoleCloudToDevice, RoleModuleMessages, RoleMethodSending,
		RoleMethodReceiving, RoleTwinSending, RoleTwinReceiving:
		return true
	}
	return false
}

// Pair returns the role this role must share a correlation token with, if any.
func (r LinkRole) Pair() (LinkRole, bool) {
	pair, ok := linkPairs[r]
	return pair, ok
}

func (r LinkRole) CanSend() bool {
	_, ok := sendingRoles[r]
	return ok
}

// Link is one open protocol link on a connection. The registry owns a link
// while it is registered; ownership moves to the close sequence on removal.
type Link interface {
	Role() LinkRole
	CorrelationToken() string
	Close(ctx context.Context) error
}

// SenderLink is a Link for a send-capable role.
type SenderLink interface {
	Link
	Send(msg *proto.Message) error
}
