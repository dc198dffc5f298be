package proto

// Frame ops a device may send over a transport connection.
const (
	FrameOpen     = "open"     // announces the connection's identity; must precede everything else
	FrameAttach   = "attach"   // opens a link for a role on this connection
	FrameDetach   = "detach"   // closes the link for a role
	FrameTransfer = "transfer" // carries a message on an attached link
)

// Frame is the wire unit exchanged with a device. One physical connection
// carries many frames multiplexing all of its links.
type Frame struct {
	Op          string   `json:"op"`
	DeviceID    string   `json:"device_id,omitempty"`   // open only
	ModuleID    string   `json:"module_id,omitempty"`   // open only, empty for plain devices
	Role        string   `json:"role,omitempty"`        // attach, detach, transfer
	Correlation string   `json:"correlation,omitempty"` // attach only; generated when omitted
	Message     *Message `json:"message,omitempty"`     // transfer only
}
