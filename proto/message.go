package proto

import (
	"encoding/json"
)

// System property keys stamped by the gateway onto outbound messages.
const (
	SysPropTo            = "to"             // routing address, e.g. "/devices/d1/modules/m1"
	SysPropCorrelationID = "correlation-id" // matches a method request to its response
	SysPropInputName     = "input-name"     // target input of a module message
	SysPropStatus        = "status"         // method response status code
)

// Application property keys.
const (
	AppPropMethodName = "method-name"
)

// Message is the envelope exchanged between the cloud side and a device link.
// The gateway stamps individual property keys but never interprets the body.
type Message struct {
	SystemProperties map[string]string `json:"system_properties,omitempty"`
	AppProperties    map[string]string `json:"app_properties,omitempty"`
	Body             json.RawMessage   `json:"body,omitempty"` // raw JSON; schema belongs to the application
}

func (m *Message) SetSystemProperty(key, value string) {
	if m.SystemProperties == nil {
		m.SystemProperties = make(map[string]string)
	}
	m.SystemProperties[key] = value
}

func (m *Message) SystemProperty(key string) string {
	return m.SystemProperties[key]
}

func (m *Message) SetAppProperty(key, value string) {
	if m.AppProperties == nil {
		m.AppProperties = make(map[string]string)
	}
	m.AppProperties[key] = value
}

func (m *Message) AppProperty(key string) string {
	return m.AppProperties[key]
}

// MethodRequest is a direct method invocation targeted at a device or module.
type MethodRequest struct {
	Name          string          `json:"name"`
	CorrelationID string          `json:"correlation_id"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// MethodResponse is the device's answer to a MethodRequest.
type MethodResponse struct {
	Status        int             `json:"status"`
	CorrelationID string          `json:"correlation_id"`
	Body          json.RawMessage `json:"body,omitempty"`
}
