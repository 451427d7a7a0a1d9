package proto

import "encoding/json"

// Version is the only JSON-RPC version accepted and emitted.
const Version = "2.0"

const (
	MethodSendMessage = "send_message"
	MethodGetMessages = "get_messages"
)

// JSON-RPC error codes. The -320xx range carries domain faults.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602

	CodeValidation   = -32001
	CodeStoreFailure = -32002
)

// Fault names carried in Error.Data.
const (
	FaultValidation     = "ValidationError"
	FaultTransientStore = "TransientStoreError"
	FaultProtocol       = "ProtocolError"
)

// Request is the envelope for calls coming from the client.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is the envelope for results sent to the client.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error describes a protocol-level fault.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData names the fault so clients can branch without parsing messages.
type ErrorData struct {
	Fault string `json:"fault"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return e.Data.Fault + ": " + e.Message
	}
	return e.Message
}

// NewFault builds an Error carrying a fault name.
func NewFault(code int, fault, msg string) *Error {
	return &Error{Code: code, Message: msg, Data: &ErrorData{Fault: fault}}
}

// Fault returns the fault name of e, or "" when none is set.
func (e *Error) Fault() string {
	if e == nil || e.Data == nil {
		return ""
	}
	return e.Data.Fault
}

// SendMessageParams are the named parameters of send_message.
type SendMessageParams struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Room     string `json:"room,omitempty"`
}

// GetMessagesParams are the named parameters of get_messages.
// LastID also accepts the since_id spelling on the wire.
type GetMessagesParams struct {
	LastID int64  `json:"last_id"`
	Room   string `json:"room,omitempty"`
}

// SendMessageResult is returned by the REST facade for a posted message.
type SendMessageResult struct {
	ID int64 `json:"id"`
}

// Message is a chat message as seen on the wire.
type Message struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}
