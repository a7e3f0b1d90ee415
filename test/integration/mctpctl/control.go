// Package mctpctl is a test-only, minimal stand-in for the DSP0236
// Control message type (0x00). It encodes and decodes just enough of the
// Set Endpoint ID and Get Endpoint ID command/response pairs to drive
// those two literal scenarios end to end through the real pipeline; it
// does not attempt the full Control command set, which is out of scope
// for the transport core itself.
package mctpctl

import "fmt"

// MessageType is the MCTP control message type byte.
const MessageType = 0x00

// Command codes this package understands.
const (
	CmdSetEndpointID = 0x01
	CmdGetEndpointID = 0x02
)

// Completion codes.
const (
	CompletionSuccess = 0x00
)

// Set Endpoint ID operations (byte 2 of the request).
const (
	SetEIDOperationSet   = 0x00
	SetEIDOperationForce = 0x01
)

// SetEndpointIDRequest asks the peer to assign itself eid.
type SetEndpointIDRequest struct {
	InstanceID uint8
	Operation  uint8
	EID        uint8
}

// Encode produces the request body, instance ID and command byte
// included, ready to hand to Pipeline.Submit as the message body.
func (r SetEndpointIDRequest) Encode() []byte {
	return []byte{r.InstanceID & 0x1F, CmdSetEndpointID, r.Operation, r.EID}
}

// DecodeSetEndpointIDRequest parses a request body produced by Encode.
func DecodeSetEndpointIDRequest(body []byte) (SetEndpointIDRequest, error) {
	if len(body) < 4 {
		return SetEndpointIDRequest{}, fmt.Errorf("mctpctl: set endpoint id request too short: %d bytes", len(body))
	}
	if body[1] != CmdSetEndpointID {
		return SetEndpointIDRequest{}, fmt.Errorf("mctpctl: command code %#x is not Set Endpoint ID", body[1])
	}
	return SetEndpointIDRequest{InstanceID: body[0] & 0x1F, Operation: body[2], EID: body[3]}, nil
}

// SetEndpointIDResponse reports the EID the peer actually assigned.
type SetEndpointIDResponse struct {
	InstanceID     uint8
	CompletionCode uint8
	AssignedEID    uint8
	EIDPoolSize    uint8
}

// Encode produces the response body.
func (r SetEndpointIDResponse) Encode() []byte {
	return []byte{r.InstanceID & 0x1F, CmdSetEndpointID, r.CompletionCode, r.AssignedEID, r.EIDPoolSize}
}

// DecodeSetEndpointIDResponse parses a response body produced by Encode.
func DecodeSetEndpointIDResponse(body []byte) (SetEndpointIDResponse, error) {
	if len(body) < 5 {
		return SetEndpointIDResponse{}, fmt.Errorf("mctpctl: set endpoint id response too short: %d bytes", len(body))
	}
	if body[1] != CmdSetEndpointID {
		return SetEndpointIDResponse{}, fmt.Errorf("mctpctl: command code %#x is not Set Endpoint ID", body[1])
	}
	return SetEndpointIDResponse{
		InstanceID:     body[0] & 0x1F,
		CompletionCode: body[2],
		AssignedEID:    body[3],
		EIDPoolSize:    body[4],
	}, nil
}

// GetEndpointIDRequest has no command-specific fields beyond the header.
type GetEndpointIDRequest struct {
	InstanceID uint8
}

// Encode produces the request body.
func (r GetEndpointIDRequest) Encode() []byte {
	return []byte{r.InstanceID & 0x1F, CmdGetEndpointID}
}

// DecodeGetEndpointIDRequest parses a request body produced by Encode.
func DecodeGetEndpointIDRequest(body []byte) (GetEndpointIDRequest, error) {
	if len(body) < 2 {
		return GetEndpointIDRequest{}, fmt.Errorf("mctpctl: get endpoint id request too short: %d bytes", len(body))
	}
	if body[1] != CmdGetEndpointID {
		return GetEndpointIDRequest{}, fmt.Errorf("mctpctl: command code %#x is not Get Endpoint ID", body[1])
	}
	return GetEndpointIDRequest{InstanceID: body[0] & 0x1F}, nil
}

// GetEndpointIDResponse reports the peer's current EID.
type GetEndpointIDResponse struct {
	InstanceID     uint8
	CompletionCode uint8
	EID            uint8
	EndpointType   uint8
}

// Encode produces the response body.
func (r GetEndpointIDResponse) Encode() []byte {
	return []byte{r.InstanceID & 0x1F, CmdGetEndpointID, r.CompletionCode, r.EID, r.EndpointType}
}

// DecodeGetEndpointIDResponse parses a response body produced by Encode.
func DecodeGetEndpointIDResponse(body []byte) (GetEndpointIDResponse, error) {
	if len(body) < 5 {
		return GetEndpointIDResponse{}, fmt.Errorf("mctpctl: get endpoint id response too short: %d bytes", len(body))
	}
	if body[1] != CmdGetEndpointID {
		return GetEndpointIDResponse{}, fmt.Errorf("mctpctl: command code %#x is not Get Endpoint ID", body[1])
	}
	return GetEndpointIDResponse{
		InstanceID:     body[0] & 0x1F,
		CompletionCode: body[2],
		EID:            body[3],
		EndpointType:   body[4],
	}, nil
}
