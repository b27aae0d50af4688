// Package wiremsg is the hand-authored gRPC service contract for the
// C7 (elasticity client) <-> C8 (control-plane endpoint) boundary.
// No protoc toolchain is run in this exercise, and a hand-authored
// protobuf wire descriptor would be unreliable to get byte-correct
// without one, so the contract uses grpc-go's pluggable codec
// extension point (google.golang.org/grpc/encoding) with a JSON codec
// instead of generated protobuf messages — see DESIGN.md.
package wiremsg

// ActionRequest is the single RPC request spec.md's gRPC service
// defines: member/name/action are plain strings, payload is a
// UTF-8 JSON object (here carried as its already-serialized string
// form, matching spec.md's "payload = UTF-8 JSON object").
type ActionRequest struct {
	Member  string `json:"member"`
	Name    string `json:"name"`
	Action  string `json:"action"`
	Payload string `json:"payload"`
}

// Response is the RPC reply.
type Response struct {
	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`
}

// Status values spec.md's RequestAction contract allows.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// ResizePayload is the JSON shape C4's grow/shrink doResize builds and
// C8 parses (spec §4.4/§4.7): version+group identify the target,
// exactly one of Grow/Shrink carries the requested magnitude.
type ResizePayload struct {
	Version string `json:"version"`
	Group   string `json:"group"`
	Grow    *int   `json:"grow,omitempty"`
	Shrink  *int   `json:"shrink,omitempty"`
}

// ResizeResponsePayload is C8's additive reply detail (SUPPLEMENTED
// FEATURES: "structured reasons on resize responses") carried inside
// Response.Payload as JSON, alongside the bare SUCCESS/ERROR status
// spec.md requires.
type ResizeResponsePayload struct {
	Size   int    `json:"size"`
	Clamped bool  `json:"clamped"`
	Reason string `json:"reason,omitempty"`
}
