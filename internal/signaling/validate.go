package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mossy-p/stranger-signaling/internal/models"
	"github.com/pion/webrtc/v4"
)

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownType     = errors.New("unknown message type")
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateSDP checks that raw holds a session description of the kind the
// envelope claims. Browsers send either the RTCSessionDescription object or
// the bare SDP string.
func ValidateSDP(msgType models.MessageType, raw json.RawMessage) error {
	want := webrtc.SDPTypeOffer
	if msgType == models.TypeAnswer {
		want = webrtc.SDPTypeAnswer
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing sdp", ErrInvalidPayload)
	}

	var desc webrtc.SessionDescription
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &desc.SDP); err != nil {
			return fmt.Errorf("%w: sdp: %v", ErrInvalidPayload, err)
		}
		desc.Type = want
	} else if err := json.Unmarshal(raw, &desc); err != nil {
		return fmt.Errorf("%w: sdp: %v", ErrInvalidPayload, err)
	}

	switch {
	case desc.Type == want:
	case want == webrtc.SDPTypeAnswer && desc.Type == webrtc.SDPTypePranswer:
	default:
		return fmt.Errorf("%w: %s carries sdp of type %s", ErrInvalidPayload, msgType, desc.Type)
	}
	if _, err := desc.Unmarshal(); err != nil {
		return fmt.Errorf("%w: sdp: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ValidateCandidate checks that raw decodes as an RTCIceCandidateInit. An
// empty candidate string signals end of candidates and is allowed.
func ValidateCandidate(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing candidate", ErrInvalidPayload)
	}

	var init webrtc.ICECandidateInit
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &init.Candidate); err != nil {
			return fmt.Errorf("%w: candidate: %v", ErrInvalidPayload, err)
		}
	} else if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("%w: candidate: %v", ErrInvalidPayload, err)
	}

	cand := strings.TrimPrefix(strings.TrimSpace(init.Candidate), "a=")
	if cand != "" && !strings.HasPrefix(cand, "candidate:") {
		return fmt.Errorf("%w: malformed candidate %q", ErrInvalidPayload, init.Candidate)
	}
	return nil
}
