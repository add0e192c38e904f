package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/arezvov/voicemesh/internal/domain"
)

type MessageType string

const (
	TypeJoinRoom      MessageType = "join-room"
	TypeLeaveRoom     MessageType = "leave-room"
	TypeUserJoined    MessageType = "user-joined"
	TypeUserLeft      MessageType = "user-left"
	TypeMicToggle     MessageType = "mic-toggle"
	TypeUserMicToggle MessageType = "user-mic-toggle"
	TypeOffer         MessageType = "webrtc-offer"
	TypeAnswer        MessageType = "webrtc-answer"
	TypeCandidate     MessageType = "webrtc-ice-candidate"
)

// SDP is the JSON-friendly shape of an offer/answer description.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func SDPFromPion(desc webrtc.SessionDescription) *SDP {
	return &SDP{Type: desc.Type.String(), SDP: desc.SDP}
}

func (s *SDP) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch s.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", s.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}, nil
}

type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) *Candidate {
	return &Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c *Candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// Envelope is the single wire shape for every signaling message. The
// Type discriminator decides which of the optional fields are set.
// TargetUserID addresses outbound peer-to-peer relays; the server
// rewrites it to FromUserID on delivery.
type Envelope struct {
	Type MessageType `json:"type"`

	RoomID       domain.RoomID `json:"roomId,omitempty"`
	UserID       domain.UserID `json:"userId,omitempty"`
	TargetUserID domain.UserID `json:"targetUserId,omitempty"`
	FromUserID   domain.UserID `json:"fromUserId,omitempty"`

	IsMicOn *bool `json:"isMicOn,omitempty"`

	Offer     *SDP       `json:"offer,omitempty"`
	Answer    *SDP       `json:"answer,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

func JoinRoom(room domain.RoomID, user domain.UserID) Envelope {
	return Envelope{Type: TypeJoinRoom, RoomID: room, UserID: user}
}

func LeaveRoom(room domain.RoomID, user domain.UserID) Envelope {
	return Envelope{Type: TypeLeaveRoom, RoomID: room, UserID: user}
}

func MicToggle(on bool) Envelope {
	return Envelope{Type: TypeMicToggle, IsMicOn: &on}
}

func Offer(target domain.UserID, desc webrtc.SessionDescription) Envelope {
	return Envelope{Type: TypeOffer, TargetUserID: target, Offer: SDPFromPion(desc)}
}

func Answer(target domain.UserID, desc webrtc.SessionDescription) Envelope {
	return Envelope{Type: TypeAnswer, TargetUserID: target, Answer: SDPFromPion(desc)}
}

func ICECandidate(target domain.UserID, init webrtc.ICECandidateInit) Envelope {
	return Envelope{Type: TypeCandidate, TargetUserID: target, Candidate: CandidateFromPion(init)}
}

// Parse decodes and validates one inbound signaling message.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("bad signaling json: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	switch e.Type {
	case TypeJoinRoom, TypeLeaveRoom:
		if e.RoomID == "" || e.UserID == "" {
			return fmt.Errorf("%s message missing roomId/userId", e.Type)
		}
	case TypeUserJoined, TypeUserLeft:
		if e.UserID == "" {
			return fmt.Errorf("%s message missing userId", e.Type)
		}
	case TypeMicToggle:
		if e.IsMicOn == nil {
			return fmt.Errorf("mic-toggle message missing isMicOn")
		}
	case TypeUserMicToggle:
		if e.UserID == "" || e.IsMicOn == nil {
			return fmt.Errorf("user-mic-toggle message missing userId/isMicOn")
		}
	case TypeOffer:
		if e.Offer == nil {
			return fmt.Errorf("offer message missing offer")
		}
		if e.TargetUserID == "" && e.FromUserID == "" {
			return fmt.Errorf("offer message missing addressing")
		}
	case TypeAnswer:
		if e.Answer == nil {
			return fmt.Errorf("answer message missing answer")
		}
		if e.TargetUserID == "" && e.FromUserID == "" {
			return fmt.Errorf("answer message missing addressing")
		}
	case TypeCandidate:
		if e.Candidate == nil {
			return fmt.Errorf("candidate message missing candidate")
		}
		if e.TargetUserID == "" && e.FromUserID == "" {
			return fmt.Errorf("candidate message missing addressing")
		}
	default:
		return fmt.Errorf("unsupported message type %q", e.Type)
	}
	return nil
}
