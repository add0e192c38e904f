// Package domain contains entity without logic, just meta-data.
package domain

import "errors"

var ErrIDEmpty = errors.New("id empty")

type (
	UserID string
	RoomID string
)

// Ids are opaque: the server assigns their shape, the client only
// requires them to be non-empty.
func (id UserID) Validate() error { return validateID(string(id)) }
func (id RoomID) Validate() error { return validateID(string(id)) }

func validateID(raw string) error {
	if len(raw) == 0 {
		return ErrIDEmpty
	}
	return nil
}

// Peer is the local view of a remote participant's meta state.
type Peer struct {
	ID    UserID `json:"id"`
	MicOn bool   `json:"micOn"`
}

// NewPeer avoids raw literals in adapters and keeps construction obvious.
// Remote participants start muted until a mic-toggle notice says otherwise.
func NewPeer(id UserID) *Peer {
	return &Peer{ID: id}
}
