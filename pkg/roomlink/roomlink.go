// Package roomlink parses the agora:// invitation URLs peers share out
// of band to join a room.
package roomlink

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const scheme = "agora://room/"

var roomIDPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

var (
	ErrBadScheme = errors.New("roomlink: missing agora://room/ prefix")
	ErrBadRoomID = errors.New("roomlink: room id must be 16 lowercase hex characters")
)

// Link is a parsed room invitation.
type Link struct {
	RoomID   string
	Password string
	HasPassword bool
}

// Parse accepts "agora://room/<room_id>[?p=<url_encoded_password>]".
func Parse(raw string) (Link, error) {
	if !strings.HasPrefix(raw, scheme) {
		return Link{}, ErrBadScheme
	}
	rest := strings.TrimPrefix(raw, scheme)

	roomID := rest
	var password string
	var hasPassword bool

	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		roomID = rest[:idx]
		query := rest[idx+1:]
		if strings.HasPrefix(query, "p=") {
			decoded, err := url.QueryUnescape(strings.TrimPrefix(query, "p="))
			if err != nil {
				return Link{}, fmt.Errorf("roomlink: invalid password encoding: %w", err)
			}
			password = decoded
			hasPassword = true
		}
	}

	if !roomIDPattern.MatchString(roomID) {
		return Link{}, ErrBadRoomID
	}

	return Link{RoomID: roomID, Password: password, HasPassword: hasPassword}, nil
}

// String renders the Link back to its agora:// form.
func (l Link) String() string {
	s := scheme + l.RoomID
	if l.HasPassword {
		s += "?p=" + url.QueryEscape(l.Password)
	}
	return s
}
