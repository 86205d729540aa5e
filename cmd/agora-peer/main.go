// agora-peer is a minimal example binary that generates a peer
// identity, joins a room, and prints the room link other peers can use
// to join the same room.
//
// Usage:
//
//	agora-peer [options]
//
// Options:
//
//	-room      16 lowercase hex room id (default: freshly generated)
//	-stun      comma-separated STUN server addresses
//	-display   display name announced to other peers
//
// Example:
//
//	agora-peer -stun stun.l.google.com:19302 -display "jess"
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/agora-voice/agora/pkg/identity"
	"github.com/agora-voice/agora/pkg/ice"
	"github.com/agora-voice/agora/pkg/node"
	"github.com/agora-voice/agora/pkg/roomlink"
)

func main() {
	roomFlag := flag.String("room", "", "16 lowercase hex room id (default: freshly generated)")
	stunFlag := flag.String("stun", "", "comma-separated STUN server addresses")
	displayFlag := flag.String("display", "", "display name announced to other peers")
	flag.Parse()

	id, err := identity.Generate()
	if err != nil {
		log.Fatalf("failed to generate identity: %v", err)
	}
	if *displayFlag != "" {
		id.SetDisplayName(*displayFlag)
	}

	var stunServers []string
	if *stunFlag != "" {
		stunServers = strings.Split(*stunFlag, ",")
	}

	n := node.New(node.Config{
		Identity: id,
		ICEConfig: ice.Config{
			StunServers: stunServers,
		},
	})

	roomID := *roomFlag
	if roomID == "" {
		roomID, err = randomRoomID()
		if err != nil {
			log.Fatalf("failed to generate room id: %v", err)
		}
	}

	if err := n.JoinRoom(roomID, nil, time.Now()); err != nil {
		log.Fatalf("failed to join room: %v", err)
	}

	link := roomlink.Link{RoomID: roomID}
	fmt.Printf("peer id:  %s\n", n.PeerID())
	fmt.Printf("room id:  %s\n", roomID)
	fmt.Printf("share:    %s\n", link.String())
}

func randomRoomID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
