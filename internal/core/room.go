package core

import "strings"

// Room is a logical partition of the message stream.
type Room string

const (
	RoomPublic   Room = "public"
	RoomFounders Room = "founders"
)

// DefaultRoom is used when a caller omits the room.
const DefaultRoom = RoomPublic

var allowedRooms = map[Room]struct{}{
	RoomPublic:   {},
	RoomFounders: {},
}

// Rooms lists the rooms messages may be posted to.
func Rooms() []Room {
	return []Room{RoomPublic, RoomFounders}
}

// NormalizeRoom trims and lower-cases name, falling back to DefaultRoom when empty.
// It does not check membership in the allowed set.
func NormalizeRoom(name string) Room {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultRoom
	}
	return Room(name)
}

// ParseRoom normalizes name and rejects rooms outside the allowed set.
func ParseRoom(name string) (Room, error) {
	room := NormalizeRoom(name)
	if _, ok := allowedRooms[room]; !ok {
		return "", validationError(ErrInvalidRoom)
	}
	return room, nil
}
