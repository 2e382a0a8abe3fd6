package repositories

import "hidden-talk/domain"

// Keys builds the store keys of a room.
// Each room owns exactly three keys and they all share the room's lifetime:
//
//	{prefix}meta:{roomId}          room metadata, carries the lifetime window
//	{prefix}messages:{roomId}      ordered message history
//	{prefix}participants:{roomId}  ordered participant ids
type Keys struct {
	prefix string
}

func NewKeys(prefix string) Keys {
	return Keys{prefix: prefix}
}

func (k Keys) Meta(roomID domain.RoomID) string {
	return k.prefix + "meta:" + roomID.String()
}

func (k Keys) Messages(roomID domain.RoomID) string {
	return k.prefix + "messages:" + roomID.String()
}

func (k Keys) Participants(roomID domain.RoomID) string {
	return k.prefix + "participants:" + roomID.String()
}
