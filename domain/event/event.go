package event

import (
	"encoding/json"
	"fmt"
	"hidden-talk/domain"
	"time"

	"github.com/google/uuid"
)

type Name string

const (
	MessagePostedName Name = "chat.message"
	RoomDestroyedName Name = "chat.destroy"
)

// DomainEvent is what travels on a room's fan-out channel.
type DomainEvent interface {
	RoomID() domain.RoomID
	Name() Name
}

// MessagePosted never carries the owner credential.
type MessagePosted struct {
	ID        uuid.UUID `json:"id"`
	Room      string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp int64     `json:"timestamp"`
}

func (m MessagePosted) RoomID() domain.RoomID { return domain.RoomID(m.Room) }
func (m MessagePosted) Name() Name            { return MessagePostedName }

func NewMessagePosted(message domain.Message) MessagePosted {
	return MessagePosted{
		ID:        message.ID,
		Room:      message.RoomID.String(),
		Sender:    message.Sender,
		Text:      message.Text,
		Timestamp: message.Timestamp.UnixMilli(),
	}
}

type RoomDestroyed struct {
	Room        string `json:"-"`
	IsDestroyed bool   `json:"isDestroyed"`
}

func (r RoomDestroyed) RoomID() domain.RoomID { return domain.RoomID(r.Room) }
func (r RoomDestroyed) Name() Name            { return RoomDestroyedName }

func NewRoomDestroyed(roomID domain.RoomID) RoomDestroyed {
	return RoomDestroyed{Room: roomID.String(), IsDestroyed: true}
}

// Envelope is the wire shape shared by the fan-out channel and websocket clients.
type Envelope struct {
	Event Name            `json:"event"`
	Room  string          `json:"roomId"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data"`
}

func Encode(e DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Name(), Room: e.RoomID().String(), At: time.Now().UTC(), Data: data})
}

func Decode(payload []byte) (DomainEvent, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	switch envelope.Event {
	case MessagePostedName:
		var m MessagePosted
		if err := json.Unmarshal(envelope.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case RoomDestroyedName:
		var r RoomDestroyed
		if err := json.Unmarshal(envelope.Data, &r); err != nil {
			return nil, err
		}
		r.Room = envelope.Room
		return r, nil
	default:
		return nil, fmt.Errorf("unknown event %q", envelope.Event)
	}
}
