package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tnapier/go-huddle/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join       *Join       `json:"join,omitempty"`
	Signal     *Signal     `json:"signal,omitempty"`
	Chat       *Chat       `json:"chat,omitempty"`
	FileNotice *FileNotice `json:"file_notice,omitempty"`
	PollCreate *PollCreate `json:"poll_create,omitempty"`
	PollVote   *PollVote   `json:"poll_vote,omitempty"`
	client     *Client
}

type Join struct {
	RoomId string `json:"room_id"`
}

// Signal carries a connection-negotiation fragment for one target
// session. The payload is never inspected by the server.
type Signal struct {
	TargetId string          `json:"target_id"`
	Payload  json.RawMessage `json:"payload"`
}

type Chat struct {
	RoomId  string `json:"room_id"`
	Content string `json:"content"`
}

type FileNotice struct {
	RoomId       string `json:"room_id"`
	FileUrl      string `json:"file_url"`
	OriginalName string `json:"original_name"`
}

type PollCreate struct {
	RoomId   string   `json:"room_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type PollVote struct {
	RoomId      string `json:"room_id"`
	PollId      string `json:"poll_id"`
	OptionIndex int    `json:"option_index"`
}

type ServerMessage struct {
	BaseMessage
	Response    *Response        `json:"response,omitempty"`
	Peers       *Peers           `json:"peers,omitempty"`
	PeerJoined  *PeerPresence    `json:"peer_joined,omitempty"`
	PeerLeft    *PeerPresence    `json:"peer_left,omitempty"`
	Signal      *SignalEvent     `json:"signal,omitempty"`
	Chat        *ChatEvent       `json:"chat,omitempty"`
	FileNotice  *FileNoticeEvent `json:"file_notice,omitempty"`
	PollCreated *types.Poll      `json:"poll_created,omitempty"`
	PollResults *PollResults     `json:"poll_results,omitempty"`
	SkipClient  *Client          `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

// Peers is the reply to a successful join: the sessions already in the
// room, excluding the joiner itself.
type Peers struct {
	RoomId     string   `json:"room_id"`
	SessionIds []string `json:"session_ids"`
}

type PeerPresence struct {
	RoomId    string `json:"room_id"`
	SessionId string `json:"session_id"`
	Name      string `json:"name,omitempty"`
}

type SignalEvent struct {
	FromId  string          `json:"from_id"`
	Payload json.RawMessage `json:"payload"`
}

type ChatEvent struct {
	SessionId string `json:"session_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
}

type FileNoticeEvent struct {
	SessionId    string `json:"session_id"`
	Name         string `json:"name"`
	FileUrl      string `json:"file_url"`
	OriginalName string `json:"original_name"`
}

type PollResults struct {
	PollId string `json:"poll_id"`
	Counts []int  `json:"counts"`
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrNotAuthorized(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "you are not invited to this room",
		},
	}
}

func ErrAlreadyJoined(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "already joined a room",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
