package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/tnapier/go-huddle/internal/database"
	"github.com/tnapier/go-huddle/internal/stats"
	"github.com/tnapier/go-huddle/internal/types"
)

const (
	StatActiveSessions  = "ActiveSessions"
	StatActiveRooms     = "ActiveRooms"
	StatSignalsRelayed  = "SignalsRelayed"
	StatEventsBroadcast = "EventsBroadcast"
)

// result is the named outcome of one inbound event. Silent drops are
// deliberate (an unbound session probing a room learns nothing), so
// they get their own value instead of an implicit fallthrough.
type result int

const (
	resultOK result = iota
	resultIgnored
	resultRejected
	resultError
)

// SignalServer is the sole owner of the live session index and the
// room membership table. Both are mutated only inside Run, which
// consumes every inbound event as one non-overlapping unit of work.
type SignalServer struct {
	log            *log.Logger
	db             database.HuddleRepository
	stats          stats.StatsProvider
	sessions       map[string]*Client
	rooms          map[string]map[string]*Client
	RegisterChan   chan *Client
	DeregisterChan chan *Client
	eventChan      chan *ClientMessage
	stop           chan struct{}
	done           chan struct{}
}

func NewSignalServer(logger *log.Logger, db database.HuddleRepository, sp stats.StatsProvider) (*SignalServer, error) {
	ss := &SignalServer{
		log:            logger,
		db:             db,
		stats:          sp,
		sessions:       make(map[string]*Client),
		rooms:          make(map[string]map[string]*Client),
		RegisterChan:   make(chan *Client),
		DeregisterChan: make(chan *Client, 256),
		eventChan:      make(chan *ClientMessage, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	sp.RegisterMetric(StatActiveSessions)
	sp.RegisterMetric(StatActiveRooms)
	sp.RegisterMetric(StatSignalsRelayed)
	sp.RegisterMetric(StatEventsBroadcast)

	return ss, nil
}

func (ss *SignalServer) RegisterClient(c *Client) {
	ss.RegisterChan <- c
}

func (ss *SignalServer) Run() {
	for {
		select {
		case c := <-ss.RegisterChan:
			ss.log.Printf("registering session %s for %q", c.id, c.user.Name)
			ss.sessions[c.id] = c
			ss.stats.Incr(StatActiveSessions)
		case c := <-ss.DeregisterChan:
			ss.handleDisconnect(c)
		case msg := <-ss.eventChan:
			ss.handleEvent(msg)
		case <-ss.stop:
			ss.log.Println("stopping signal server")
			for _, c := range ss.sessions {
				c.stopClient()
			}

			close(ss.done)
			return
		}
	}
}

func (ss *SignalServer) handleEvent(msg *ClientMessage) {
	// The loop may consume a deregistration before events the same
	// session queued earlier. Anything arriving from a session no
	// longer in the index is dropped, or a join would re-admit a dead
	// session into a membership set nothing will ever clean up.
	if _, ok := ss.sessions[msg.client.id]; !ok {
		ss.log.Printf("dropping event from deregistered session %s", msg.client.id)
		return
	}

	var res result
	switch {
	case msg.Join != nil:
		res = ss.handleJoin(msg)
	case msg.Signal != nil:
		res = ss.handleSignal(msg)
	case msg.Chat != nil:
		res = ss.handleChat(msg)
	case msg.FileNotice != nil:
		res = ss.handleFileNotice(msg)
	case msg.PollCreate != nil:
		res = ss.handlePollCreate(msg)
	case msg.PollVote != nil:
		res = ss.handlePollVote(msg)
	default:
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		res = resultRejected
	}

	if res == resultIgnored {
		ss.log.Printf("ignored event from session %s", msg.client.id)
	}
}

// handleJoin admits a session into a room. The peers reply reflects
// membership as of just before the joiner's own insertion; the
// peer-joined broadcast happens only after the insertion is committed,
// so a notified peer's signaling attempt always finds the joiner
// registered.
func (ss *SignalServer) handleJoin(msg *ClientMessage) result {
	c := msg.client

	if c.roomID != "" {
		c.queueMessage(ErrAlreadyJoined(msg.Id))
		return resultRejected
	}

	room, err := ss.db.GetRoomById(msg.Join.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(ErrRoomNotFound(msg.Id))
			return resultRejected
		}
		ss.log.Println("GetRoomById:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return resultError
	}

	if room.OwnerId != c.user.Id {
		invited, err := ss.db.IsInvited(room.Id, c.user.EmailAddress)
		if err != nil {
			ss.log.Println("IsInvited:", err)
			c.queueMessage(ErrInternalError(msg.Id))
			return resultError
		}
		if !invited {
			c.queueMessage(ErrNotAuthorized(msg.Id))
			return resultRejected
		}
	}

	members := ss.rooms[room.Id]
	peerIds := make([]string, 0, len(members))
	for id := range members {
		peerIds = append(peerIds, id)
	}

	if members == nil {
		members = make(map[string]*Client)
		ss.rooms[room.Id] = members
		ss.stats.Incr(StatActiveRooms)
	}
	members[c.id] = c
	c.roomID = room.Id

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: Now(),
		},
		Peers: &Peers{
			RoomId:     room.Id,
			SessionIds: peerIds,
		},
	})

	ss.broadcast(room.Id, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		PeerJoined: &PeerPresence{
			RoomId:    room.Id,
			SessionId: c.id,
			Name:      c.user.Name,
		},
		SkipClient: c,
	})

	return resultOK
}

// handleDisconnect runs exactly once per session: the session index
// entry is the guard against a second pass.
func (ss *SignalServer) handleDisconnect(c *Client) {
	if _, ok := ss.sessions[c.id]; !ok {
		return
	}

	ss.log.Printf("removing session %s for %q", c.id, c.user.Name)
	delete(ss.sessions, c.id)
	ss.stats.Decr(StatActiveSessions)

	if c.roomID == "" {
		return
	}

	roomId := c.roomID
	c.roomID = ""

	members, ok := ss.rooms[roomId]
	if !ok {
		return
	}

	delete(members, c.id)
	if len(members) == 0 {
		delete(ss.rooms, roomId)
		ss.stats.Decr(StatActiveRooms)
		return
	}

	ss.broadcast(roomId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		PeerLeft: &PeerPresence{
			RoomId:    roomId,
			SessionId: c.id,
			Name:      c.user.Name,
		},
	})
}

// handleSignal delivers an opaque payload to exactly one target
// session, tagged with the sender's id. A vanished target is a no-op,
// indistinguishable from a recipient that already left.
func (ss *SignalServer) handleSignal(msg *ClientMessage) result {
	c := msg.client
	if c.roomID == "" {
		return resultIgnored
	}

	target, ok := ss.sessions[msg.Signal.TargetId]
	if !ok {
		return resultOK
	}

	target.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		Signal: &SignalEvent{
			FromId:  c.id,
			Payload: msg.Signal.Payload,
		},
	})
	ss.stats.Incr(StatSignalsRelayed)

	return resultOK
}

func (ss *SignalServer) handleChat(msg *ClientMessage) result {
	c := msg.client
	if c.roomID == "" || c.roomID != msg.Chat.RoomId {
		return resultIgnored
	}

	ss.broadcast(msg.Chat.RoomId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		Chat: &ChatEvent{
			SessionId: c.id,
			Name:      c.user.Name,
			Content:   msg.Chat.Content,
		},
	})
	ss.stats.Incr(StatEventsBroadcast)

	return resultOK
}

func (ss *SignalServer) handleFileNotice(msg *ClientMessage) result {
	c := msg.client
	if c.roomID == "" || c.roomID != msg.FileNotice.RoomId {
		return resultIgnored
	}

	ss.broadcast(msg.FileNotice.RoomId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		FileNotice: &FileNoticeEvent{
			SessionId:    c.id,
			Name:         c.user.Name,
			FileUrl:      msg.FileNotice.FileUrl,
			OriginalName: msg.FileNotice.OriginalName,
		},
	})
	ss.stats.Incr(StatEventsBroadcast)

	return resultOK
}

func (ss *SignalServer) handlePollCreate(msg *ClientMessage) result {
	c := msg.client
	if c.roomID == "" || c.roomID != msg.PollCreate.RoomId {
		return resultIgnored
	}

	question := strings.TrimSpace(msg.PollCreate.Question)
	if question == "" || len(msg.PollCreate.Options) < 2 {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return resultRejected
	}

	poll, err := ss.db.CreatePoll(database.CreatePollParams{
		Id:        newPollId(),
		RoomId:    msg.PollCreate.RoomId,
		Question:  question,
		Options:   msg.PollCreate.Options,
		CreatedBy: c.user.Id,
	})
	if err != nil {
		ss.log.Println("CreatePoll:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return resultError
	}

	ss.broadcast(msg.PollCreate.RoomId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		PollCreated: &types.Poll{
			Id:        poll.Id,
			RoomId:    poll.RoomId,
			Question:  poll.Question,
			Options:   poll.Options,
			CreatedBy: c.user.Name,
			CreatedAt: poll.CreatedAt,
		},
	})
	ss.stats.Incr(StatEventsBroadcast)

	return resultOK
}

// handlePollVote records at most one vote per user per poll. A
// duplicate attempt is discarded without error, but the tally is
// rebroadcast either way.
func (ss *SignalServer) handlePollVote(msg *ClientMessage) result {
	c := msg.client
	if c.roomID == "" || c.roomID != msg.PollVote.RoomId {
		return resultIgnored
	}

	poll, err := ss.db.GetPoll(msg.PollVote.PollId, msg.PollVote.RoomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resultIgnored
		}
		ss.log.Println("GetPoll:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return resultError
	}

	if msg.PollVote.OptionIndex < 0 || msg.PollVote.OptionIndex >= len(poll.Options) {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return resultRejected
	}

	inserted, err := ss.db.CreateVoteIfAbsent(poll.Id, c.user.Id, msg.PollVote.OptionIndex)
	if err != nil {
		ss.log.Println("CreateVoteIfAbsent:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return resultError
	}
	if !inserted {
		ss.log.Printf("duplicate vote by user %d on poll %s discarded", c.user.Id, poll.Id)
	}

	counts, err := ss.db.TallyVotes(poll.Id)
	if err != nil {
		ss.log.Println("TallyVotes:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return resultError
	}

	tally := make([]int, len(poll.Options))
	for i := range tally {
		tally[i] = counts[i]
	}

	ss.broadcast(msg.PollVote.RoomId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: msg.Timestamp,
		},
		PollResults: &PollResults{
			PollId: poll.Id,
			Counts: tally,
		},
	})
	ss.stats.Incr(StatEventsBroadcast)

	return resultOK
}

// broadcast fans a message out to every session currently in the room.
// It only ever runs on the event loop, so the membership set it reads
// is a consistent snapshot.
func (ss *SignalServer) broadcast(roomId string, msg *ServerMessage) {
	for _, member := range ss.rooms[roomId] {
		if member == msg.SkipClient {
			continue
		}

		member.queueMessage(msg)
	}
}

func newPollId() string {
	const alphanum = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = alphanum[rand.IntN(len(alphanum))]
	}

	return fmt.Sprintf("poll_%d_%s", time.Now().UnixMilli(), suffix)
}

func (ss *SignalServer) Shutdown(ctx context.Context) error {
	ss.log.Println("received shutdown signal")
	close(ss.stop)

	select {
	case <-ss.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
