package database

import "time"

type User struct {
	Id           int
	Name         string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
}

type Room struct {
	Id        string
	Name      string
	OwnerId   int
	CreatedAt time.Time
}

type Invite struct {
	Id        int
	RoomId    string
	Email     string
	InvitedBy int
	CreatedAt time.Time
}

type Poll struct {
	Id        string
	RoomId    string
	Question  string
	Options   []string
	CreatedBy int
	CreatedAt time.Time
}

type Vote struct {
	PollId      string
	UserId      int
	OptionIndex int
	CreatedAt   time.Time
}

type CreateAccountParams struct {
	Name         string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	OwnerId int    `json:"-"`
}

type CreatePollParams struct {
	Id        string
	RoomId    string
	Question  string
	Options   []string
	CreatedBy int
}
