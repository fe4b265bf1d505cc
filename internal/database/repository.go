package database

type HuddleRepository interface {
	Ping() error
	CreateAccount(accountParams CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomById(roomId string) (Room, error)
	CreateInvite(roomId, email string, invitedBy int) error
	IsInvited(roomId, email string) (bool, error)
	CreatePoll(params CreatePollParams) (Poll, error)
	GetPoll(pollId, roomId string) (Poll, error)
	ListPolls(roomId string) ([]Poll, error)
	CreateVoteIfAbsent(pollId string, userId, optionIndex int) (bool, error)
	TallyVotes(pollId string) (map[int]int, error)
}
