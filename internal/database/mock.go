package database

import (
	"github.com/stretchr/testify/mock"
)

type MockHuddleRepository struct {
	mock.Mock
}

func (m *MockHuddleRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockHuddleRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	args := m.Called(accountParams)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHuddleRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHuddleRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockHuddleRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockHuddleRepository) GetRoomById(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockHuddleRepository) CreateInvite(roomId, email string, invitedBy int) error {
	args := m.Called(roomId, email, invitedBy)
	return args.Error(0)
}
func (m *MockHuddleRepository) IsInvited(roomId, email string) (bool, error) {
	args := m.Called(roomId, email)
	return args.Bool(0), args.Error(1)
}
func (m *MockHuddleRepository) CreatePoll(params CreatePollParams) (Poll, error) {
	args := m.Called(params)
	return args.Get(0).(Poll), args.Error(1)
}
func (m *MockHuddleRepository) GetPoll(pollId, roomId string) (Poll, error) {
	args := m.Called(pollId, roomId)
	return args.Get(0).(Poll), args.Error(1)
}
func (m *MockHuddleRepository) ListPolls(roomId string) ([]Poll, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Poll), args.Error(1)
}
func (m *MockHuddleRepository) CreateVoteIfAbsent(pollId string, userId, optionIndex int) (bool, error) {
	args := m.Called(pollId, userId, optionIndex)
	return args.Bool(0), args.Error(1)
}
func (m *MockHuddleRepository) TallyVotes(pollId string) (map[int]int, error) {
	args := m.Called(pollId)
	return args.Get(0).(map[int]int), args.Error(1)
}
