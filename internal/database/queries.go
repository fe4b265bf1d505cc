package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func (db *PgHuddleRepository) CreateAccount(accountParams CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (name, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, name, email, created_at",
		accountParams.Name,
		strings.ToLower(accountParams.EmailAddress),
		accountParams.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.EmailAddress,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgHuddleRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, created_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.EmailAddress,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgHuddleRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		strings.ToLower(email),
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	return user, err
}

func (db *PgHuddleRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRow(
		"INSERT INTO rooms (id, name, owner_id, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, name, owner_id, created_at",
		params.Id,
		params.Name,
		params.OwnerId,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.Name,
		&room.OwnerId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgHuddleRepository) GetRoomById(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, owner_id, created_at FROM rooms "+
			"WHERE id = $1 LIMIT 1",
		roomId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.OwnerId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgHuddleRepository) CreateInvite(roomId, email string, invitedBy int) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_invites (room_id, email, invited_by, created_at) "+
			"VALUES ($1, $2, $3, $4) ON CONFLICT (room_id, email) DO NOTHING",
		roomId,
		strings.ToLower(email),
		invitedBy,
		time.Now().UTC(),
	)

	return err
}

func (db *PgHuddleRepository) IsInvited(roomId, email string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM room_invites WHERE room_id = $1 AND email = $2 LIMIT 1",
		roomId,
		strings.ToLower(email),
	)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (db *PgHuddleRepository) CreatePoll(params CreatePollParams) (Poll, error) {
	optionsJson, err := json.Marshal(params.Options)
	if err != nil {
		return Poll{}, fmt.Errorf("marshal options: %w", err)
	}

	res := db.conn.QueryRow(
		"INSERT INTO polls (id, room_id, question, options_json, created_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, room_id, question, created_by, created_at",
		params.Id,
		params.RoomId,
		params.Question,
		string(optionsJson),
		params.CreatedBy,
		time.Now().UTC(),
	)

	var poll Poll
	err = res.Scan(
		&poll.Id,
		&poll.RoomId,
		&poll.Question,
		&poll.CreatedBy,
		&poll.CreatedAt,
	)
	if err != nil {
		return Poll{}, err
	}

	poll.Options = params.Options
	return poll, nil
}

func (db *PgHuddleRepository) GetPoll(pollId, roomId string) (Poll, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, question, options_json, created_by, created_at FROM polls "+
			"WHERE id = $1 AND room_id = $2 LIMIT 1",
		pollId,
		roomId,
	)

	return scanPoll(row)
}

func (db *PgHuddleRepository) ListPolls(roomId string) ([]Poll, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, question, options_json, created_by, created_at FROM polls "+
			"WHERE room_id = $1 ORDER BY created_at DESC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var polls = make([]Poll, 0)
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}

		polls = append(polls, poll)
	}

	return polls, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (Poll, error) {
	var poll Poll
	var optionsJson string
	err := row.Scan(
		&poll.Id,
		&poll.RoomId,
		&poll.Question,
		&optionsJson,
		&poll.CreatedBy,
		&poll.CreatedAt,
	)
	if err != nil {
		return Poll{}, err
	}

	if err := json.Unmarshal([]byte(optionsJson), &poll.Options); err != nil {
		return Poll{}, fmt.Errorf("unmarshal options: %w", err)
	}

	return poll, nil
}

// CreateVoteIfAbsent records a vote unless the user has already voted on
// the poll. The unique constraint on (poll_id, user_id) is the
// correctness mechanism, not a prior existence check. It reports
// whether a new vote was recorded.
func (db *PgHuddleRepository) CreateVoteIfAbsent(pollId string, userId, optionIndex int) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO poll_votes (poll_id, user_id, option_index, created_at) "+
			"VALUES ($1, $2, $3, $4) ON CONFLICT (poll_id, user_id) DO NOTHING",
		pollId,
		userId,
		optionIndex,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (db *PgHuddleRepository) TallyVotes(pollId string) (map[int]int, error) {
	rows, err := db.conn.Query(
		"SELECT option_index, COUNT(*) FROM poll_votes WHERE poll_id = $1 GROUP BY option_index",
		pollId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var optionIndex, count int
		if err := rows.Scan(&optionIndex, &count); err != nil {
			return nil, err
		}

		counts[optionIndex] = count
	}

	return counts, rows.Err()
}
