package database

import (
	"database/sql"
)

type PgHuddleRepository struct {
	conn *sql.DB
}

func NewPgHuddleRepository(dsn string) (*PgHuddleRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgHuddleRepository{conn: db}, nil
}

func (db *PgHuddleRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgHuddleRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
