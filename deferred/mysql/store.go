// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

// Package mysql implements the deferred write store on MySQL. Records are
// stored as their stable JSON encoding alongside the columns needed for
// ordering and cleanup; draining deletes each record only after its handler
// succeeds, which yields at-least-once replay.
package mysql

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/square/writeproxy"
	"github.com/square/writeproxy/logging"
)

var ErrDuplicateRecord = errors.New("record with provided id already exists")

const (
	tableName              = "writeproxy_deferred"
	mysqlErrDuplicateEntry = 1062
)

// Store keeps deferred records in the writeproxy_deferred table, expected
// to exist with columns (ID VARCHAR PRIMARY KEY, Tenant VARCHAR, Record
// BLOB).
type Store struct {
	db *sql.DB
}

func New(c Connector) (*Store, error) {
	db, err := c.Connect()
	if err != nil {
		return nil, err
	}

	logging.Printf("Verifying table %v exists", tableName)
	q, args, err := sq.Select("1").From(tableName).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(q, args...); err != nil {
		return nil, errors.New("table " + tableName + " does not exist")
	}

	return &Store{db: db}, nil
}

func (s *Store) Append(r *writeproxy.DeferredWrite) error {
	b, err := r.Encode()
	if err != nil {
		return err
	}

	q, args, err := sq.Insert(tableName).
		Columns("ID", "Tenant", "Record").
		Values(r.ID, r.CustomerID, b).ToSql()
	if err != nil {
		return err
	}

	if _, err = s.db.Exec(q, args...); err != nil {
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == mysqlErrDuplicateEntry {
			return ErrDuplicateRecord
		}

		return err
	}

	return nil
}

// Process drains records in ID order (IDs sort by submission time). Each
// record is deleted only after its handler returns nil; the first handler
// error stops the drain with that record still present.
func (s *Store) Process(handler func(*writeproxy.DeferredWrite) error) error {
	q, args, err := sq.Select("ID", "Record").From(tableName).OrderBy("ID ASC").ToSql()
	if err != nil {
		return err
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return err
	}

	type row struct {
		id     string
		record []byte
	}

	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.record); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, r)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range pending {
		record, err := writeproxy.DecodeDeferredWrite(r.record)
		if err != nil {
			return err
		}

		if err := handler(record); err != nil {
			return err
		}

		if err := s.deleteRecord(r.id); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) Len() (int, error) {
	q, args, err := sq.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRow(q, args...).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) deleteRecord(id string) error {
	q, args, err := sq.Delete(tableName).Where("ID = ?", id).ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.Exec(q, args...)
	return err
}
