package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxRetries = 3

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Storage interface {
	UserStorage
	TuitionStorage
	ApplicationStorage
	PaymentStorage
}

var _ settlement.Storage = (*DB)(nil)

type db interface {
	NewTx(ctx context.Context) (Tx, error)
}

type conn interface {
	Rebind(string) string
	DriverName() string
	NamedExecContext(context.Context, string, interface{}) (sql.Result, error)
	SelectContext(context.Context, interface{}, string, ...interface{}) error
	GetContext(context.Context, interface{}, string, ...interface{}) error
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}

type Tx interface {
	conn

	Commit() error
	Rollback() error
}

type transactorImpl struct {
	*sqlx.DB
}

func (t *transactorImpl) NewTx(ctx context.Context) (Tx, error) {
	tx, err := t.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type DB struct {
	conn
	db
}

func New(db *sqlx.DB) (*DB, error) {
	var (
		dbWrapper *DB
		err       error
	)

	tries := maxRetries
	for tries >= 0 {
		log.WithFields(log.Fields{
			"retries_left": tries,
		}).Warnf("%s: trying to connect to create connection", db.DriverName())

		dbWrapper, err = tryOpenConnection(db)
		if err != nil {
			if tries == 0 {
				return nil, err
			}

			tries = tries - 1
			time.Sleep(1 * time.Second)
			continue
		}

		break
	}

	return dbWrapper, nil
}

func tryOpenConnection(db *sqlx.DB) (*DB, error) {
	err := db.Ping()
	if err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}

	return Wrap(db), nil
}

// Wrap builds a DB over an already opened connection.
func Wrap(db *sqlx.DB) *DB {
	return &DB{
		db,
		&transactorImpl{db},
	}
}

// withTx runs fn inside a transaction, committing when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := db.NewTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if err != nil {
			tx.Rollback()
			return
		}

		err = errors.Wrap(tx.Commit(), "failed to commit transaction")
	}()

	return fn(tx)
}

func expectOneRow(result sql.Result, action string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if int(rowsAffected) != 1 {
		return errors.Errorf("expected %d and %s %d", 1, action, rowsAffected)
	}

	return nil
}

// applyFilters replaces the #FILTERS# placeholder of query with the given
// conditions joined by AND.
func applyFilters(query string, filters []string) string {
	var where string
	if len(filters) > 0 {
		where = "AND " + strings.Join(filters, " AND ")
	}
	return strings.Replace(query, "#FILTERS#", where, 1)
}
