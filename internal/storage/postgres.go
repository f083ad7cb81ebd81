package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const postgresDriverName = "postgres"

//go:embed migrations/*.sql
var migrations embed.FS

const (
	requestColumns = `request_id, chain_id, request_state, created_at, transaction_hash,
		block_number, mined_at, gas_used, is_batch, error_message`

	insertPendingQuery = `INSERT INTO relay_requests (request_id, chain_id, request_state, created_at, is_batch)
		VALUES ($1, $2, 'Pending', $3, $4)
		ON CONFLICT (request_id) DO NOTHING`

	markSubmittedQuery = `UPDATE relay_requests SET transaction_hash = $2
		WHERE request_id = $1 AND request_state = 'Pending'`

	finalizeQuery = `UPDATE relay_requests SET
		request_state = $2,
		transaction_hash = COALESCE(NULLIF($3::TEXT, ''), transaction_hash),
		block_number = $4,
		mined_at = $5,
		gas_used = $6,
		error_message = $7
		WHERE request_id = $1 AND request_state = 'Pending'`

	getStateQuery = `SELECT request_state FROM relay_requests WHERE request_id = $1`

	getRequestQuery = `SELECT ` + requestColumns + ` FROM relay_requests WHERE request_id = $1`

	listRequestsQuery = `SELECT ` + requestColumns + ` FROM relay_requests
		ORDER BY created_at DESC, request_id DESC
		LIMIT $1 OFFSET $2`

	getPendingQuery = `SELECT ` + requestColumns + ` FROM relay_requests
		WHERE request_state = 'Pending'
		ORDER BY created_at`
)

type PostgresStorage struct {
	db  *sql.DB
	now func() time.Time
}

func WithNow(nowFunc func() time.Time) func(*PostgresStorage) {
	return func(p *PostgresStorage) {
		p.now = nowFunc
	}
}

// NewPostgresStorage opens the database at dsn and applies the embedded migrations.
func NewPostgresStorage(ctx context.Context, dsn string, maxOpenConns int, opts ...func(*PostgresStorage)) (*PostgresStorage, error) {
	db, err := sql.Open(postgresDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres DB: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres DB: %w", err)
	}

	p := NewPostgresStorageWithDB(db, opts...)
	if err := p.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return p, nil
}

func NewPostgresStorageWithDB(db *sql.DB, opts ...func(*PostgresStorage)) *PostgresStorage {
	p := &PostgresStorage{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Migrate runs every embedded migration in file name order. Migrations are idempotent.
func (p *PostgresStorage) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		stmt, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := p.db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

func (p *PostgresStorage) InsertPending(ctx context.Context, chainID uint64, requestID string, isBatch bool) (*relay.RequestRecord, error) {
	_, err := p.db.ExecContext(ctx, insertPendingQuery, requestID, int64(chainID), p.now().UTC(), isBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request %s: %w", requestID, err)
	}

	record, err := p.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("request %s disappeared after insert", requestID)
	}

	return record, nil
}

func (p *PostgresStorage) MarkSubmitted(ctx context.Context, requestID string, txHash string) error {
	res, err := p.db.ExecContext(ctx, markSubmittedQuery, requestID, txHash)
	if err != nil {
		return fmt.Errorf("failed to mark request %s submitted: %w", requestID, err)
	}

	return p.checkTransition(ctx, requestID, res)
}

func (p *PostgresStorage) Finalize(ctx context.Context, requestID string, params relay.FinalizeParams) error {
	if !params.State.IsTerminal() {
		return fmt.Errorf("cannot finalize request %s with state %q", requestID, params.State)
	}

	minedAt := sql.NullTime{}
	if !params.MinedAt.IsZero() {
		minedAt = sql.NullTime{Time: params.MinedAt.UTC(), Valid: true}
	}

	res, err := p.db.ExecContext(ctx, finalizeQuery,
		requestID,
		string(params.State),
		params.TransactionHash,
		int64(params.BlockNumber),
		minedAt,
		int64(params.GasUsed),
		params.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize request %s: %w", requestID, err)
	}

	return p.checkTransition(ctx, requestID, res)
}

// checkTransition turns an update of a Pending row that touched nothing into the matching error.
func (p *PostgresStorage) checkTransition(ctx context.Context, requestID string, res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var state string
	err = p.db.QueryRowContext(ctx, getStateQuery, requestID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", relay.ErrRequestNotFound, requestID)
	}
	if err != nil {
		return fmt.Errorf("failed to get state of request %s: %w", requestID, err)
	}

	return fmt.Errorf("%w: %s is %s", relay.ErrAlreadyFinalized, requestID, state)
}

func (p *PostgresStorage) GetRequest(ctx context.Context, requestID string) (*relay.RequestRecord, error) {
	record, err := scanRecord(p.db.QueryRowContext(ctx, getRequestQuery, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", requestID, err)
	}

	return record, nil
}

func (p *PostgresStorage) ListRequests(ctx context.Context, page, pageSize int) ([]*relay.RequestRecord, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page=%d page_size=%d", relay.ErrInvalidPage, page, pageSize)
	}

	rows, err := p.db.QueryContext(ctx, listRequestsQuery, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	return scanRecords(rows)
}

func (p *PostgresStorage) GetPendingRequests(ctx context.Context) ([]*relay.RequestRecord, error) {
	rows, err := p.db.QueryContext(ctx, getPendingQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending requests: %w", err)
	}

	return scanRecords(rows)
}

func (p *PostgresStorage) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*relay.RequestRecord, error) {
	var (
		record  relay.RequestRecord
		state   string
		minedAt sql.NullTime
	)

	err := row.Scan(
		&record.RequestID,
		&record.ChainID,
		&state,
		&record.CreatedAt,
		&record.TransactionHash,
		&record.BlockNumber,
		&minedAt,
		&record.GasUsed,
		&record.IsBatch,
		&record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	record.State = relay.RequestState(state)
	if minedAt.Valid {
		t := minedAt.Time
		record.MinedAt = &t
	}

	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]*relay.RequestRecord, error) {
	defer rows.Close()

	records := make([]*relay.RequestRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}

	return records, nil
}
