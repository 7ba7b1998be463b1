// Package mysql implements a form storage backend using MySQL.
package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/model"
)

// Schema contains the MySQL schema for the form storage.
//
//go:embed schema.sql
var Schema string

// duplicate entry for key
const errDupEntry = 1062

// MySQLStorage implements a storage.Storage using MySQL.
type MySQLStorage struct {
	db *sql.DB
}

type config struct {
	driver string
	dsn    string
	db     *sql.DB
}

// Option allows configuring a MySQLStorage.
type Option func(*config)

// WithDSN sets the storage MySQL data source name.
func WithDSN(dsn string) Option {
	return func(c *config) {
		c.dsn = dsn
	}
}

// WithDriver sets a custom MySQL driver for the storage.
//
// Default driver is "mysql".
// Value is ignored if WithDB is used.
func WithDriver(driver string) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// WithDB sets a custom MySQL *sql.DB to the storage.
//
// If set, driver passed via WithDriver is ignored.
func WithDB(db *sql.DB) Option {
	return func(c *config) {
		c.db = db
	}
}

// New creates and returns a new MySQLStorage.
func New(opts ...Option) (*MySQLStorage, error) {
	cfg := &config{driver: "mysql"}
	for _, opt := range opts {
		opt(cfg)
	}
	var err error
	if cfg.db == nil {
		cfg.db, err = sql.Open(cfg.driver, cfg.dsn)
		if err != nil {
			return nil, err
		}
	}
	if err = cfg.db.Ping(); err != nil {
		return nil, err
	}
	return &MySQLStorage{db: cfg.db}, nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDupEntry
}

func nullEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// StoreRequest inserts r. Existing request IDs are never updated.
func (s *MySQLStorage) StoreRequest(ctx context.Context, r *model.FormRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx, `
INSERT INTO form_requests
	(request_id, process_definition_key, task_id, action, request_json)
VALUES
	(?, ?, ?, ?, ?);`,
		r.RequestID,
		r.ProcessDefinitionKey,
		nullEmpty(r.TaskID),
		string(r.Action),
		raw,
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", storage.ErrRequestExists, r.RequestID)
	}
	return err
}

// RetrieveRequest selects the request for requestID.
func (s *MySQLStorage) RetrieveRequest(ctx context.Context, requestID string) (*model.FormRequest, error) {
	var raw []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT request_json FROM form_requests WHERE request_id = ?;`,
		requestID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRequestNotFound, requestID)
	} else if err != nil {
		return nil, err
	}
	r := new(model.FormRequest)
	return r, json.Unmarshal(raw, r)
}

// StoreSubmission inserts or replaces sub.
func (s *MySQLStorage) StoreSubmission(ctx context.Context, sub *model.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx, `
INSERT INTO form_submissions
	(id, request_id, process_definition_key, action, submission_json)
VALUES
	(?, ?, ?, ?, ?) AS new
ON DUPLICATE KEY UPDATE
	request_id = new.request_id,
	process_definition_key = new.process_definition_key,
	action = new.action,
	submission_json = new.submission_json;`,
		sub.ID,
		sub.RequestID,
		sub.ProcessDefinitionKey,
		string(sub.Action),
		raw,
	)
	return err
}

func scanSubmission(row *sql.Row, id string) (*model.Submission, error) {
	var raw []byte
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSubmissionNotFound, id)
	} else if err != nil {
		return nil, err
	}
	sub := new(model.Submission)
	return sub, json.Unmarshal(raw, sub)
}

// RetrieveSubmission selects the submission for id.
func (s *MySQLStorage) RetrieveSubmission(ctx context.Context, id string) (*model.Submission, error) {
	return scanSubmission(s.db.QueryRowContext(
		ctx,
		`SELECT submission_json FROM form_submissions WHERE id = ?;`,
		id,
	), id)
}

// RetrieveTerminalSubmission selects the latest complete or reject submission for requestID.
func (s *MySQLStorage) RetrieveTerminalSubmission(ctx context.Context, requestID string) (*model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(
		ctx, `
SELECT submission_json FROM form_submissions
WHERE request_id = ? AND action IN (?, ?)
ORDER BY created_at DESC
LIMIT 1;`,
		requestID,
		string(model.ActionComplete),
		string(model.ActionReject),
	), requestID)
	if errors.Is(err, storage.ErrSubmissionNotFound) {
		return nil, nil
	}
	return sub, err
}

// StoreValidation inserts or replaces v.
func (s *MySQLStorage) StoreValidation(ctx context.Context, v *model.Validation) error {
	if err := v.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx, `
INSERT INTO form_validations
	(id, submission_id, validation_json)
VALUES
	(?, ?, ?) AS new
ON DUPLICATE KEY UPDATE
	submission_id = new.submission_id,
	validation_json = new.validation_json;`,
		v.ID,
		v.SubmissionID,
		raw,
	)
	return err
}

// RetrieveValidation selects the validation for id.
func (s *MySQLStorage) RetrieveValidation(ctx context.Context, id string) (*model.Validation, error) {
	var raw []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT validation_json FROM form_validations WHERE id = ?;`,
		id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrValidationNotFound, id)
	} else if err != nil {
		return nil, err
	}
	v := new(model.Validation)
	return v, json.Unmarshal(raw, v)
}
