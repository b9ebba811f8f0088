// Package sqlstore is a database/sql backed SyncCoordinator shared by the
// sqlite and postgres adapters. Records are kept as JSON documents keyed by
// id; conflicts parked for manual review go to a separate table.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
	"github.com/c0deZ3R0/go-sync-engine/record"
	"github.com/c0deZ3R0/go-sync-engine/resolve"
)

const (
	opSyncData         = "sqlstore.SyncData"
	opHandleConflicts  = "sqlstore.HandleConflicts"
	opRecords          = "sqlstore.Records"
	opPendingConflicts = "sqlstore.PendingConflicts"
	opSetupSchema      = "sqlstore.SetupSchema"
	component          = "storage/sqlstore"
)

// ErrStoreClosed is returned by every call after Close.
var ErrStoreClosed = errors.New("store is closed")

// Dialect selects placeholder and DDL flavour.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Conflict statuses.
const (
	StatusPending = "pending"
)

// Config configures a Store.
type Config struct {
	Dialect        Dialect
	RecordsTable   string           // Default: "records"
	ConflictsTable string           // Default: "sync_conflicts"
	Resolver       resolve.Resolver // Default: resolve.Default()
	Logger         *logging.Logger  // Default: logging.Default()
}

func (c *Config) setDefaults() {
	if c.RecordsTable == "" {
		c.RecordsTable = "records"
	}
	if c.ConflictsTable == "" {
		c.ConflictsTable = "sync_conflicts"
	}
	if c.Resolver == nil {
		c.Resolver = resolve.Default()
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
}

// PendingConflict is a conflict waiting for manual review.
type PendingConflict struct {
	ID        int64             `json:"id" yaml:"id"`
	RecordID  string            `json:"record_id" yaml:"record_id"`
	Source    record.Record     `json:"source" yaml:"source"`
	Target    record.Record     `json:"target" yaml:"target"`
	Severity  conflict.Severity `json:"severity" yaml:"severity"`
	Reasons   []string          `json:"reasons" yaml:"reasons"`
	Status    string            `json:"status" yaml:"status"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// Store applies changes and resolves conflicts against a SQL database.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	records  string
	pending  string
	resolver resolve.Resolver
	logger   *logging.Logger

	mu     sync.RWMutex
	closed bool
}

var _ orchestrator.SyncCoordinator = (*Store)(nil)

// New wraps db and creates the tables if they do not exist. The store owns
// db from then on and closes it in Close.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, syncErrors.NewValidationError(syncErrors.OpConfigure, errors.New("db cannot be nil"))
	}
	cfg.setDefaults()

	s := &Store{
		db:       db,
		dialect:  cfg.Dialect,
		records:  cfg.RecordsTable,
		pending:  cfg.ConflictsTable,
		resolver: cfg.Resolver,
		logger:   cfg.Logger.WithComponent(logging.ComponentStore),
	}
	if err := s.setupSchema(ctx); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opSetupSchema, component)
	}
	return s, nil
}

func (s *Store) setupSchema(ctx context.Context) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP"
	if s.dialect == DialectPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at %s NOT NULL
		)`, s.records, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          %s,
			record_id   TEXT NOT NULL,
			source_data TEXT,
			target_data TEXT,
			severity    TEXT NOT NULL,
			reasons     TEXT,
			status      TEXT NOT NULL,
			created_at  %s NOT NULL
		)`, s.pending, pk, ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s (status)`, s.pending, s.pending),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_record ON %s (record_id, status)`, s.pending, s.pending),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// SyncData applies changes in a single transaction.
func (s *Store) SyncData(ctx context.Context, changes []orchestrator.Change, opts orchestrator.Options) (orchestrator.SyncOutcome, error) {
	if err := s.checkOpen(); err != nil {
		return orchestrator.SyncOutcome{}, err
	}
	if len(changes) == 0 {
		return orchestrator.SyncOutcome{Success: true}, nil
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, c := range changes {
			switch c.Type {
			case orchestrator.ChangeDelete:
				if err := s.delete(ctx, tx, c.ID); err != nil {
					return err
				}
			case orchestrator.ChangeAdd, orchestrator.ChangeModify:
				if err := s.upsert(ctx, tx, c.ID, c.Record, now); err != nil {
					return err
				}
			default:
				return backoffPermanent(fmt.Errorf("unknown change type %q for record %s", c.Type, c.ID))
			}
		}
		return nil
	})
	if err != nil {
		return orchestrator.SyncOutcome{}, wrapStoreErr(err, opSyncData)
	}

	s.logger.DebugContext(ctx, "changes applied",
		slog.String("source", opts.Source),
		slog.Int("changes", len(changes)),
	)
	return orchestrator.SyncOutcome{Success: true, Synced: len(changes)}, nil
}

// HandleConflicts runs every conflicting record through the resolver,
// writes the winning version and parks manual-review conflicts as pending.
// Counts are per conflicting field, matching the detector.
func (s *Store) HandleConflicts(ctx context.Context, conflicts conflict.Result) (orchestrator.ConflictOutcome, error) {
	if err := s.checkOpen(); err != nil {
		return orchestrator.ConflictOutcome{}, err
	}

	var resolved, unresolved int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		resolved, unresolved = 0, 0
		now := time.Now().UTC()
		for _, rc := range conflicts.Records {
			res, err := s.resolver.Resolve(ctx, rc)
			if err != nil {
				return backoffPermanent(fmt.Errorf("resolve %s: %w", rc.ID, err))
			}
			weight := max(len(rc.Items), 1)

			switch {
			case !res.Resolved():
				if err := s.park(ctx, tx, rc, res, now); err != nil {
					return err
				}
				unresolved += weight
			case res.Record != nil:
				if err := s.upsert(ctx, tx, rc.ID, res.Record, now); err != nil {
					return err
				}
				resolved += weight
			default:
				resolved += weight
			}

			s.logger.DebugContext(ctx, "conflict resolved",
				slog.String("record_id", rc.ID),
				slog.String("decision", string(res.Decision)),
				slog.String("severity", string(rc.Severity)),
			)
		}
		return nil
	})
	if err != nil {
		return orchestrator.ConflictOutcome{}, wrapStoreErr(err, opHandleConflicts)
	}

	return orchestrator.ConflictOutcome{
		Success:             true,
		ResolvedConflicts:   resolved,
		UnresolvedConflicts: unresolved,
	}, nil
}

// Records returns every stored record ordered by id.
func (s *Store) Records(ctx context.Context) ([]record.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY id`, s.records))
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opRecords, component)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opRecords, component)
		}
		var r record.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opRecords, component)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opRecords, component)
	}
	return out, nil
}

// PendingConflicts returns conflicts waiting for manual review, oldest first.
func (s *Store) PendingConflicts(ctx context.Context) ([]PendingConflict, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := s.rebind(fmt.Sprintf(`SELECT id, record_id, source_data, target_data, severity, reasons, status, created_at
		FROM %s WHERE status = ? ORDER BY id`, s.pending))
	rows, err := s.db.QueryContext(ctx, query, StatusPending)
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opPendingConflicts, component)
	}
	defer rows.Close()

	out := []PendingConflict{}
	for rows.Next() {
		var (
			p                      PendingConflict
			src, dst, reasons, sev sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.RecordID, &src, &dst, &sev, &reasons, &p.Status, &p.CreatedAt); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opPendingConflicts, component)
		}
		p.Severity = conflict.Severity(sev.String)
		if err := decodeJSON(src, &p.Source); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opPendingConflicts, component)
		}
		if err := decodeJSON(dst, &p.Target); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opPendingConflicts, component)
		}
		if err := decodeJSON(reasons, &p.Reasons); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opPendingConflicts, component)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opPendingConflicts, component)
	}
	return out, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database. Calling it twice is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, id string, r record.Record, now time.Time) error {
	data, err := json.Marshal(r)
	if err != nil {
		return backoffPermanent(fmt.Errorf("encode record %s: %w", id, err))
	}
	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, s.records))
	_, err = tx.ExecContext(ctx, query, id, string(data), now)
	return err
}

func (s *Store) delete(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.records)), id)
	return err
}

func (s *Store) park(ctx context.Context, tx *sql.Tx, rc conflict.RecordConflict, res resolve.Resolution, now time.Time) error {
	src, err := json.Marshal(rc.Source)
	if err != nil {
		return backoffPermanent(err)
	}
	dst, err := json.Marshal(rc.Target)
	if err != nil {
		return backoffPermanent(err)
	}
	reasons, err := json.Marshal(res.Reasons)
	if err != nil {
		return backoffPermanent(err)
	}

	// a record has at most one pending conflict; a newer one replaces it
	update := s.rebind(fmt.Sprintf(`UPDATE %s SET source_data = ?, target_data = ?, severity = ?, reasons = ?
		WHERE record_id = ? AND status = ?`, s.pending))
	updated, err := tx.ExecContext(ctx, update, string(src), string(dst), string(rc.Severity), string(reasons), rc.ID, StatusPending)
	if err != nil {
		return err
	}
	if n, err := updated.RowsAffected(); err != nil || n > 0 {
		return err
	}

	insert := s.rebind(fmt.Sprintf(`INSERT INTO %s (record_id, source_data, target_data, severity, reasons, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, s.pending))
	_, err = tx.ExecContext(ctx, insert, rc.ID, string(src), string(dst), string(rc.Severity), string(reasons), StatusPending, now)
	return err
}

func decodeJSON(v sql.NullString, out any) error {
	if !v.Valid || v.String == "" || v.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(v.String), out)
}
