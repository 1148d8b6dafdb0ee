package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"boards/internal/block"
	"boards/internal/pg"
)

// SQL: хранилище блоков в postgres или sqlite через database/sql.
type SQL struct {
	db      *sql.DB
	dialect pg.Dialect
	table   string
}

// NewSQL оборачивает открытое соединение. schema учитывается только для postgres.
func NewSQL(db *sql.DB, dialect pg.Dialect, schema string) *SQL {
	return &SQL{db: db, dialect: dialect, table: pg.BlocksTable(dialect, schema)}
}

// Migrate создаёт таблицу и индексы, если их ещё нет.
func (s *SQL) Migrate(ctx context.Context, schema string) error {
	ddl, err := pg.GenerateDDL(s.dialect, schema)
	if err != nil {
		return err
	}
	return pg.ApplyDDL(ctx, s.db, ddl)
}

func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind переводит плейсхолдеры ? в $n для postgres.
func (s *SQL) rebind(q string) string {
	if s.dialect != pg.Postgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

const blockColumns = "id, board_id, parent_id, type, title, fields, synced_with, created_at, updated_at, created_by, updated_by"

func (s *SQL) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pg.IsUniqueViolation(err) {
		return true
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(r rowScanner) (block.Block, error) {
	var (
		b      block.Block
		typ    string
		fields []byte
		synced sql.NullString
	)
	if err := r.Scan(&b.ID, &b.BoardID, &b.ParentID, &typ, &b.Title, &fields, &synced,
		&b.CreatedAt, &b.UpdatedAt, &b.CreatedBy, &b.UpdatedBy); err != nil {
		return block.Block{}, err
	}
	b.Type = block.Type(typ)
	b.SyncedWith = synced.String
	b.Fields = map[string]any{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &b.Fields); err != nil {
			return block.Block{}, fmt.Errorf("decode fields of %s: %w", b.ID, err)
		}
	}
	return b, nil
}

func blockArgs(b block.Block) ([]any, error) {
	fields := b.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields of %s: %w", b.ID, err)
	}
	var synced any
	if b.SyncedWith != "" {
		synced = b.SyncedWith
	}
	return []any{b.ID, b.BoardID, b.ParentID, string(b.Type), b.Title, string(data), synced,
		b.CreatedAt, b.UpdatedAt, b.CreatedBy, b.UpdatedBy}, nil
}

func (s *SQL) insertSQL(suffix string) string {
	fieldsArg := "?"
	if s.dialect == pg.Postgres {
		fieldsArg = "?::jsonb"
	}
	return s.rebind(fmt.Sprintf("insert into %s (%s) values (?, ?, ?, ?, ?, %s, ?, ?, ?, ?, ?)%s",
		s.table, blockColumns, fieldsArg, suffix))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) Get(ctx context.Context, id string) (block.Block, error) {
	return s.get(ctx, s.db, id)
}

func (s *SQL) get(ctx context.Context, q execer, id string) (block.Block, error) {
	row := q.QueryRowContext(ctx, s.rebind(fmt.Sprintf("select %s from %s where id = ?", blockColumns, s.table)), id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return block.Block{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return block.Block{}, fmt.Errorf("get block %s: %w", id, err)
	}
	return b, nil
}

func (s *SQL) List(ctx context.Context, q Query) ([]block.Block, error) {
	var (
		where []string
		args  []any
	)
	if q.BoardID != "" {
		where = append(where, "board_id = ?")
		args = append(args, q.BoardID)
	}
	if q.ParentID != "" {
		where = append(where, "parent_id = ?")
		args = append(args, q.ParentID)
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}
	query := fmt.Sprintf("select %s from %s", blockColumns, s.table)
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by created_at, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	out := make([]block.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("list blocks: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return out, nil
}

func (s *SQL) Insert(ctx context.Context, b block.Block) error {
	return s.insert(ctx, s.db, b)
}

func (s *SQL) insert(ctx context.Context, q execer, b block.Block) error {
	args, err := blockArgs(b)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, s.insertSQL(""), args...); err != nil {
		if s.isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, b.ID)
		}
		return fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return nil
}

// InsertIfAbsent опирается на уникальный индекс (board_id, synced_with): параллельные
// синхронизации вставят строку ровно один раз.
func (s *SQL) InsertIfAbsent(ctx context.Context, b block.Block) (bool, error) {
	args, err := blockArgs(b)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, s.insertSQL(" on conflict do nothing"), args...)
	if err != nil {
		return false, fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert block %s: %w", b.ID, err)
	}
	return n > 0, nil
}

func (s *SQL) LatestSyncedCreatedAt(ctx context.Context, boardID string, typ block.Type) (int64, bool, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		s.rebind(fmt.Sprintf("select max(created_at) from %s where board_id = ? and type = ? and synced_with is not null", s.table)),
		boardID, string(typ)).Scan(&ms)
	if err != nil {
		return 0, false, fmt.Errorf("latest created_at for %s: %w", boardID, err)
	}
	return ms.Int64, ms.Valid, nil
}

// ApplyPatches применяет патчи в одной транзакции. Update читает текущую версию,
// применяет изменения и перезаписывает строку.
func (s *SQL) ApplyPatches(ctx context.Context, patches []block.Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range patches {
		if err := s.applyTx(ctx, tx, p); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQL) applyTx(ctx context.Context, tx *sql.Tx, p block.Patch) error {
	switch p.Op {
	case block.OpInsert:
		if p.Block == nil {
			return fmt.Errorf("insert patch %s without block", p.ID)
		}
		return s.insert(ctx, tx, *p.Block)
	case block.OpDelete:
		res, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf("delete from %s where id = ?", s.table)), p.ID)
		if err != nil {
			return fmt.Errorf("delete block %s: %w", p.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		return nil
	case block.OpUpdate:
		cur, err := s.get(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := block.Apply(&cur, p); err != nil {
			return err
		}
		args, err := blockArgs(cur)
		if err != nil {
			return err
		}
		fieldsArg := "?"
		if s.dialect == pg.Postgres {
			fieldsArg = "?::jsonb"
		}
		q := s.rebind(fmt.Sprintf(
			"update %s set title = ?, fields = %s, synced_with = ?, updated_at = ?, updated_by = ? where id = ?",
			s.table, fieldsArg))
		// args: 0 id, 4 title, 5 fields, 6 synced, 8 updated_at, 10 updated_by
		if _, err := tx.ExecContext(ctx, q, args[4], args[5], args[6], args[8], args[10], cur.ID); err != nil {
			if s.isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, cur.ID)
			}
			return fmt.Errorf("update block %s: %w", cur.ID, err)
		}
		return nil
	}
	return fmt.Errorf("unknown patch op %q", p.Op)
}

// OpenSQLite открывает файл sqlite (modernc, без cgo) и создаёт схему.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	// одна запись за раз, иначе SQLITE_BUSY под нагрузкой
	db.SetMaxOpenConns(1)
	s := NewSQL(db, pg.SQLite, "")
	if err := s.Migrate(ctx, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

// OpenPostgres открывает postgres и, если migrate, создаёт схему.
func OpenPostgres(ctx context.Context, url, schema string, migrate bool) (*SQL, error) {
	db, err := pg.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	s := NewSQL(db, pg.Postgres, schema)
	if migrate {
		if err := s.Migrate(ctx, schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return s, nil
}

var _ BlockStore = (*SQL)(nil)
