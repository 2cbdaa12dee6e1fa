package memory

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
)

// SQLStore is a durable Manager backend on top of modernc.org/sqlite (a
// pure-Go driver, no cgo). Unlike InMemoryStore, history written here
// survives process restarts and can be shared across flow runs — spec §3
// notes memory "may outlive a flow (backed by DB or session)". Writes for a
// given node are serialized per spec §5's "serialize writes per
// (userScope, nodeId)" rule, approximated here as per-node since this store
// has no separate user scope.
type SQLStore struct {
	id       string
	db       *sql.DB
	priority int

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// NewSQLStore opens (and migrates) a SQLite-backed memory store at path.
// Use ":memory:" for an ephemeral but still SQL-backed store in tests. id is
// the resource id used when this store is docked onto a node.
func NewSQLStore(id, path string, priority int) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "open sqlite memory store").
			WithComponent("memory.sqlite").WithOperation("open").WithContext("path", path)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS node_history (
	node_id    TEXT NOT NULL,
	message_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  INTEGER NOT NULL,
	feedback   TEXT NOT NULL DEFAULT '',
	seq        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_node_history_node ON node_history(node_id, seq);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodeInternal, "migrate sqlite memory store").
			WithComponent("memory.sqlite").WithOperation("migrate")
	}

	return &SQLStore{
		id:       id,
		db:       db,
		priority: priority,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// ID implements engine.Resource so a memory store can be docked directly
// onto a node.
func (s *SQLStore) ID() string { return s.id }

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) nodeLock(nodeID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[nodeID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[nodeID] = l
	}
	return l
}

func (s *SQLStore) LoadNodeHistory(ctx context.Context, nodeID string) ([]flowtypes.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, timestamp, feedback
		FROM node_history WHERE node_id = ? ORDER BY seq ASC`, nodeID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "load node history").
			WithComponent("memory.sqlite").WithOperation("load_node_history").WithContext("node_id", nodeID)
	}
	defer rows.Close()

	var out []flowtypes.Message
	for rows.Next() {
		var m flowtypes.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Timestamp, &m.Feedback); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan node history row").
				WithComponent("memory.sqlite").WithOperation("load_node_history")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendNodeHistory(ctx context.Context, nodeID string, msg flowtypes.Message) error {
	lock := s.nodeLock(nodeID)
	lock.Lock()
	defer lock.Unlock()

	var nextSeq int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM node_history WHERE node_id = ?`, nodeID)
	if err := row.Scan(&nextSeq); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "compute next history sequence").
			WithComponent("memory.sqlite").WithOperation("append_node_history").WithContext("node_id", nodeID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_history (node_id, message_id, role, content, timestamp, feedback, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nodeID, msg.ID, msg.Role, msg.Content, msg.Timestamp, msg.Feedback, nextSeq)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "append node history").
			WithComponent("memory.sqlite").WithOperation("append_node_history").WithContext("node_id", nodeID)
	}
	return nil
}

func (s *SQLStore) SetFeedback(ctx context.Context, nodeID, messageID, feedback string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE node_history SET feedback = ? WHERE node_id = ? AND message_id = ?`,
		feedback, nodeID, messageID)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "set feedback").
			WithComponent("memory.sqlite").WithOperation("set_feedback")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeInternal, "read rows affected").
			WithComponent("memory.sqlite").WithOperation("set_feedback")
	}
	return n > 0, nil
}

func (s *SQLStore) ResetNodeHistory(ctx context.Context, nodeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM node_history WHERE node_id = ?`, nodeID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "reset node history").
			WithComponent("memory.sqlite").WithOperation("reset_node_history").WithContext("node_id", nodeID)
	}
	return nil
}

func (s *SQLStore) GetPriority() int {
	return s.priority
}
