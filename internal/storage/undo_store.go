package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// MaxUndoNodes bounds the undo history kept per session.
const MaxUndoNodes = 40

// UndoNode is one design-space snapshot in a session's undo tree.
type UndoNode struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	ParentID     *string   `json:"parentId"`
	Label        string    `json:"label"`
	SnapshotJSON string    `json:"snapshotJson"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UndoTree is the full tree for a session plus the current position.
type UndoTree struct {
	Nodes     []UndoNode `json:"nodes"`
	CurrentID string     `json:"currentId"`
	RootID    string     `json:"rootId"`
}

// Node returns the node with the given id, or nil.
func (t *UndoTree) Node(id string) *UndoNode {
	for i := range t.Nodes {
		if t.Nodes[i].ID == id {
			return &t.Nodes[i]
		}
	}
	return nil
}

// LatestChild returns the most recent child of id, or nil. Redo follows it.
func (t *UndoTree) LatestChild(id string) *UndoNode {
	var child *UndoNode
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.ParentID != nil && *n.ParentID == id {
			child = n
		}
	}
	return child
}

// UndoStore manages undo history in SQLite.
type UndoStore struct {
	db *DB
}

func NewUndoStore(db *DB) *UndoStore {
	return &UndoStore{db: db}
}

// LoadTree returns the undo tree for a session, or nil when none exists.
func (s *UndoStore) LoadTree(sessionID string) (*UndoTree, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, session_id, parent_id, label, snapshot_json, created_at
		 FROM undo_nodes WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load undo nodes: %w", err)
	}
	defer rows.Close()

	var nodes []UndoNode
	var rootID string
	for rows.Next() {
		var n UndoNode
		if err := rows.Scan(&n.ID, &n.SessionID, &n.ParentID, &n.Label, &n.SnapshotJSON, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan undo node: %w", err)
		}
		if n.ParentID == nil && rootID == "" {
			rootID = n.ID
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	var currentID string
	err = s.db.conn.QueryRow(
		`SELECT current_node_id FROM undo_state WHERE session_id = ?`, sessionID,
	).Scan(&currentID)
	if err != nil {
		currentID = rootID
	}

	return &UndoTree{
		Nodes:     nodes,
		CurrentID: currentID,
		RootID:    rootID,
	}, nil
}

// PushNode adds a snapshot under parentID and moves the current position to
// it. An empty parentID starts a new root.
func (s *UndoStore) PushNode(sessionID, nodeID, parentID, label, snapshotJSON string) (*UndoNode, error) {
	now := time.Now()

	var pID *string
	if parentID != "" {
		pID = &parentID
	}

	_, err := s.db.conn.Exec(
		`INSERT INTO undo_nodes (id, session_id, parent_id, label, snapshot_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nodeID, sessionID, pID, label, snapshotJSON, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert undo node: %w", err)
	}

	if err := s.GoTo(sessionID, nodeID); err != nil {
		return nil, fmt.Errorf("update undo state: %w", err)
	}

	s.pruneIfNeeded(sessionID, MaxUndoNodes)

	return &UndoNode{
		ID:           nodeID,
		SessionID:    sessionID,
		ParentID:     pID,
		Label:        label,
		SnapshotJSON: snapshotJSON,
		CreatedAt:    now,
	}, nil
}

// GoTo updates the current position pointer.
func (s *UndoStore) GoTo(sessionID, nodeID string) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO undo_state (session_id, current_node_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET current_node_id = excluded.current_node_id`,
		sessionID, nodeID,
	)
	return err
}

// ClearSession removes all undo data for a session.
func (s *UndoStore) ClearSession(sessionID string) error {
	_, _ = s.db.conn.Exec(`DELETE FROM undo_state WHERE session_id = ?`, sessionID)
	_, err := s.db.conn.Exec(`DELETE FROM undo_nodes WHERE session_id = ?`, sessionID)
	return err
}

// pruneIfNeeded removes the oldest nodes once a session holds more than
// maxNodes, re-parenting their children. The current node is never removed.
func (s *UndoStore) pruneIfNeeded(sessionID string, maxNodes int) {
	var count int
	s.db.conn.QueryRow(`SELECT COUNT(*) FROM undo_nodes WHERE session_id = ?`, sessionID).Scan(&count)
	if count <= maxNodes {
		return
	}

	toDelete := count - maxNodes

	// Read the current node before opening the cursor: one connection only.
	var currentID string
	s.db.conn.QueryRow(`SELECT current_node_id FROM undo_state WHERE session_id = ?`, sessionID).Scan(&currentID)

	rows, err := s.db.conn.Query(
		`SELECT id FROM undo_nodes WHERE session_id = ?
		 ORDER BY created_at ASC, rowid ASC LIMIT ?`, sessionID, toDelete,
	)
	if err != nil {
		return
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if id != currentID {
			ids = append(ids, id)
		}
	}
	rows.Close()

	for _, id := range ids {
		var parentID sql.NullString
		s.db.conn.QueryRow(`SELECT parent_id FROM undo_nodes WHERE id = ?`, id).Scan(&parentID)

		if parentID.Valid {
			s.db.conn.Exec(`UPDATE undo_nodes SET parent_id = ? WHERE parent_id = ?`, parentID.String, id)
		} else {
			s.db.conn.Exec(`UPDATE undo_nodes SET parent_id = NULL WHERE parent_id = ?`, id)
		}

		s.db.conn.Exec(`DELETE FROM undo_nodes WHERE id = ?`, id)
	}
}
