package devstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"obsdash/internal/adapters/recordstore"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// SQLiteStore implements the record-store operations over SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an initialized database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const itemColumns = `id, title, event_name, topic, observed_by, observation,
	observation_date, classification, submitted_opr, dotmlpf, discussion,
	recommendations, implications, keywords, status, editor, modified`

// ListItems returns every item with user references expanded, ordered by
// status the way the reports list serves its default view.
// PRE: none
// POST: Returns all items; an empty list is not an error
func (s *SQLiteStore) ListItems(ctx context.Context) ([]recordstore.WireItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM item ORDER BY status, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []recordstore.WireItem
	for rows.Next() {
		item, err := s.scanItem(ctx, rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem retrieves one item by id.
// PRE: id > 0
// POST: Returns the item or sql.ErrNoRows
func (s *SQLiteStore) GetItem(ctx context.Context, id int) (recordstore.WireItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM item WHERE id = ?", id)
	if err != nil {
		return recordstore.WireItem{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return recordstore.WireItem{}, sql.ErrNoRows
	}
	return s.scanItem(ctx, rows)
}

// InsertItem stores a new item, assigning its id and Modified timestamp.
// The caller's identity is not transmitted on this surface, so Editor is
// stored as posted.
// PRE: w has been validated by the caller
// POST: Returns the stored item with id and Modified set
func (s *SQLiteStore) InsertItem(ctx context.Context, w recordstore.WireItem) (recordstore.WireItem, error) {
	modified := timeNow().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO item (title, event_name, topic, observed_by, observation,
			observation_date, classification, submitted_opr, dotmlpf, discussion,
			recommendations, implications, keywords, status, editor, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.Title, w.EventName, w.Topic, w.ObservedBy.ID, w.Observation,
		w.ObservationDate, w.Classification, w.SubmittedOPR, w.DOTMLPF,
		w.Discussion, w.Recommendations, w.Implications, w.Keywords, w.Status,
		w.Editor.ID, modified)
	if err != nil {
		return recordstore.WireItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return recordstore.WireItem{}, err
	}
	if err := s.saveRecipients(ctx, int(id), w.EmailRecipients); err != nil {
		return recordstore.WireItem{}, err
	}
	return s.GetItem(ctx, int(id))
}

// UpdateItem replaces an existing item's fields and refreshes Modified.
// PRE: id identifies an existing item
// POST: Returns the stored item, or sql.ErrNoRows if absent
func (s *SQLiteStore) UpdateItem(ctx context.Context, id int, w recordstore.WireItem) (recordstore.WireItem, error) {
	modified := timeNow().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE item SET title=?, event_name=?, topic=?, observed_by=?,
			observation=?, observation_date=?, classification=?, submitted_opr=?,
			dotmlpf=?, discussion=?, recommendations=?, implications=?,
			keywords=?, status=?, editor=?, modified=?
		WHERE id=?`,
		w.Title, w.EventName, w.Topic, w.ObservedBy.ID, w.Observation,
		w.ObservationDate, w.Classification, w.SubmittedOPR, w.DOTMLPF,
		w.Discussion, w.Recommendations, w.Implications, w.Keywords, w.Status,
		w.Editor.ID, modified, id)
	if err != nil {
		return recordstore.WireItem{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return recordstore.WireItem{}, err
	}
	if n == 0 {
		return recordstore.WireItem{}, sql.ErrNoRows
	}
	if err := s.saveRecipients(ctx, id, w.EmailRecipients); err != nil {
		return recordstore.WireItem{}, err
	}
	return s.GetItem(ctx, id)
}

// DeleteItem removes an item.
// PRE: id > 0
// POST: Item and its recipient rows are gone; sql.ErrNoRows if absent
func (s *SQLiteStore) DeleteItem(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM item WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM item_recipient WHERE item_id = ?", id)
	return err
}

// FieldChoices returns a choice field's values in schema order.
// PRE: none
// POST: Returns the choices; sql.ErrNoRows for an unknown field
func (s *SQLiteStore) FieldChoices(ctx context.Context, field string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT choice FROM field_choice WHERE field = ? ORDER BY position", field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var choices []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		choices = append(choices, c)
	}
	if len(choices) == 0 {
		return nil, sql.ErrNoRows
	}
	return choices, rows.Err()
}

// IsGroupMember reports membership of a named group.
func (s *SQLiteStore) IsGroupMember(ctx context.Context, group string, userID int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM group_member WHERE group_name = ? AND user_id = ?",
		group, userID).Scan(&n)
	return n > 0, err
}

// IsOwner reports membership of the default owner group.
func (s *SQLiteStore) IsOwner(ctx context.Context, userID int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM owner WHERE user_id = ?", userID).Scan(&n)
	return n > 0, err
}

// GetUser resolves a store user.
// PRE: id > 0
// POST: Returns the user or sql.ErrNoRows
func (s *SQLiteStore) GetUser(ctx context.Context, id int) (recordstore.WireUser, error) {
	var u recordstore.WireUser
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, email FROM user WHERE id = ?", id).
		Scan(&u.ID, &u.Title, &u.EMail)
	return u, err
}

// GetFile returns a stored file's raw bytes.
// PRE: path is non-empty
// POST: Returns the content or sql.ErrNoRows
func (s *SQLiteStore) GetFile(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM file WHERE path = ?", path).Scan(&content)
	return content, err
}

// RecordMail appends one message to the outbound log. The devstore delivers
// nothing; the log is the delivery.
// PRE: subject is non-empty
// POST: Message row persisted
func (s *SQLiteStore) RecordMail(ctx context.Context, recipients, subject, body string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO outbound_mail (recipients, subject, body, sent_at) VALUES (?, ?, ?, ?)",
		recipients, subject, body, timeNow().UTC().Format(time.RFC3339))
	return err
}

// --- Seed helpers for development and tests ---

// AddUser inserts or replaces a user.
func (s *SQLiteStore) AddUser(ctx context.Context, id int, title, email string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO user (id, title, email) VALUES (?, ?, ?)", id, title, email)
	return err
}

// AddOwner adds a user to the default owner group.
func (s *SQLiteStore) AddOwner(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO owner (user_id) VALUES (?)", userID)
	return err
}

// AddGroupMember adds a user to a named group.
func (s *SQLiteStore) AddGroupMember(ctx context.Context, group string, userID int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO group_member (group_name, user_id) VALUES (?, ?)", group, userID)
	return err
}

// PutFile stores a file's content at a site-relative path.
func (s *SQLiteStore) PutFile(ctx context.Context, path string, content []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO file (path, content) VALUES (?, ?)", path, content)
	return err
}

// scanItem reads one item row and expands its user references.
func (s *SQLiteStore) scanItem(ctx context.Context, rows *sql.Rows) (recordstore.WireItem, error) {
	var w recordstore.WireItem
	var observedBy, editor int
	err := rows.Scan(&w.ID, &w.Title, &w.EventName, &w.Topic, &observedBy,
		&w.Observation, &w.ObservationDate, &w.Classification, &w.SubmittedOPR,
		&w.DOTMLPF, &w.Discussion, &w.Recommendations, &w.Implications,
		&w.Keywords, &w.Status, &editor, &w.Modified)
	if err != nil {
		return recordstore.WireItem{}, err
	}
	w.ObservedBy = s.userRef(ctx, observedBy)
	w.Editor = s.userRef(ctx, editor)

	recipRows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM item_recipient WHERE item_id = ? ORDER BY position", w.ID)
	if err != nil {
		return recordstore.WireItem{}, err
	}
	defer recipRows.Close()
	for recipRows.Next() {
		var uid int
		if err := recipRows.Scan(&uid); err != nil {
			return recordstore.WireItem{}, err
		}
		w.EmailRecipients = append(w.EmailRecipients, s.userRef(ctx, uid))
	}
	return w, recipRows.Err()
}

// userRef expands a user id; an unknown id yields a bare reference rather
// than an error, matching how the store renders deleted users.
func (s *SQLiteStore) userRef(ctx context.Context, id int) recordstore.WireUser {
	if id == 0 {
		return recordstore.WireUser{}
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return recordstore.WireUser{ID: id}
	}
	return u
}

// saveRecipients replaces an item's recipient rows.
func (s *SQLiteStore) saveRecipients(ctx context.Context, itemID int, users []recordstore.WireUser) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM item_recipient WHERE item_id = ?", itemID); err != nil {
		return err
	}
	for i, u := range users {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO item_recipient (item_id, position, user_id) VALUES (?, ?, ?)",
			itemID, i, u.ID)
		if err != nil {
			return fmt.Errorf("failed to save recipient %d: %w", u.ID, err)
		}
	}
	return nil
}
