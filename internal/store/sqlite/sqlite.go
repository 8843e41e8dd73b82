package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/chattu-app/chattu-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	bio           TEXT NOT NULL DEFAULT '',
	avatar_id     TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	is_blocked    BOOLEAN NOT NULL DEFAULT 0,
	flagged       BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL DEFAULT '',
	is_group   BOOLEAN NOT NULL DEFAULT 0,
	creator_id INTEGER,
	direct_key TEXT UNIQUE,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (creator_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS chat_members (
	chat_id   INTEGER NOT NULL,
	user_id   INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chat_id, user_id),
	FOREIGN KEY (chat_id) REFERENCES chats(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id     INTEGER NOT NULL,
	sender_id   INTEGER NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (chat_id) REFERENCES chats(id),
	FOREIGN KEY (sender_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS friend_requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL,
	receiver_id INTEGER NOT NULL,
	pair_key    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_requests_receiver ON friend_requests(receiver_id, status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_pending_pair
	ON friend_requests(pair_key) WHERE status = 'pending';
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternative schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintErr reports whether err is a SQLite uniqueness violation.
func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// ==== UserStore implementation ====

// CreateUser creates a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *store.User) (*store.User, error) {
	query := `
		INSERT INTO users (name, username, email, password_hash, bio, avatar_id, avatar_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		u.Name, u.Username, u.Email, u.PasswordHash, u.Bio, u.AvatarID, u.AvatarURL)
	if err != nil {
		if isConstraintErr(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE id = ?", id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, userSelect+" WHERE username = ?", username))
}

const userSelect = `
	SELECT id, name, username, email, password_hash, bio, avatar_id, avatar_url,
	       is_blocked, flagged, created_at
	FROM users`

// scanUserColumns reads one userSelect row; the destination list must stay in
// sync with the column list above.
func scanUserColumns(row interface{ Scan(dest ...any) error }, u *store.User) error {
	return row.Scan(
		&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.Bio,
		&u.AvatarID, &u.AvatarURL, &u.IsBlocked, &u.Flagged, &u.CreatedAt,
	)
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	if err := scanUserColumns(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// SearchUsers searches for users whose name or username contains the query.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		userSelect+" WHERE name LIKE ? OR username LIKE ? ORDER BY username LIMIT 50",
		pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		if err := scanUserColumns(rows, &u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// SetUserModeration updates the moderation flags of a user.
func (s *SQLiteStore) SetUserModeration(ctx context.Context, id int64, blocked, flagged bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_blocked = ?, flagged = ? WHERE id = ?`, blocked, flagged, id)
	if err != nil {
		return fmt.Errorf("update moderation flags: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== ChatStore implementation ====

// CreateGroupChat creates a group chat with the given ordered member set.
func (s *SQLiteStore) CreateGroupChat(ctx context.Context, name string, creatorID int64, memberIDs []int64) (*store.Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO chats (name, is_group, creator_id) VALUES (?, 1, ?)`, name, creatorID)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	chatID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if err := insertMembers(ctx, tx, chatID, memberIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetChatByID(ctx, chatID)
}

// CreateDirectChat creates a two-member direct chat keyed by directKey.
func (s *SQLiteStore) CreateDirectChat(ctx context.Context, directKey string, userA, userB int64) (*store.Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO chats (is_group, direct_key) VALUES (0, ?)`, directKey)
	if err != nil {
		if isConstraintErr(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert direct chat: %w", err)
	}
	chatID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if err := insertMembers(ctx, tx, chatID, []int64{userA, userB}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetChatByID(ctx, chatID)
}

func insertMembers(ctx context.Context, tx *sql.Tx, chatID int64, memberIDs []int64) error {
	for pos, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id, position) VALUES (?, ?, ?)`,
			chatID, uid, pos); err != nil {
			return fmt.Errorf("insert member %d: %w", uid, err)
		}
	}
	return nil
}

const chatSelect = `
	SELECT id, name, is_group, creator_id, direct_key, version, created_at
	FROM chats`

// GetChatByID retrieves a chat with its members in stored order.
func (s *SQLiteStore) GetChatByID(ctx context.Context, id int64) (*store.Chat, error) {
	chat, err := s.scanChat(s.db.QueryRowContext(ctx, chatSelect+" WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	if chat.Members, err = s.chatMembers(ctx, chat.ID); err != nil {
		return nil, err
	}
	return chat, nil
}

// GetDirectChat retrieves a direct chat by its direct key.
func (s *SQLiteStore) GetDirectChat(ctx context.Context, directKey string) (*store.Chat, error) {
	chat, err := s.scanChat(s.db.QueryRowContext(ctx, chatSelect+" WHERE direct_key = ?", directKey))
	if err != nil {
		return nil, err
	}
	if chat.Members, err = s.chatMembers(ctx, chat.ID); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *SQLiteStore) scanChat(row *sql.Row) (*store.Chat, error) {
	var c store.Chat
	err := row.Scan(&c.ID, &c.Name, &c.IsGroup, &c.CreatorID, &c.DirectKey, &c.Version, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query chat: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) chatMembers(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM chat_members WHERE chat_id = ? ORDER BY position`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, uid)
	}
	return members, rows.Err()
}

// ListChatsForUser lists all chats the user is a member of.
func (s *SQLiteStore) ListChatsForUser(ctx context.Context, userID int64) ([]*store.Chat, error) {
	return s.listChats(ctx,
		chatSelect+` WHERE id IN (SELECT chat_id FROM chat_members WHERE user_id = ?) ORDER BY id`,
		userID)
}

// ListGroupsForUser lists group chats the user is a member of.
func (s *SQLiteStore) ListGroupsForUser(ctx context.Context, userID int64) ([]*store.Chat, error) {
	return s.listChats(ctx,
		chatSelect+` WHERE is_group = 1 AND id IN (SELECT chat_id FROM chat_members WHERE user_id = ?) ORDER BY id`,
		userID)
}

func (s *SQLiteStore) listChats(ctx context.Context, query string, args ...any) ([]*store.Chat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []*store.Chat
	for rows.Next() {
		var c store.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.IsGroup, &c.CreatorID, &c.DirectKey, &c.Version, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range chats {
		if c.Members, err = s.chatMembers(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

// ReplaceChatMembers atomically replaces the member set of a chat guarded by
// its version.
func (s *SQLiteStore) ReplaceChatMembers(ctx context.Context, chatID, expectVersion int64, creatorID *int64, memberIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, chatID, expectVersion, "creator_id = ?", creatorID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	if err := insertMembers(ctx, tx, chatID, memberIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RenameChat atomically renames a chat guarded by its version.
func (s *SQLiteStore) RenameChat(ctx context.Context, chatID, expectVersion int64, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, chatID, expectVersion, "name = ?", name); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// bumpVersion applies `SET <assign>, version = version + 1` to a chat provided
// its version still matches. Distinguishes a lost race from a missing chat.
func bumpVersion(ctx context.Context, tx *sql.Tx, chatID, expectVersion int64, assign string, arg any) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE chats SET `+assign+`, version = version + 1 WHERE id = ? AND version = ?`,
		arg, chatID, expectVersion)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM chats WHERE id = ?`, chatID).Scan(&exists); err != nil {
			return fmt.Errorf("check chat exists: %w", err)
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrVersionConflict
	}
	return nil
}

// DeleteChat deletes a chat, its membership and its messages, guarded by the
// chat's version so a racing membership mutation is not silently discarded.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID, expectVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM chats WHERE id = ? AND version = ?`, chatID, expectVersion)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM chats WHERE id = ?`, chatID).Scan(&exists); err != nil {
			return fmt.Errorf("check chat exists: %w", err)
		}
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_members WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its ID and timestamp.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, body, attachments) VALUES (?, ?, ?, ?)`,
		msg.ChatID, msg.SenderID, msg.Body, string(attachments))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	return s.db.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE id = ?`, id).Scan(&msg.CreatedAt)
}

// ListMessages retrieves messages of a chat, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, body, attachments, created_at
		FROM messages
		WHERE chat_id = ?`
	args := []any{chatID}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var m store.Message
		var attachments string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Body, &attachments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// ListAttachmentIDs returns the attachment IDs of every message in a chat.
func (s *SQLiteStore) ListAttachmentIDs(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attachments FROM messages WHERE chat_id = ? AND attachments != '[]'`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan attachments: %w", err)
		}
		var atts []store.Attachment
		if err := json.Unmarshal([]byte(raw), &atts); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
		for _, a := range atts {
			ids = append(ids, a.ID)
		}
	}
	return ids, rows.Err()
}

// ==== RequestStore implementation ====

const requestSelect = `
	SELECT id, sender_id, receiver_id, status, created_at
	FROM friend_requests`

// CreateFriendRequest creates a pending request. The partial unique index on
// pair_key guarantees at most one pending request per unordered pair, so under
// concurrent sends exactly one insert wins.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, senderID, receiverID int64) (*store.FriendRequest, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO friend_requests (sender_id, receiver_id, pair_key) VALUES (?, ?, ?)`,
		senderID, receiverID, store.DirectKey(senderID, receiverID))
	if err != nil {
		if isConstraintErr(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert friend request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetFriendRequest(ctx, id)
}

// GetFriendRequest retrieves a request by ID.
func (s *SQLiteStore) GetFriendRequest(ctx context.Context, id int64) (*store.FriendRequest, error) {
	var r store.FriendRequest
	err := s.db.QueryRowContext(ctx, requestSelect+" WHERE id = ?", id).Scan(
		&r.ID, &r.SenderID, &r.ReceiverID, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query friend request: %w", err)
	}
	return &r, nil
}

// ResolveFriendRequest transitions a request from pending to a terminal status.
func (s *SQLiteStore) ResolveFriendRequest(ctx context.Context, id int64, status store.RequestStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE friend_requests SET status = ? WHERE id = ? AND status = 'pending'`,
		status, id)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetFriendRequest(ctx, id); err != nil {
			return err
		}
		return store.ErrVersionConflict
	}
	return nil
}

// ListPendingRequestsFor lists incoming pending requests for a receiver.
func (s *SQLiteStore) ListPendingRequestsFor(ctx context.Context, receiverID int64) ([]*store.FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		requestSelect+` WHERE receiver_id = ? AND status = 'pending' ORDER BY id DESC`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*store.FriendRequest
	for rows.Next() {
		var r store.FriendRequest
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, &r)
	}
	return requests, rows.Err()
}
