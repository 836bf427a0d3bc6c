package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id               TEXT PRIMARY KEY,
    title            TEXT NOT NULL,
    author           TEXT NOT NULL,
    genre            TEXT NOT NULL,
    media_type       TEXT NOT NULL DEFAULT 'Book' CHECK (media_type IN ('Book', 'E-Book', 'DVD')),
    copies_total     INTEGER NOT NULL CHECK (copies_total >= 1),
    copies_available INTEGER NOT NULL CHECK (copies_available >= 0 AND copies_available <= copies_total),
    avg_rating       REAL,
    image            BLOB,
    image_mime       TEXT,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS item_tags (
    item_id TEXT NOT NULL REFERENCES items(id),
    tag     TEXT NOT NULL,
    PRIMARY KEY (item_id, tag)
);

CREATE TABLE IF NOT EXISTS members (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT NOT NULL,
    active     INTEGER NOT NULL DEFAULT 1,
    balance    TEXT NOT NULL DEFAULT '0',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS member_pref_tags (
    member_id TEXT NOT NULL REFERENCES members(id),
    tag       TEXT NOT NULL,
    PRIMARY KEY (member_id, tag)
);

CREATE TABLE IF NOT EXISTS member_pref_authors (
    member_id TEXT NOT NULL REFERENCES members(id),
    author    TEXT NOT NULL,
    PRIMARY KEY (member_id, author)
);

CREATE TABLE IF NOT EXISTS loans (
    member_id   TEXT NOT NULL REFERENCES members(id),
    item_id     TEXT NOT NULL REFERENCES items(id),
    borrowed_at DATETIME NOT NULL,
    due_at      DATETIME NOT NULL,
    returned_at DATETIME,
    PRIMARY KEY (member_id, item_id)
);

CREATE TABLE IF NOT EXISTS ledger (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    member_id   TEXT NOT NULL,
    item_id     TEXT NOT NULL,
    borrowed_at DATETIME NOT NULL,
    due_at      DATETIME NOT NULL,
    returned    INTEGER NOT NULL DEFAULT 0,
    returned_at DATETIME
);

CREATE TABLE IF NOT EXISTS waitlist (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id   TEXT NOT NULL REFERENCES items(id),
    member_id TEXT NOT NULL REFERENCES members(id),
    UNIQUE (item_id, member_id)
);

CREATE TABLE IF NOT EXISTS reservations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    member_id   TEXT NOT NULL REFERENCES members(id),
    item_id     TEXT NOT NULL REFERENCES items(id),
    reserved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (member_id, item_id)
);

CREATE TABLE IF NOT EXISTS ratings (
    item_id   TEXT NOT NULL REFERENCES items(id),
    member_id TEXT NOT NULL REFERENCES members(id),
    stars     INTEGER NOT NULL CHECK (stars BETWEEN 1 AND 5),
    PRIMARY KEY (item_id, member_id)
);

CREATE TABLE IF NOT EXISTS reminders (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    member_id  TEXT NOT NULL,
    item_id    TEXT NOT NULL,
    due_at     DATETIME NOT NULL,
    message    TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
