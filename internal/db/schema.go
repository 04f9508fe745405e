package db

// SchemaVersion is the current database schema version
const SchemaVersion = 1

const schema = `
-- Authors
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    image_name TEXT NOT NULL
);

-- Posts, position keeps feed order
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    created_at DATETIME NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    user_id TEXT,
    last_vote_at DATETIME,
    FOREIGN KEY (user_id) REFERENCES users(id)
);

-- Options per post
CREATE TABLE IF NOT EXISTS post_options (
    post_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    image_name TEXT NOT NULL,
    voted INTEGER NOT NULL DEFAULT 0 CHECK (voted >= 0),
    PRIMARY KEY (post_id, id),
    FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_posts_position ON posts(position);
CREATE INDEX IF NOT EXISTS idx_post_options_post ON post_options(post_id, position);

-- Schema info
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
