// Package sqlitestore implements ports.Store on top of an embedded,
// pure-Go SQLite engine, following the teacher's single-writer,
// prepared-statement, upsert-heavy storage style
// (internal/adapters/storage/sqlite.go) generalized from one wide
// opportunities table to the eight narrow tables this domain persists.
package sqlitestore

const schema = `
CREATE TABLE IF NOT EXISTS trade_executions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    signal_id      TEXT    NOT NULL,
    market_id      TEXT    NOT NULL,
    token_id       TEXT    NOT NULL,
    side           TEXT    NOT NULL,
    amount_usd     REAL    NOT NULL DEFAULT 0,
    entry_price    REAL    NOT NULL DEFAULT 0,
    fill_price     REAL,
    exit_price     REAL,
    pnl_usd        REAL,
    pnl_pct        REAL,
    status         TEXT    NOT NULL DEFAULT 'open'
                   CHECK (status IN ('open','closed','cancelled','failed')),
    dry_run        INTEGER NOT NULL DEFAULT 0,
    order_id       TEXT    NOT NULL DEFAULT '',
    edge           REAL    NOT NULL DEFAULT 0,
    confidence     REAL    NOT NULL DEFAULT 0,
    quality_score  REAL    NOT NULL DEFAULT 0,
    regime         TEXT    NOT NULL DEFAULT '',
    category       TEXT    NOT NULL DEFAULT '',
    sizing_method  TEXT    NOT NULL DEFAULT '',
    slippage_bps   REAL,
    close_reason   TEXT    NOT NULL DEFAULT '',
    opened_at      DATETIME NOT NULL,
    closed_at      DATETIME
);
CREATE INDEX IF NOT EXISTS idx_exec_status   ON trade_executions(status);
CREATE INDEX IF NOT EXISTS idx_exec_market   ON trade_executions(market_id);
CREATE INDEX IF NOT EXISTS idx_exec_signal   ON trade_executions(signal_id);
CREATE INDEX IF NOT EXISTS idx_exec_opened   ON trade_executions(opened_at DESC);

CREATE TABLE IF NOT EXISTS trade_audit_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_id INTEGER,
    event_type   TEXT    NOT NULL,
    detail_json  TEXT    NOT NULL DEFAULT '{}',
    dry_run      INTEGER NOT NULL DEFAULT 0,
    at           DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_exec ON trade_audit_log(execution_id);
CREATE INDEX IF NOT EXISTS idx_audit_type ON trade_audit_log(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_at   ON trade_audit_log(at DESC);

CREATE TABLE IF NOT EXISTS bot_control (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    state      TEXT    NOT NULL DEFAULT 'stopped',
    changed_at DATETIME NOT NULL,
    reason     TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trading_config (
    key        TEXT PRIMARY KEY,
    value      REAL NOT NULL,
    updated_at DATETIME NOT NULL,
    updated_by TEXT NOT NULL DEFAULT 'system'
);

CREATE TABLE IF NOT EXISTS decision_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    signal_id       TEXT    NOT NULL,
    market_id       TEXT    NOT NULL,
    outcome         TEXT    NOT NULL,
    blocking_gate   TEXT    NOT NULL DEFAULT '',
    gates_passed    INTEGER NOT NULL DEFAULT 0,
    gates_total     INTEGER NOT NULL DEFAULT 0,
    scores_json     TEXT    NOT NULL DEFAULT '{}',
    gate_trace_json TEXT    NOT NULL DEFAULT '[]',
    signal_json     TEXT    NOT NULL DEFAULT '{}',
    at              DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_outcome ON decision_log(outcome);
CREATE INDEX IF NOT EXISTS idx_decision_at      ON decision_log(at DESC);

CREATE TABLE IF NOT EXISTS webhooks (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_email   TEXT    NOT NULL,
    url           TEXT    NOT NULL,
    name          TEXT    NOT NULL DEFAULT '',
    active        INTEGER NOT NULL DEFAULT 1,
    success_count INTEGER NOT NULL DEFAULT 0,
    fail_count    INTEGER NOT NULL DEFAULT 0,
    last_error    TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_webhooks_owner ON webhooks(owner_email);

CREATE TABLE IF NOT EXISTS email_prefs (
    owner_email          TEXT PRIMARY KEY,
    alerts_enabled       INTEGER NOT NULL DEFAULT 1,
    min_confidence       REAL    NOT NULL DEFAULT 0,
    categories_json      TEXT    NOT NULL DEFAULT '[]',
    max_alerts_per_hour  INTEGER NOT NULL DEFAULT 10
);

CREATE TABLE IF NOT EXISTS webhook_queue (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    webhook_id   INTEGER NOT NULL,
    event        TEXT    NOT NULL,
    payload      BLOB    NOT NULL,
    attempts     INTEGER NOT NULL DEFAULT 0,
    status       TEXT    NOT NULL DEFAULT 'queued'
                 CHECK (status IN ('queued','in_flight','delivered','failed','dead_letter')),
    last_error   TEXT    NOT NULL DEFAULT '',
    enqueued_at  DATETIME NOT NULL,
    delivered_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_wq_status ON webhook_queue(status);
`
