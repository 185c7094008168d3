package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS swap_events (
	chain_id        BIGINT      NOT NULL,
	pool_address    TEXT        NOT NULL,
	tx_hash         TEXT        NOT NULL,
	log_index       BIGINT      NOT NULL,
	block_number    BIGINT      NOT NULL,
	trader          TEXT        NOT NULL,
	direction       TEXT        NOT NULL,
	amount_in       NUMERIC(78) NOT NULL,
	amount_out      NUMERIC(78) NOT NULL,
	reserve_native  NUMERIC(78),
	reserve_token   NUMERIC(78),
	block_ts        BIGINT      NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address, tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS pool_reserves (
	chain_id        BIGINT      NOT NULL,
	pool_address    TEXT        NOT NULL,
	seq             BIGINT      NOT NULL,
	reserve_native  NUMERIC(78) NOT NULL,
	reserve_token   NUMERIC(78) NOT NULL,
	observed_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, pool_address, seq)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	chain_id            BIGINT      NOT NULL,
	pool_address        TEXT        NOT NULL,
	window_size_seconds BIGINT      NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT      NOT NULL,
	buy_count           BIGINT      NOT NULL,
	sell_count          BIGINT      NOT NULL,
	volume_native       NUMERIC(78) NOT NULL,
	volume_token        NUMERIC(78) NOT NULL,
	fee_native          NUMERIC(78) NOT NULL,
	fee_token           NUMERIC(78) NOT NULL,
	close_native        NUMERIC(78),
	close_token         NUMERIC(78),
	close_price         NUMERIC,
	fee_bps             INTEGER     NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT      NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
