package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"simpleSwap/internal/model"
)

// Store provides Postgres persistence for swap events, reserve snapshots
// and window metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutSwapEvents inserts swap events, ignoring ones already stored.
func (s *Store) PutSwapEvents(ctx context.Context, events []model.SwapEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO swap_events (
				chain_id, pool_address, tx_hash, log_index, block_number, trader, direction,
				amount_in, amount_out, reserve_native, reserve_token, block_ts
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric,$10::numeric,$11::numeric,$12)
			ON CONFLICT (chain_id, pool_address, tx_hash, log_index) DO NOTHING
		`,
			int64(ev.ChainID),
			ev.PoolAddress,
			ev.TxHash,
			int64(ev.LogIndex),
			int64(ev.BlockNumber),
			ev.Trader,
			ev.Direction,
			ev.AmountIn,
			ev.AmountOut,
			nullable(ev.ReserveNative),
			nullable(ev.ReserveToken),
			int64(ev.Timestamp),
		)
	}
	return s.execBatch(ctx, batch)
}

// SaveReserves records a reserves snapshot.
func (s *Store) SaveReserves(ctx context.Context, snap model.ReservesSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_reserves (chain_id, pool_address, seq, reserve_native, reserve_token, observed_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
		ON CONFLICT (chain_id, pool_address, seq) DO UPDATE
		SET reserve_native = EXCLUDED.reserve_native,
			reserve_token = EXCLUDED.reserve_token,
			observed_at = EXCLUDED.observed_at
	`, int64(snap.ChainID), snap.PoolAddress, int64(snap.Seq), snap.ReserveNative, snap.ReserveToken, snap.ObservedAt)
	return err
}

// LatestReserves returns the most recent snapshot for a pool.
func (s *Store) LatestReserves(ctx context.Context, chainID uint64, poolAddress string) (model.ReservesSnapshot, bool, error) {
	snap := model.ReservesSnapshot{ChainID: chainID, PoolAddress: poolAddress}
	var seq int64
	row := s.pool.QueryRow(ctx, `
		SELECT seq, reserve_native::text, reserve_token::text, observed_at
		FROM pool_reserves
		WHERE chain_id = $1 AND pool_address = $2
		ORDER BY seq DESC
		LIMIT 1
	`, int64(chainID), poolAddress)
	if err := row.Scan(&seq, &snap.ReserveNative, &snap.ReserveToken, &snap.ObservedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ReservesSnapshot{}, false, nil
		}
		return model.ReservesSnapshot{}, false, err
	}
	snap.Seq = uint64(seq)
	return snap, true, nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, buy_count, sell_count, volume_native, volume_token, fee_native, fee_token,
				close_native, close_token, close_price, fee_bps, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12::numeric,
				$13::numeric,$14::numeric,$15::numeric,$16,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				volume_native = EXCLUDED.volume_native,
				volume_token = EXCLUDED.volume_token,
				fee_native = EXCLUDED.fee_native,
				fee_token = EXCLUDED.fee_token,
				close_native = EXCLUDED.close_native,
				close_token = EXCLUDED.close_token,
				close_price = EXCLUDED.close_price,
				fee_bps = EXCLUDED.fee_bps,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.BuyCount),
			int64(m.SellCount),
			m.VolumeNative,
			m.VolumeToken,
			m.FeeNative,
			m.FeeToken,
			m.CloseNative,
			m.CloseToken,
			m.ClosePrice,
			int32(m.FeeBps),
		)
	}
	return s.execBatch(ctx, batch)
}

func (s *Store) execBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
