package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"

	"github.com/marwinsteiner/trade-accounting/constants"
	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/entity"
)

const dateLayout = "2006-01-02"

type TradeRepository interface {
	// Upsert stores the trade and replaces its legs.
	Upsert(ctx context.Context, trade *entity.Trade, sourcePath string) error
	Get(ctx context.Context, orderID string) (*entity.Trade, error)
	// List returns trades received in [from, to), either bound optional, oldest first.
	List(ctx context.Context, from, to *time.Time) ([]*entity.Trade, error)
	Count(ctx context.Context) (int64, error)
}

type tradeRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewTradeRepository(db *DB, logger *slog.Logger) TradeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &tradeRepo{db: db, logger: logger}
}

var tradeColumns = []string{"order_id", "date_received", "order_type"}

var legColumns = []string{
	"order_id", "leg_index", "action", "quantity", "symbol",
	"expiration", "option_type", "strike", "fill_price", "fill_time",
}

func (r *tradeRepo) Upsert(ctx context.Context, trade *entity.Trade, sourcePath string) error {
	if err := trade.Validate(); err != nil {
		return common.NewAppError("INVALID_TRADE", "refusing to store invalid trade", fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	b := r.db.builder()
	now := time.Now().UTC().Format(utcLayout)

	err := r.db.inTx(ctx, func(tx dialect.Tx) error {
		q, args := b.Insert(tableTrades).
			Columns("order_id", "date_received", "received_utc", "order_type", "source_path", "updated_at").
			Values(
				trade.OrderID,
				trade.DateReceived.Format(time.RFC3339Nano),
				trade.DateReceived.UTC().Format(utcLayout),
				trade.OrderType,
				sourcePath,
				now,
			).
			OnConflict(entsql.ConflictColumns("order_id"), entsql.ResolveWithNewValues()).
			Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("upsert trade: %w", err)
		}

		q, args = b.Delete(tableLegs).Where(entsql.EQ("order_id", trade.OrderID)).Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("clear legs: %w", err)
		}

		ins := b.Insert(tableLegs).Columns(legColumns...)
		for i, leg := range trade.Legs {
			ins.Values(legValues(trade.OrderID, i, leg)...)
		}
		q, args = ins.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("insert legs: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to upsert trade", "order_id", trade.OrderID, "error", err)
		return err
	}
	r.logger.Debug("trade stored", "order_id", trade.OrderID, "legs", len(trade.Legs))
	return nil
}

func legValues(orderID string, idx int, leg entity.TradeLeg) []any {
	var exp, optType, strike sql.NullString
	if leg.Expiration != nil {
		exp = sql.NullString{String: leg.Expiration.Format(dateLayout), Valid: true}
	}
	if leg.OptionType != nil {
		optType = sql.NullString{String: string(*leg.OptionType), Valid: true}
	}
	if leg.Strike != nil {
		strike = sql.NullString{String: leg.Strike.String(), Valid: true}
	}
	return []any{
		orderID, idx, string(leg.Action), leg.Quantity, leg.Symbol,
		exp, optType, strike, leg.FillPrice.String(), leg.FillTime.Format(time.RFC3339Nano),
	}
}

func (r *tradeRepo) Get(ctx context.Context, orderID string) (*entity.Trade, error) {
	b := r.db.builder()
	q, args := b.Select(tradeColumns...).
		From(b.Table(tableTrades)).
		Where(entsql.EQ("order_id", orderID)).
		Query()
	trades, err := r.queryTrades(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("trade %s: %w", orderID, common.ErrNotFound)
	}
	return trades[0], nil
}

func (r *tradeRepo) List(ctx context.Context, from, to *time.Time) ([]*entity.Trade, error) {
	b := r.db.builder()
	sel := b.Select(tradeColumns...).From(b.Table(tableTrades))

	var preds []*entsql.Predicate
	if from != nil {
		preds = append(preds, entsql.GTE("received_utc", from.UTC().Format(utcLayout)))
	}
	if to != nil {
		preds = append(preds, entsql.LT("received_utc", to.UTC().Format(utcLayout)))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	q, args := sel.OrderBy("received_utc", "order_id").Query()
	return r.queryTrades(ctx, q, args)
}

func (r *tradeRepo) Count(ctx context.Context) (int64, error) {
	b := r.db.builder()
	q, args := b.Select(entsql.Count("*")).From(b.Table(tableTrades)).Query()
	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, q, args, &rows); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	defer rows.Close()
	return entsql.ScanInt64(rows)
}

// queryTrades runs a trade selection and attaches the legs of every row.
func (r *tradeRepo) queryTrades(ctx context.Context, q string, args []any) ([]*entity.Trade, error) {
	var rows entsql.Rows
	if err := r.db.drv.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to query trades", "error", err)
		return nil, fmt.Errorf("query trades: %w", err)
	}

	var trades []*entity.Trade
	byID := map[string]*entity.Trade{}
	for rows.Next() {
		var t entity.Trade
		var received string
		if err := rows.Scan(&t.OrderID, &received, &t.OrderType); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, received)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("trade %s date_received: %w", t.OrderID, err)
		}
		t.DateReceived = ts
		trades = append(trades, &t)
		byID[t.OrderID] = &t
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// close before the legs query; SQLite runs on a single connection
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(trades))
	for _, t := range trades {
		ids = append(ids, t.OrderID)
	}
	b := r.db.builder()
	lq, largs := b.Select(legColumns...).
		From(b.Table(tableLegs)).
		Where(entsql.In("order_id", ids...)).
		OrderBy("order_id", "leg_index").
		Query()
	if err := r.db.drv.Query(ctx, lq, largs, &rows); err != nil {
		return nil, fmt.Errorf("query legs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		orderID, leg, err := scanLeg(rows)
		if err != nil {
			return nil, err
		}
		if t, ok := byID[orderID]; ok {
			t.Legs = append(t.Legs, leg)
		}
	}
	return trades, rows.Err()
}

func scanLeg(rows entsql.Rows) (string, entity.TradeLeg, error) {
	var (
		orderID, action, symbol, price, fill string
		idx, qty                             int
		exp, optType, strike                 sql.NullString
	)
	if err := rows.Scan(&orderID, &idx, &action, &qty, &symbol, &exp, &optType, &strike, &price, &fill); err != nil {
		return "", entity.TradeLeg{}, fmt.Errorf("scan leg: %w", err)
	}

	leg := entity.TradeLeg{
		Action:   constants.Action(action),
		Quantity: qty,
		Symbol:   symbol,
	}
	var err error
	if leg.FillPrice, err = decimal.NewFromString(price); err != nil {
		return "", entity.TradeLeg{}, fmt.Errorf("leg %s/%d fill_price: %w", orderID, idx, err)
	}
	if leg.FillTime, err = time.Parse(time.RFC3339Nano, fill); err != nil {
		return "", entity.TradeLeg{}, fmt.Errorf("leg %s/%d fill_time: %w", orderID, idx, err)
	}
	if exp.Valid {
		t, err := time.Parse(dateLayout, exp.String)
		if err != nil {
			return "", entity.TradeLeg{}, fmt.Errorf("leg %s/%d expiration: %w", orderID, idx, err)
		}
		leg.Expiration = &t
	}
	if optType.Valid {
		ot := constants.OptionType(optType.String)
		leg.OptionType = &ot
	}
	if strike.Valid {
		d, err := decimal.NewFromString(strike.String)
		if err != nil {
			return "", entity.TradeLeg{}, fmt.Errorf("leg %s/%d strike: %w", orderID, idx, err)
		}
		leg.Strike = &d
	}
	return orderID, leg, nil
}
