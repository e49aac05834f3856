package database

import (
	"context"
	"fmt"
	"time"

	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/scenario"
)

// ClosedOrderRow is one persisted trade as read back for queries.
type ClosedOrderRow struct {
	ID            string    `json:"id"`
	OrderType     string    `json:"order_type"`
	TradingSymbol string    `json:"trading_symbol"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	ScenarioName  string    `json:"scenario_name"`
	ExitReason    string    `json:"exit_reason"`
	TotalPoints   float64   `json:"total_points"`
	TotalProfit   float64   `json:"total_profit"`
	MilestonesHit int       `json:"milestones_hit"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
}

// Repository provides trade and decision persistence.
type Repository struct {
	db *DB
}

// NewRepository creates a repository over a connected DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveClosedOrder writes an exited order. Idempotent on order id so the
// lifecycle manager can safely retry after a failure.
func (r *Repository) SaveClosedOrder(ctx context.Context, order *lifecycle.Order) error {
	if order.Status != lifecycle.StatusExited || order.ExitTime == nil {
		return fmt.Errorf("order %s is not exited", order.ID)
	}

	milestonesHit := 0
	for i := range order.Milestones {
		if order.Milestones[i].TargetHit {
			milestonesHit++
		}
	}

	query := `
		INSERT INTO closed_orders (
			id, order_type, trading_symbol, instrument_token,
			entry_price, entry_index_price, exit_price, exit_index_price,
			stop_loss_price, target_price, quantity, scenario_name,
			exit_reason, exit_detail, total_points, total_profit,
			milestones_hit, entry_time, exit_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(ctx, query,
		order.ID, string(order.OrderType), order.TradingSymbol, order.InstrumentToken,
		order.EntryPrice, order.EntryIndexPrice, order.ExitPrice, order.ExitIndexPrice,
		order.StopLossPrice, order.TargetPrice, order.Quantity, order.ScenarioName,
		string(order.ExitReason), order.ExitDetail, order.TotalPoints, order.TotalProfit,
		milestonesHit, order.EntryTime, *order.ExitTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save closed order %s: %w", order.ID, err)
	}
	return nil
}

// SaveEntryDecision appends a decision to the audit log.
func (r *Repository) SaveEntryDecision(ctx context.Context, decision scenario.EntryDecision, decidedAt time.Time) error {
	query := `
		INSERT INTO entry_decisions (should_entry, scenario_name, confidence, quality_score, market_direction, reason, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		decision.ShouldEntry, decision.ScenarioName, decision.Confidence,
		decision.QualityScore, string(decision.MarketDirection), decision.Reason, decidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save entry decision: %w", err)
	}
	return nil
}

// RecentClosedOrders returns the latest closed trades, newest first.
func (r *Repository) RecentClosedOrders(ctx context.Context, limit int) ([]ClosedOrderRow, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, order_type, trading_symbol, entry_price, exit_price,
		       COALESCE(scenario_name, ''), exit_reason, total_points, total_profit,
		       milestones_hit, entry_time, exit_time
		FROM closed_orders
		ORDER BY exit_time DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed orders: %w", err)
	}
	defer rows.Close()

	var out []ClosedOrderRow
	for rows.Next() {
		var row ClosedOrderRow
		if err := rows.Scan(
			&row.ID, &row.OrderType, &row.TradingSymbol, &row.EntryPrice, &row.ExitPrice,
			&row.ScenarioName, &row.ExitReason, &row.TotalPoints, &row.TotalProfit,
			&row.MilestonesHit, &row.EntryTime, &row.ExitTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan closed order: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
