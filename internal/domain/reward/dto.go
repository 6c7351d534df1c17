package reward

import "database/sql"

// UpsertRewardRequest creates or replaces a catalog reward. A nil
// StockLimit means unlimited stock.
type UpsertRewardRequest struct {
	Title      string `json:"title" validate:"required,min=2,max=200"`
	PointsCost int    `json:"points_cost" validate:"required,gt=0"`
	StockLimit *int64 `json:"stock_limit" validate:"omitempty,gte=0"`
	Active     *bool  `json:"active" validate:"omitempty"`
}

func (r *UpsertRewardRequest) toReward() *Reward {
	rw := &Reward{
		Title:      r.Title,
		PointsCost: r.PointsCost,
		Active:     true,
	}
	if r.StockLimit != nil {
		rw.StockLimit = sql.NullInt64{Int64: *r.StockLimit, Valid: true}
	}
	if r.Active != nil {
		rw.Active = *r.Active
	}
	return rw
}
