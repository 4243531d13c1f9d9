package astra

import "context"

type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DashboardStats struct {
	TotalTickets           int            `json:"total_tickets"`
	OpenTickets            int            `json:"open_tickets"`
	ResolvedTickets        int            `json:"resolved_tickets"`
	AvgResponseTimeMinutes float64        `json:"avg_response_time_minutes"`
	StatusDistribution     map[string]int `json:"status_distribution"`
	DailyTrend             []TrendPoint   `json:"daily_trend"`
}

type Health struct {
	Status string `json:"status"`
}

func (c *Client) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var out DashboardStats
	if err := c.get(ctx, "/stats/dashboard", nil, &out); err != nil {
		return DashboardStats{}, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}
