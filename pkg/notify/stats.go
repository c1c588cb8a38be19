package notify

// ChannelStats aggregates delivery outcomes for one channel.
type ChannelStats struct {
	Sent      int64   `json:"sent"`
	Failed    int64   `json:"failed"`
	Cancelled int64   `json:"cancelled"`
	Pending   int64   `json:"pending"` // pending or queued, including awaiting retry
	Cost      float64 `json:"cost"`
}

// Stats aggregates delivery outcomes for a tenant over a time window.
type Stats struct {
	TenantID   string                    `json:"tenant_id"`
	Total      int64                     `json:"total"`
	Sent       int64                     `json:"sent"`
	Failed     int64                     `json:"failed"`
	Cancelled  int64                     `json:"cancelled"`
	Pending    int64                     `json:"pending"`
	TotalCost  float64                   `json:"total_cost"`
	ByChannel  map[Channel]*ChannelStats `json:"by_channel"`
	ByCategory map[Category]int64        `json:"by_category"`
}
