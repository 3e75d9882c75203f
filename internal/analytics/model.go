package analytics

import "time"

type UserMetrics struct {
	TotalUsers        int64   `json:"totalUsers"`
	NewUsersThisMonth int64   `json:"newUsersThisMonth"`
	NewUsersLastMonth int64   `json:"newUsersLastMonth"`
	GrowthRate        float64 `json:"growthRate"`
	PaidUsers         int64   `json:"paidUsers"`
	ConversionRate    float64 `json:"conversionRate"`
	ActiveChatToday   int64   `json:"activeChatUsersToday"`
}

// RevenueMetrics amounts are minor units of Currency.
type RevenueMetrics struct {
	Currency          string  `json:"currency"`
	TotalRevenue      int64   `json:"totalRevenue"`
	RevenueThisMonth  int64   `json:"revenueThisMonth"`
	RevenueLastMonth  int64   `json:"revenueLastMonth"`
	GrowthRate        float64 `json:"growthRate"`
	PaidOrders        int64   `json:"paidOrders"`
	PendingOrders     int64   `json:"pendingOrders"`
	FailedOrders      int64   `json:"failedOrders"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	CouponRedemptions int64   `json:"couponRedemptions"`
	TotalDiscount     int64   `json:"totalDiscount"`
}

type ServiceUsage struct {
	PalmReadingsTotal      int64   `json:"palmReadingsTotal"`
	PalmReadingsCompleted  int64   `json:"palmReadingsCompleted"`
	PalmReadingsFailed     int64   `json:"palmReadingsFailed"`
	PalmReadingsProcessing int64   `json:"palmReadingsProcessing"`
	PalmSuccessRate        float64 `json:"palmSuccessRate"`
	ChatSessions           int64   `json:"chatSessions"`
	ChatMessagesToday      int64   `json:"chatMessagesToday"`
	AstroProfiles          int64   `json:"astroProfiles"`
}

type FeedbackMetrics struct {
	TotalFeedback      int64            `json:"totalFeedback"`
	PendingFeedback    int64            `json:"pendingFeedback"`
	AverageRating      float64          `json:"averageRating"`
	ByCategory         map[string]int64 `json:"byCategory"`
	RatingDistribution map[int]int64    `json:"ratingDistribution"`
}

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

type SystemHealth struct {
	Status             HealthStatus `json:"status"`
	DatabaseReachable  bool         `json:"databaseReachable"`
	DatabaseLatencyMs  float64      `json:"databaseLatencyMs"`
	CacheConfigured    bool         `json:"cacheConfigured"`
	CacheReachable     bool         `json:"cacheReachable"`
	EventBusConfigured bool         `json:"eventBusConfigured"`
	EventBusReachable  bool         `json:"eventBusReachable"`
	FailedReadings24h  int64        `json:"failedReadings24h"`
	StaleProcessing    int64        `json:"staleProcessingReadings"`
	StalePendingOrders int64        `json:"stalePendingOrders"`
	CheckedAt          time.Time    `json:"checkedAt"`
}

type Analytics struct {
	UserMetrics     UserMetrics     `json:"userMetrics"`
	ServiceUsage    ServiceUsage    `json:"serviceUsage"`
	RevenueMetrics  RevenueMetrics  `json:"revenueMetrics"`
	FeedbackMetrics FeedbackMetrics `json:"feedbackMetrics"`
	SystemHealth    SystemHealth    `json:"systemHealth"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// Period holds the UTC boundaries the aggregators count against.
type Period struct {
	Now              time.Time
	StartOfDay       time.Time
	StartOfMonth     time.Time
	StartOfLastMonth time.Time
}

func PeriodAt(now time.Time) Period {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Now:              now,
		StartOfDay:       day,
		StartOfMonth:     month,
		StartOfLastMonth: month.AddDate(0, -1, 0),
	}
}
