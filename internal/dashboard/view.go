// Package dashboard renders the admin analytics page. The view helpers are
// pure functions over an already computed analytics object.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aurapalm/aura/internal/analytics"
)

type Rating struct {
	Label string
	Color string
}

// Classify maps a success rate percentage to a label and colour.
func Classify(rate float64) Rating {
	switch {
	case rate >= 95:
		return Rating{Label: "excellent", Color: "#16a34a"}
	case rate >= 85:
		return Rating{Label: "good", Color: "#2563eb"}
	case rate >= 70:
		return Rating{Label: "fair", Color: "#d97706"}
	default:
		return Rating{Label: "poor", Color: "#dc2626"}
	}
}

// BarWidth is count relative to the largest bar, as a percentage.
func BarWidth(count, peak int64) float64 {
	if peak <= 0 {
		return 0
	}
	return round1(float64(count) / float64(peak) * 100)
}

// Share is count as a percentage of total.
func Share(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

var amountPrinter = message.NewPrinter(language.English)

// FormatMoney formats an amount in minor units, e.g. 199000 INR as ₹1,990.00.
// The number of minor digits follows the ISO currency; unknown codes use two.
func FormatMoney(minor int64, code string) string {
	code = strings.ToUpper(code)
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}

	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	pow := int64(math.Pow10(scale))
	amount := amountPrinter.Sprintf("%d", minor/pow)
	if scale > 0 {
		amount += fmt.Sprintf(".%0*d", scale, minor%pow)
	}

	if sym, ok := currencySymbols[code]; ok {
		return sign + sym + amount
	}
	return sign + code + " " + amount
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type Bar struct {
	Label string
	Count int64
	Width float64
	Share float64
}

// Bars builds one bar per entry, widest first, ties broken by label.
func Bars(counts map[string]int64) []Bar {
	var peak, total int64
	for _, n := range counts {
		total += n
		if n > peak {
			peak = n
		}
	}

	bars := make([]Bar, 0, len(counts))
	for label, n := range counts {
		bars = append(bars, Bar{Label: label, Count: n, Width: BarWidth(n, peak), Share: Share(n, total)})
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Count != bars[j].Count {
			return bars[i].Count > bars[j].Count
		}
		return bars[i].Label < bars[j].Label
	})
	return bars
}

// RatingBars lists the 1-5 distribution from five stars down.
func RatingBars(dist map[int]int64) []Bar {
	var peak, total int64
	for r := 1; r <= 5; r++ {
		total += dist[r]
		if dist[r] > peak {
			peak = dist[r]
		}
	}
	bars := make([]Bar, 0, 5)
	for r := 5; r >= 1; r-- {
		n := dist[r]
		bars = append(bars, Bar{Label: strconv.Itoa(r) + "★", Count: n, Width: BarWidth(n, peak), Share: Share(n, total)})
	}
	return bars
}

type Card struct {
	Title string
	Value string
	Note  string
}

// Page is everything the template needs.
type Page struct {
	A           *analytics.Analytics
	Cards       []Card
	Palm        Rating
	Categories  []Bar
	Ratings     []Bar
	HealthColor string
}

func healthColor(s analytics.HealthStatus) string {
	switch s {
	case analytics.HealthHealthy:
		return "#16a34a"
	case analytics.HealthDegraded:
		return "#d97706"
	default:
		return "#dc2626"
	}
}

func signed(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}

// BuildPage assembles the view model.
func BuildPage(a *analytics.Analytics) Page {
	u, r, s := a.UserMetrics, a.RevenueMetrics, a.ServiceUsage
	return Page{
		A: a,
		Cards: []Card{
			{Title: "Users", Value: strconv.FormatInt(u.TotalUsers, 10),
				Note: fmt.Sprintf("%d new this month (%s)", u.NewUsersThisMonth, signed(u.GrowthRate))},
			{Title: "Paid users", Value: strconv.FormatInt(u.PaidUsers, 10),
				Note: fmt.Sprintf("%.2f%% conversion", u.ConversionRate)},
			{Title: "Revenue", Value: FormatMoney(r.TotalRevenue, r.Currency),
				Note: fmt.Sprintf("%s this month (%s)", FormatMoney(r.RevenueThisMonth, r.Currency), signed(r.GrowthRate))},
			{Title: "Orders", Value: strconv.FormatInt(r.PaidOrders, 10),
				Note: fmt.Sprintf("%d pending, %d failed", r.PendingOrders, r.FailedOrders)},
			{Title: "Palm readings", Value: strconv.FormatInt(s.PalmReadingsTotal, 10),
				Note: fmt.Sprintf("%d processing", s.PalmReadingsProcessing)},
			{Title: "Chat today", Value: strconv.FormatInt(s.ChatMessagesToday, 10),
				Note: fmt.Sprintf("%d active users", u.ActiveChatToday)},
		},
		Palm:        Classify(s.PalmSuccessRate),
		Categories:  Bars(a.FeedbackMetrics.ByCategory),
		Ratings:     RatingBars(a.FeedbackMetrics.RatingDistribution),
		HealthColor: healthColor(a.SystemHealth.Status),
	}
}
