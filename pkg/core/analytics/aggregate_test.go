package analytics_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/trimrr/pkg/core/analytics"
	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

func clicks(devices ...domain.DeviceCategory) []domain.ClickEvent {
	out := make([]domain.ClickEvent, 0, len(devices))
	for i, d := range devices {
		out = append(out, domain.ClickEvent{ID: int64(i + 1), Device: d})
	}
	return out
}

func TestGroupByDevice_Empty(t *testing.T) {
	groups := analytics.GroupByDevice(nil)
	require.NotNil(t, groups)
	require.Empty(t, groups)

	require.Empty(t, analytics.GroupByLocation([]domain.ClickEvent{}))
}

func TestGroupByDevice_SingleCategory(t *testing.T) {
	events := clicks(domain.DeviceMobile, domain.DeviceMobile, domain.DeviceMobile, domain.DeviceMobile)

	groups := analytics.GroupByDevice(events)
	require.Equal(t, []domain.Group{{Label: "mobile", Count: 4, Percentage: 100.0}}, groups)
}

func TestGroupByDevice_OrderAndRounding(t *testing.T) {
	events := clicks(
		domain.DeviceDesktop,
		domain.DeviceMobile,
		domain.DeviceTablet,
		domain.DeviceMobile,
		domain.DeviceDesktop,
		domain.DeviceUnknown,
	)

	groups := analytics.GroupByDevice(events)
	require.Equal(t, []domain.Group{
		{Label: "desktop", Count: 2, Percentage: 33.3},
		{Label: "mobile", Count: 2, Percentage: 33.3},
		{Label: "tablet", Count: 1, Percentage: 16.7},
		{Label: "unknown", Count: 1, Percentage: 16.7},
	}, groups)
}

func TestGroupByDevice_DeterministicAcrossInputOrder(t *testing.T) {
	events := clicks(
		domain.DeviceTablet, domain.DeviceDesktop, domain.DeviceMobile,
		domain.DeviceMobile, domain.DeviceDesktop, domain.DeviceTablet,
		domain.DeviceUnknown,
	)
	want := analytics.GroupByDevice(events)

	rng := rand.New(rand.NewSource(42))
	for range 20 {
		shuffled := append([]domain.ClickEvent(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.Equal(t, want, analytics.GroupByDevice(shuffled))
	}
}

func TestGroupByLocation(t *testing.T) {
	berlin := &domain.Location{City: "Berlin", Country: "Germany"}
	events := []domain.ClickEvent{
		{Location: berlin},
		{Location: berlin},
		{Location: &domain.Location{Country: "France"}},
		{Location: nil},
	}

	groups := analytics.GroupByLocation(events)
	require.Equal(t, []domain.Group{
		{Label: "Berlin, Germany", Count: 2, Percentage: 50.0},
		{Label: "France", Count: 1, Percentage: 25.0},
		{Label: analytics.UnknownLocation, Count: 1, Percentage: 25.0},
	}, groups)
}

func TestSummarize(t *testing.T) {
	stats := analytics.Summarize(7, clicks(domain.DeviceDesktop, domain.DeviceMobile))

	require.Equal(t, int64(7), stats.LinkID)
	require.Equal(t, 2, stats.TotalClicks)
	require.Len(t, stats.Devices, 2)
	require.Equal(t, []domain.Group{{Label: analytics.UnknownLocation, Count: 2, Percentage: 100.0}}, stats.Locations)
}
