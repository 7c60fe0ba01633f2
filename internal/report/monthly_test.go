package report

import (
	"testing"

	"tutordash/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func months(series []MonthPoint) []string {
	out := make([]string, 0, len(series))
	for _, p := range series {
		out = append(out, p.Month)
	}
	return out
}

func TestMonthlySeries_ZeroFillsGaps(t *testing.T) {
	sessions := []core.Session{
		session("A", 2024, 3, 2, 1, 3000),
		session("B", 2024, 1, 10, 2, 4000),
	}
	series := MonthlySeries(sessions, now, DateRange{Quick: All})
	require.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, months(series))

	feb := series[1]
	assert.Equal(t, MonthPoint{Month: "2024-02"}, feb)
	assert.Equal(t, 40.0, series[0].Revenue)
	assert.Equal(t, 20.0, series[0].AvgHourlyRate)
	assert.Equal(t, 30.0, series[2].Revenue)
}

func TestMonthlySeries_SplitsCompletedAndPlanned(t *testing.T) {
	sessions := []core.Session{
		session("A", 2024, 3, 10, 2, 4000), // completed
		session("A", 2024, 3, 20, 1, 3000), // planned, same month
		session("B", 2024, 5, 1, 1.5, 4500),
	}
	series := MonthlySeries(sessions, now, DateRange{Quick: All})
	require.Equal(t, []string{"2024-03", "2024-04", "2024-05"}, months(series))

	mar := series[0]
	assert.Equal(t, 40.0, mar.Revenue)
	assert.Equal(t, 2.0, mar.Hours)
	assert.Equal(t, 1, mar.Sessions)
	assert.Equal(t, 30.0, mar.PlannedRevenue)
	assert.Equal(t, 1.0, mar.PlannedHours)
	assert.Equal(t, 1, mar.PlannedSessions)

	may := series[2]
	assert.Zero(t, may.Revenue)
	assert.Zero(t, may.AvgHourlyRate)
	assert.Equal(t, 45.0, may.PlannedRevenue)
}

func TestMonthlySeries_WindowBoundsTheAxis(t *testing.T) {
	r, err := ResolveRange(Custom, datePtr(2023, 11, 15), datePtr(2024, 2, 10), now)
	require.NoError(t, err)
	sessions := Filter([]core.Session{session("A", 2024, 1, 3, 1, 1000)}, r)

	series := MonthlySeries(sessions, now, r)
	assert.Equal(t, []string{"2023-11", "2023-12", "2024-01", "2024-02"}, months(series))
}

func TestMonthlySeries_Empty(t *testing.T) {
	assert.Empty(t, MonthlySeries(nil, now, DateRange{Quick: All}))
}

func TestMonthlySeries_RelativeRangeKeepsPlanned(t *testing.T) {
	r, err := ResolveRange(Last30Days, nil, nil, now)
	require.NoError(t, err)
	sessions := Filter([]core.Session{
		session("A", 2024, 3, 10, 1, 1000),
		session("B", 2024, 3, 20, 1, 3000),
	}, r)

	series := MonthlySeries(sessions, now, r)
	require.Equal(t, []string{"2024-02", "2024-03"}, months(series))
	mar := series[1]
	assert.Equal(t, 10.0, mar.Revenue)
	assert.Equal(t, 30.0, mar.PlannedRevenue)
	assert.Equal(t, 1, mar.PlannedSessions)
}
