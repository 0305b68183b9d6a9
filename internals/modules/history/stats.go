package history

import (
	"math"
	"sort"
	"time"

	"healthmon/internals/domain"
)

// Stats summarises a window of a log.
type Stats struct {
	Window         time.Duration `json:"window_ns"`
	HasData        bool          `json:"has_data"`
	Total          int           `json:"total"`
	Up             int           `json:"up"`
	Down           int           `json:"down"`
	UptimePercent  float64       `json:"uptime_percent"`
	MeanLatency    time.Duration `json:"mean_latency_ns"`
	P50Latency     time.Duration `json:"p50_latency_ns"`
	P95Latency     time.Duration `json:"p95_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	LongestOutage  time.Duration `json:"longest_outage_ns"`
	LastOutage     time.Duration `json:"last_outage_ns"`
	OutageOngoing  bool          `json:"outage_ongoing"`
	LongestUpRun   int           `json:"longest_up_run"`
	LongestDownRun int           `json:"longest_down_run"`
}

type LatencyPoint struct {
	At      time.Time     `json:"at"`
	Latency time.Duration `json:"latency_ns"`
}

type Page struct {
	Items    []domain.CheckResult `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
	Pages    int                  `json:"pages"`
}

// Stats computes statistics over entries started within window of now.
// A non-positive window covers the whole log. An empty window reports 0% uptime.
func (l *Log) Stats(window time.Duration, now time.Time) Stats {
	var from time.Time
	if window > 0 {
		from = now.Add(-window)
	}
	return Compute(l.Since(from), window, now)
}

// Compute derives Stats from entries sorted by StartedAt.
func Compute(entries []domain.CheckResult, window time.Duration, now time.Time) Stats {
	s := Stats{Window: window, Total: len(entries), HasData: len(entries) > 0}
	if len(entries) == 0 {
		return s
	}

	latencies := make([]time.Duration, 0, len(entries))
	var sum time.Duration
	var upRun, downRun int
	var outageStart time.Time
	inOutage := false

	for _, e := range entries {
		if e.Success {
			s.Up++
			latencies = append(latencies, e.Latency)
			sum += e.Latency

			upRun++
			downRun = 0

			if inOutage {
				s.closeOutage(e.StartedAt.Sub(outageStart))
				inOutage = false
			}
		} else {
			s.Down++
			downRun++
			upRun = 0

			if !inOutage {
				outageStart = e.StartedAt
				inOutage = true
			}
		}
		s.LongestUpRun = max(s.LongestUpRun, upRun)
		s.LongestDownRun = max(s.LongestDownRun, downRun)
	}

	if inOutage {
		end := now
		if end.Before(outageStart) {
			end = entries[len(entries)-1].FinishedAt
		}
		s.closeOutage(end.Sub(outageStart))
		s.OutageOngoing = true
	}

	s.UptimePercent = float64(s.Up) / float64(s.Total) * 100

	if len(latencies) > 0 {
		s.MeanLatency = sum / time.Duration(len(latencies))
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		s.P50Latency = percentile(latencies, 50)
		s.P95Latency = percentile(latencies, 95)
		s.P99Latency = percentile(latencies, 99)
	}

	return s
}

func (s *Stats) closeOutage(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.LastOutage = d
	if d > s.LongestOutage {
		s.LongestOutage = d
	}
}

// percentile uses nearest rank over sorted values.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Latencies returns at most points successful latencies from the window,
// evenly stepped across it and always ending at the newest sample.
func (l *Log) Latencies(window time.Duration, points int, now time.Time) []LatencyPoint {
	var from time.Time
	if window > 0 {
		from = now.Add(-window)
	}

	var all []LatencyPoint
	for _, e := range l.Since(from) {
		if e.Success {
			all = append(all, LatencyPoint{At: e.StartedAt, Latency: e.Latency})
		}
	}
	return Downsample(all, points)
}

func Downsample(all []LatencyPoint, points int) []LatencyPoint {
	if points <= 0 || len(all) <= points {
		return all
	}

	out := make([]LatencyPoint, 0, points)
	for i := 1; i <= points; i++ {
		out = append(out, all[i*len(all)/points-1])
	}
	return out
}

// Page returns one page of entries, newest first. Pages are 1-based.
func (l *Log) Page(page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}

	entries := l.Entries()
	p := Page{Page: page, PageSize: size, Total: len(entries)}
	if p.Total > 0 {
		p.Pages = (p.Total-1)/size + 1
	}

	// compare in pages first so (page-1)*size cannot overflow
	if page > p.Pages {
		p.Items = []domain.CheckResult{}
		return p
	}
	start := (page - 1) * size
	end := min(start+size, len(entries))

	p.Items = make([]domain.CheckResult, 0, end-start)
	for i := start; i < end; i++ {
		p.Items = append(p.Items, entries[len(entries)-1-i])
	}
	return p
}
