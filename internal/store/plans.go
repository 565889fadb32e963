package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/phillip-england/staffplan/internal/metrics"
	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/schedule"
)

const insertBatch = 400

// SavePlan overwrites the stored plan for its location. Last write wins.
func (s *Store) SavePlan(ctx context.Context, plan *schedule.Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return errors.Wrap(err, "encode plan")
	}
	return withSQLiteRetry(func() error {
		_, err := s.exec(ctx, `
			INSERT INTO plans (location, payload, updated_at)
			VALUES (@location, @payload, CAST(@updated_at AS INTEGER))
			ON CONFLICT(location) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at;
		`, map[string]string{
			"location":   string(plan.Location),
			"payload":    string(payload),
			"updated_at": strconv.FormatInt(time.Now().Unix(), 10),
		})
		return err
	})
}

func (s *Store) LoadPlan(ctx context.Context, loc roster.Location) (*schedule.Plan, error) {
	rows, err := s.query(ctx, `SELECT payload FROM plans WHERE location = @location;`, map[string]string{
		"location": string(loc),
	})
	if err != nil {
		return nil, errors.Wrap(err, "load plan")
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	raw, err := valueAsString(rows[0]["payload"])
	if err != nil {
		return nil, err
	}
	var plan schedule.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, errors.Wrap(err, "decode plan")
	}
	return &plan, nil
}

// ReplaceDaily upserts daily metric rows keyed by location and date.
func (s *Store) ReplaceDaily(ctx context.Context, rows []metrics.DailyRow) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		values := make([]string, 0, end-start)
		for _, r := range rows[start:end] {
			values = append(values, "("+strings.Join([]string{
				sqliteStringLiteral(string(r.Location)),
				sqliteStringLiteral(r.Date),
				formatFloat(r.Revenue),
				formatFloat(r.DeliveryNet),
				formatFloat(r.LaborCost),
			}, ", ")+")")
		}
		statement := `INSERT INTO daily_metrics (location, business_date, revenue, delivery_net, labor_cost) VALUES ` +
			strings.Join(values, ",\n") + `
			ON CONFLICT(location, business_date) DO UPDATE SET
				revenue = excluded.revenue,
				delivery_net = excluded.delivery_net,
				labor_cost = excluded.labor_cost;`
		if err := withSQLiteRetry(func() error {
			_, err := s.exec(ctx, statement, nil)
			return err
		}); err != nil {
			return errors.Wrap(err, "store daily metrics")
		}
	}
	return nil
}

func (s *Store) ReplaceHourly(ctx context.Context, rows []metrics.HourlyRow) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		values := make([]string, 0, end-start)
		for _, r := range rows[start:end] {
			values = append(values, "("+strings.Join([]string{
				sqliteStringLiteral(string(r.Location)),
				sqliteStringLiteral(r.Month),
				strconv.Itoa(r.Hour),
				formatFloat(r.AvgRevenue),
				formatFloat(r.AvgDeliveryNet),
			}, ", ")+")")
		}
		statement := `INSERT INTO hourly_metrics (location, month, hour, avg_revenue, avg_delivery_net) VALUES ` +
			strings.Join(values, ",\n") + `
			ON CONFLICT(location, month, hour) DO UPDATE SET
				avg_revenue = excluded.avg_revenue,
				avg_delivery_net = excluded.avg_delivery_net;`
		if err := withSQLiteRetry(func() error {
			_, err := s.exec(ctx, statement, nil)
			return err
		}); err != nil {
			return errors.Wrap(err, "store hourly metrics")
		}
	}
	return nil
}

// LoadFeed returns every stored metric row, oldest first.
func (s *Store) LoadFeed(ctx context.Context) (metrics.Feed, error) {
	var feed metrics.Feed
	daily, err := s.query(ctx, `
		SELECT location, business_date, revenue, delivery_net, labor_cost
		FROM daily_metrics
		ORDER BY business_date, location;
	`, nil)
	if err != nil {
		return feed, errors.Wrap(err, "load daily metrics")
	}
	for _, row := range daily {
		loc, _ := valueAsString(row["location"])
		date, _ := valueAsString(row["business_date"])
		revenue, err := valueAsFloat64(row["revenue"])
		if err != nil {
			return feed, err
		}
		delivery, err := valueAsFloat64(row["delivery_net"])
		if err != nil {
			return feed, err
		}
		labor, err := valueAsFloat64(row["labor_cost"])
		if err != nil {
			return feed, err
		}
		feed.Daily = append(feed.Daily, metrics.DailyRow{
			Location:    roster.Location(loc),
			Date:        date,
			Revenue:     revenue,
			DeliveryNet: delivery,
			LaborCost:   labor,
		})
	}

	hourly, err := s.query(ctx, `
		SELECT location, month, hour, avg_revenue, avg_delivery_net
		FROM hourly_metrics
		ORDER BY month, location, hour;
	`, nil)
	if err != nil {
		return feed, errors.Wrap(err, "load hourly metrics")
	}
	for _, row := range hourly {
		loc, _ := valueAsString(row["location"])
		month, _ := valueAsString(row["month"])
		hour, err := valueAsInt64(row["hour"])
		if err != nil {
			return feed, err
		}
		revenue, err := valueAsFloat64(row["avg_revenue"])
		if err != nil {
			return feed, err
		}
		delivery, err := valueAsFloat64(row["avg_delivery_net"])
		if err != nil {
			return feed, err
		}
		feed.Hourly = append(feed.Hourly, metrics.HourlyRow{
			Location:       roster.Location(loc),
			Month:          month,
			Hour:           int(hour),
			AvgRevenue:     revenue,
			AvgDeliveryNet: delivery,
		})
	}
	return feed, nil
}

// PutSnapshot stores the last good payload for a feed.
func (s *Store) PutSnapshot(ctx context.Context, key string, payload []byte) error {
	return withSQLiteRetry(func() error {
		_, err := s.exec(ctx, `
			INSERT INTO feed_cache (cache_key, payload, fetched_at)
			VALUES (@cache_key, @payload, CAST(@fetched_at AS INTEGER))
			ON CONFLICT(cache_key) DO UPDATE SET
				payload = excluded.payload,
				fetched_at = excluded.fetched_at;
		`, map[string]string{
			"cache_key":  key,
			"payload":    string(payload),
			"fetched_at": strconv.FormatInt(time.Now().Unix(), 10),
		})
		return err
	})
}

func (s *Store) Snapshot(ctx context.Context, key string) ([]byte, time.Time, error) {
	rows, err := s.query(ctx, `SELECT payload, fetched_at FROM feed_cache WHERE cache_key = @cache_key;`, map[string]string{
		"cache_key": key,
	})
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "load feed snapshot")
	}
	if len(rows) == 0 {
		return nil, time.Time{}, ErrNotFound
	}
	payload, err := valueAsString(rows[0]["payload"])
	if err != nil {
		return nil, time.Time{}, err
	}
	fetched, err := valueAsInt64(rows[0]["fetched_at"])
	if err != nil {
		return nil, time.Time{}, err
	}
	return []byte(payload), time.Unix(fetched, 0).UTC(), nil
}
