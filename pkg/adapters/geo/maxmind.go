package geo

import (
	"context"
	"fmt"

	"github.com/oschwald/geoip2-golang"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

// MaxMind reads a local GeoLite2/GeoIP2 City database.
type MaxMind struct {
	db *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open maxmind db: %w", err)
	}
	return &MaxMind{db: db}, nil
}

func (m *MaxMind) Lookup(ctx context.Context, ip string) (domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return domain.Location{}, err
	}

	parsed, err := parsePublicIP(ip)
	if err != nil {
		return domain.Location{}, err
	}

	record, err := m.db.City(parsed)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geo: maxmind: %w: %w", domain.ErrExternalLookup, err)
	}

	loc := domain.Location{
		City:    record.City.Names["en"],
		Country: record.Country.Names["en"],
	}
	if loc.City == "" && loc.Country == "" {
		return domain.Location{}, fmt.Errorf("geo: maxmind: %s not in database: %w", ip, domain.ErrExternalLookup)
	}
	return loc, nil
}

func (m *MaxMind) Close() error {
	return m.db.Close()
}
