package providers

import (
	"go.uber.org/zap"

	"stock-ingest/config"
	"stock-ingest/ohlcv"
)

var (
	_ ohlcv.Source = (*Polygon)(nil)
	_ ohlcv.Source = (*PolygonFlatFiles)(nil)
	_ ohlcv.Source = (*Yahoo)(nil)
)

// New builds the Source selected by cfg.Provider, reporting its progress into m.
func New(cfg *config.Config, log *zap.Logger, m *ohlcv.Metrics) (ohlcv.Source, error) {
	log = log.With(zap.String("provider", cfg.Provider))

	switch cfg.Provider {
	case config.ProviderYahoo:
		y := NewYahoo(cfg.Yahoo.BaseURL, log)
		y.SetMetrics(m)
		return y, nil

	case config.ProviderPolygonFlatFiles:
		pf, err := NewPolygonFlatFiles(cfg.Polygon, NewPolygon(cfg.Polygon.APIKey, log), log)
		if err != nil {
			return nil, err
		}
		pf.SetMetrics(m)
		return pf, nil

	default:
		p := NewPolygon(cfg.Polygon.APIKey, log)
		p.SetMetrics(m)
		return p, nil
	}
}
