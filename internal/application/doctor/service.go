package doctor

import (
	"context"
	"fmt"
	"image"
	"image/color"

	appconfig "github.com/doeshing/phocache/internal/application/config"
	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/bytesize"
	"github.com/doeshing/phocache/internal/ports"
)

// usageWarnPercent is the storage usage above which doctor warns.
const usageWarnPercent = 90

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Store          ports.RecordStore
	Codec          ports.RasterCodec
}

// Run executes checks and returns a report. Only a config load failure
// aborts the run; every other problem is reported as a check.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, engine %s", cfg.ConfigFormatVersion, cfg.Storage.Engine)))
	}

	checks = append(checks, s.storeChecks(ctx)...)
	checks = append(checks, s.codecCheck())

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) storeChecks(ctx context.Context) []domain.HealthCheck {
	if s.Store == nil {
		return []domain.HealthCheck{warn("Storage", "store not initialized")}
	}

	total := 0
	for _, category := range domain.Categories() {
		n, err := s.Store.Count(ctx, category)
		if err != nil {
			return []domain.HealthCheck{fail("Storage", err.Error())}
		}
		total += n
	}
	checks := []domain.HealthCheck{ok("Storage", fmt.Sprintf("%d records across %d categories", total, len(domain.Categories())))}

	est, err := s.Store.StorageEstimate(ctx)
	switch {
	case err != nil:
		checks = append(checks, warn("Storage usage", err.Error()))
	case est.QuotaBytes <= 0:
		checks = append(checks, warn("Storage usage", fmt.Sprintf("%s used, no quota", bytesize.Format(est.UsedBytes))))
	default:
		pct := float64(est.UsedBytes) / float64(est.QuotaBytes) * 100
		details := fmt.Sprintf("%s of %s (%.1f%%)", bytesize.Format(est.UsedBytes), bytesize.Format(est.QuotaBytes), pct)
		if pct >= usageWarnPercent {
			checks = append(checks, warn("Storage usage", details))
		} else {
			checks = append(checks, ok("Storage usage", details))
		}
	}
	return checks
}

func (s *Service) codecCheck() domain.HealthCheck {
	if s.Codec == nil {
		return warn("Image codec", "codec not initialized")
	}
	sample := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range sample.Pix {
		sample.Pix[i] = 0xff
	}
	sample.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})

	data, err := s.Codec.Encode(sample, domain.DefaultQuality)
	if err != nil {
		return fail("Image codec", err.Error())
	}
	img, format, err := s.Codec.Decode(data)
	if err != nil {
		return fail("Image codec", err.Error())
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		return fail("Image codec", fmt.Sprintf("round trip changed size to %v", img.Bounds().Size()))
	}
	return ok("Image codec", fmt.Sprintf("%s round trip ok", format))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
