// Package catalog содержит статический каталог тарифов портала.
// Каталог — единственный источник истины о том, какие режимы оплаты
// поддерживает тариф и сколько он стоит: финализация пересчитывает
// ожидаемую сумму по каталогу и не доверяет сумме из запроса клиента.
package catalog

import (
	"fmt"

	"github.com/magabrotheeeer/membership-portal/internal/config"
	"github.com/magabrotheeeer/membership-portal/internal/lib/errs"
	"github.com/magabrotheeeer/membership-portal/internal/models"
)

// Tier описывает продаваемый тариф. Записи каталога неизменяемы после загрузки.
type Tier struct {
	ID       string
	Name     string
	Features []string

	prices   map[string]int64  // режим оплаты -> цена в центах
	priceIDs map[string]string // режим оплаты -> ID цены у провайдера
}

// Supports сообщает, продаётся ли тариф в данном режиме оплаты.
func (t *Tier) Supports(billingMode string) bool {
	_, ok := t.prices[billingMode]
	return ok
}

// Price возвращает цену тарифа в центах для режима оплаты.
func (t *Tier) Price(billingMode string) (int64, error) {
	price, ok := t.prices[billingMode]
	if !ok {
		return 0, fmt.Errorf("tier %s, mode %s: %w", t.ID, billingMode, errs.ErrUnsupportedBillingMode)
	}
	return price, nil
}

// PriceID возвращает ID рекуррентной цены на стороне провайдера.
func (t *Tier) PriceID(billingMode string) (string, error) {
	id, ok := t.priceIDs[billingMode]
	if !ok || id == "" {
		return "", fmt.Errorf("tier %s, mode %s: %w", t.ID, billingMode, errs.ErrUnsupportedBillingMode)
	}
	return id, nil
}

// Catalog неизменяемый справочник тарифов с поиском по ID.
type Catalog struct {
	tiers map[string]*Tier
}

// New собирает каталог из конфигурации. Если список тарифов пуст,
// используется каталог по умолчанию.
func New(cfgs []config.TierConfig) *Catalog {
	if len(cfgs) == 0 {
		return Default()
	}
	c := &Catalog{tiers: make(map[string]*Tier, len(cfgs))}
	for _, tc := range cfgs {
		tier := &Tier{
			ID:       tc.ID,
			Name:     tc.Name,
			Features: tc.Features,
			prices:   make(map[string]int64),
			priceIDs: make(map[string]string),
		}
		if tc.OneTimePriceCents > 0 {
			tier.prices[models.BillingModeOneTime] = tc.OneTimePriceCents
		}
		if tc.MonthlyPriceCents > 0 {
			tier.prices[models.BillingModeMonthly] = tc.MonthlyPriceCents
			tier.priceIDs[models.BillingModeMonthly] = tc.MonthlyPriceID
		}
		if tc.YearlyPriceCents > 0 {
			tier.prices[models.BillingModeYearly] = tc.YearlyPriceCents
			tier.priceIDs[models.BillingModeYearly] = tc.YearlyPriceID
		}
		c.tiers[tc.ID] = tier
	}
	return c
}

// Default возвращает каталог тарифов по умолчанию.
func Default() *Catalog {
	return New([]config.TierConfig{
		{
			ID:   "IGNITE",
			Name: "Ignite",
			Features: []string{
				"resource-library",
				"member-forum",
			},
			OneTimePriceCents: 99900,
		},
		{
			ID:   "ELEVATE",
			Name: "Elevate",
			Features: []string{
				"resource-library",
				"member-forum",
				"live-events",
			},
			MonthlyPriceCents: 4900,
			MonthlyPriceID:    "price_elevate_monthly",
			YearlyPriceCents:  49900,
			YearlyPriceID:     "price_elevate_yearly",
		},
	})
}

// Tier возвращает тариф по ID или ErrUnknownTier.
func (c *Catalog) Tier(id string) (*Tier, error) {
	tier, ok := c.tiers[id]
	if !ok {
		return nil, fmt.Errorf("tier %s: %w", id, errs.ErrUnknownTier)
	}
	return tier, nil
}
