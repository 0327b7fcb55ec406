package application

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	billing "home-energy/internal/billing/domain"
	metering "home-energy/internal/metering/domain"
)

// TariffConfig defines the tariff calendar and price schedule.
type TariffConfig struct {
	Timezone        string         `yaml:"timezone"`
	NightFromHour   *int           `yaml:"night_from_hour"`
	NightUntilHour  *int           `yaml:"night_until_hour"`
	WeekendNight    *bool          `yaml:"weekend_night"`
	Tiers           []billing.Tier `yaml:"tiers"`
	SurchargePerKWh *float64       `yaml:"surcharge_per_kwh"`
	TaxRate         *float64       `yaml:"tax_rate"`
	Currency        string         `yaml:"currency"`
}

// Tariff is the resolved tariff setup.
type Tariff struct {
	Calendar metering.Calendar
	Schedule billing.Schedule
}

// LoadTariffConfig loads the tariff from the yaml at TARIFF_CONFIG when set,
// then applies TARIFF_TIMEZONE. Missing values keep their defaults.
func LoadTariffConfig() (Tariff, error) {
	var cfg TariffConfig
	if path := os.Getenv("TARIFF_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Tariff{}, fmt.Errorf("tariff config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Tariff{}, fmt.Errorf("tariff config: %w", err)
		}
	}
	if tz := os.Getenv("TARIFF_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	return cfg.Resolve()
}

// Resolve merges the config over the defaults and validates the result.
func (c TariffConfig) Resolve() (Tariff, error) {
	loc := time.UTC
	if c.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return Tariff{}, fmt.Errorf("tariff config: timezone %q: %w", c.Timezone, err)
		}
	}

	calendar := metering.DefaultCalendar(loc)
	if c.NightFromHour != nil {
		calendar.NightFromHour = *c.NightFromHour
	}
	if c.NightUntilHour != nil {
		calendar.NightUntilHour = *c.NightUntilHour
	}
	if c.WeekendNight != nil {
		calendar.WeekendNight = *c.WeekendNight
	}
	if err := calendar.Validate(); err != nil {
		return Tariff{}, err
	}

	schedule := billing.DefaultSchedule()
	if len(c.Tiers) > 0 {
		schedule.Tiers = append([]billing.Tier(nil), c.Tiers...)
	}
	if c.SurchargePerKWh != nil {
		schedule.SurchargePerKWh = *c.SurchargePerKWh
	}
	if c.TaxRate != nil {
		schedule.TaxRate = *c.TaxRate
	}
	if c.Currency != "" {
		schedule.Currency = c.Currency
	}
	if err := schedule.Validate(); err != nil {
		return Tariff{}, err
	}
	return Tariff{Calendar: calendar, Schedule: schedule}, nil
}

// String describes the tariff for startup logs.
func (t Tariff) String() string {
	return fmt.Sprintf("tz=%s night=%d-%d weekend_night=%t tiers=%d currency=%s",
		t.Calendar.Location, t.Calendar.NightFromHour, t.Calendar.NightUntilHour,
		t.Calendar.WeekendNight, len(t.Schedule.Tiers), t.Schedule.Currency)
}
