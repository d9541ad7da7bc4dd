package models

import "fmt"

// Built-in model type names.
const (
	TypePopulation   = "POPULATION"
	TypeDemographics = "DEMOGRAPHICS"
	TypeEconomics    = "ECONOMICS"
	TypeHealth       = "HEALTH"
	TypeWeather      = "WEATHER"
)

// Optional values are pointers so that an absent value stays distinguishable
// from zero; absent values marshal as null.

// Population holds head counts for a region.
type Population struct {
	Total      *float64           `json:"total"`
	Male       *float64           `json:"male"`
	Female     *float64           `json:"female"`
	Density    *float64           `json:"density"`
	ByAgeGroup map[string]float64 `json:"by_age_group"`
	Change     *PopulationChange  `json:"change"`
}

// PopulationChange holds the components of population change over a period.
type PopulationChange struct {
	Births       *float64 `json:"births"`
	Deaths       *float64 `json:"deaths"`
	NetMigration *float64 `json:"net_migration"`
}

func (*Population) ModelName() string { return TypePopulation }

func (p *Population) Validate() error {
	if err := nonNegative("total", p.Total, "male", p.Male, "female", p.Female, "density", p.Density); err != nil {
		return err
	}
	for group, count := range p.ByAgeGroup {
		if count < 0 {
			return fmt.Errorf("by_age_group[%s] must be >= 0 (got %v)", group, count)
		}
	}
	if p.Change != nil {
		if err := nonNegative("change.births", p.Change.Births, "change.deaths", p.Change.Deaths); err != nil {
			return err
		}
	}
	return nil
}

// Demographics holds population structure indicators.
type Demographics struct {
	Population     DemographicsPopulation `json:"population"`
	LifeExpectancy LifeExpectancy         `json:"life_expectancy"`
	Fertility      Fertility              `json:"fertility"`
	Mortality      Mortality              `json:"mortality"`
	MedianAge      *float64               `json:"median_age"`
}

// DemographicsPopulation is the head count block embedded in Demographics.
type DemographicsPopulation struct {
	Total  *float64 `json:"total"`
	Male   *float64 `json:"male"`
	Female *float64 `json:"female"`
}

// LifeExpectancy is expressed in years.
type LifeExpectancy struct {
	AtBirth *float64 `json:"at_birth"`
	Male    *float64 `json:"male"`
	Female  *float64 `json:"female"`
}

// Fertility indicators.
type Fertility struct {
	TotalFertilityRate *float64 `json:"total_fertility_rate"`
	BirthRate          *float64 `json:"birth_rate"`
}

// Mortality rates are per 1000 inhabitants, infant mortality per 1000 live births.
type Mortality struct {
	DeathRate           *float64 `json:"death_rate"`
	InfantMortalityRate *float64 `json:"infant_mortality_rate"`
}

func (*Demographics) ModelName() string { return TypeDemographics }

func (d *Demographics) Validate() error {
	return nonNegative(
		"population.total", d.Population.Total,
		"population.male", d.Population.Male,
		"population.female", d.Population.Female,
		"life_expectancy.at_birth", d.LifeExpectancy.AtBirth,
		"fertility.total_fertility_rate", d.Fertility.TotalFertilityRate,
		"mortality.death_rate", d.Mortality.DeathRate,
		"median_age", d.MedianAge,
	)
}

// Economics holds macro-economic indicators.
type Economics struct {
	GDP          GDP          `json:"gdp"`
	Inflation    Inflation    `json:"inflation"`
	Trade        Trade        `json:"trade"`
	Unemployment Unemployment `json:"unemployment"`
	Currency     *string      `json:"currency"`
}

// GDP values are in Units (e.g. "current USD").
type GDP struct {
	Total     *float64 `json:"total"`
	PerCapita *float64 `json:"per_capita"`
	Units     *string  `json:"units"`
}

// Inflation indicators.
type Inflation struct {
	CPI  *float64 `json:"cpi"`
	Rate *float64 `json:"rate"`
}

// Trade volumes.
type Trade struct {
	Exports *float64 `json:"exports"`
	Imports *float64 `json:"imports"`
	Balance *float64 `json:"balance"`
}

// Unemployment rate is a percentage of the labour force.
type Unemployment struct {
	Rate  *float64 `json:"rate"`
	Total *float64 `json:"total"`
}

func (*Economics) ModelName() string { return TypeEconomics }

func (e *Economics) Validate() error {
	if err := nonNegative("trade.exports", e.Trade.Exports, "trade.imports", e.Trade.Imports, "unemployment.total", e.Unemployment.Total); err != nil {
		return err
	}
	return percentage("unemployment.rate", e.Unemployment.Rate)
}

// Health holds health system indicators.
type Health struct {
	Expenditure HealthExpenditure `json:"expenditure"`
	Facilities  HealthFacilities  `json:"facilities"`
	Workforce   HealthWorkforce   `json:"workforce"`
}

// HealthExpenditure indicators.
type HealthExpenditure struct {
	PercentOfGDP *float64 `json:"percent_of_gdp"`
	PerCapita    *float64 `json:"per_capita"`
}

// HealthFacilities indicators.
type HealthFacilities struct {
	Hospitals           *float64 `json:"hospitals"`
	HospitalBedsPer1000 *float64 `json:"hospital_beds_per_1000"`
}

// HealthWorkforce densities per 1000 inhabitants.
type HealthWorkforce struct {
	PhysiciansPer1000 *float64 `json:"physicians_per_1000"`
	NursesPer1000     *float64 `json:"nurses_per_1000"`
}

func (*Health) ModelName() string { return TypeHealth }

func (h *Health) Validate() error {
	if err := percentage("expenditure.percent_of_gdp", h.Expenditure.PercentOfGDP); err != nil {
		return err
	}
	return nonNegative(
		"expenditure.per_capita", h.Expenditure.PerCapita,
		"facilities.hospitals", h.Facilities.Hospitals,
		"facilities.hospital_beds_per_1000", h.Facilities.HospitalBedsPer1000,
		"workforce.physicians_per_1000", h.Workforce.PhysiciansPer1000,
		"workforce.nurses_per_1000", h.Workforce.NursesPer1000,
	)
}

// Weather holds climate observations. Temperatures are in degrees Celsius.
type Weather struct {
	Temperature   Temperature   `json:"temperature"`
	Precipitation Precipitation `json:"precipitation"`
	Wind          Wind          `json:"wind"`
	SunshineHours *float64      `json:"sunshine_hours"`
}

// Temperature statistics for the period.
type Temperature struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
}

// Precipitation totals in millimetres.
type Precipitation struct {
	Total *float64 `json:"total"`
	Days  *float64 `json:"days"`
}

// Wind speeds in metres per second.
type Wind struct {
	MeanSpeed *float64 `json:"mean_speed"`
	MaxGust   *float64 `json:"max_gust"`
}

func (*Weather) ModelName() string { return TypeWeather }

func (w *Weather) Validate() error {
	t := w.Temperature
	if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
		return fmt.Errorf("temperature.min %v exceeds temperature.max %v", *t.Min, *t.Max)
	}
	return nonNegative(
		"precipitation.total", w.Precipitation.Total,
		"precipitation.days", w.Precipitation.Days,
		"wind.mean_speed", w.Wind.MeanSpeed,
		"wind.max_gust", w.Wind.MaxGust,
		"sunshine_hours", w.SunshineHours,
	)
}

// nonNegative takes alternating field names and values.
func nonNegative(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		v, _ := pairs[i+1].(*float64)
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be >= 0 (got %v)", name, *v)
		}
	}
	return nil
}

func percentage(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 100) {
		return fmt.Errorf("%s must be within [0, 100] (got %v)", name, *v)
	}
	return nil
}
