package aggregate

import "github.com/septivank/farm-telemetry/internal/model"

// stat is a running sum/count/min/max of one field.
type stat struct {
	sum   float64
	count int
	min   float64
	max   float64
}

func (s *stat) add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.count++
}

func (s *stat) addOptional(v *float64) {
	if v != nil {
		s.add(*v)
	}
}

func (s stat) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// optionalMean is nil when no value was seen.
func (s stat) optionalMean() *float64 {
	if s.count == 0 {
		return nil
	}
	m := s.mean()
	return &m
}

// Accumulator folds readings in a single pass.
type Accumulator struct {
	soil  stat
	temp  stat
	hum   stat
	gas   stat
	light stat
	count int
}

// Add folds one reading into the accumulator.
func (a *Accumulator) Add(r model.Reading) {
	a.soil.add(r.SoilMoisture)
	a.temp.add(r.Temperature)
	a.hum.add(r.Humidity)
	a.gas.addOptional(r.GasLevel)
	a.light.addOptional(r.LightLevel)
	a.count++
}

// DailySummary is nil when the accumulator is empty.
func (a *Accumulator) DailySummary() *DailySummary {
	if a.count == 0 {
		return nil
	}
	return &DailySummary{
		AvgSoil:       Round2(a.soil.mean()),
		AvgTemp:       Round2(a.temp.mean()),
		AvgHum:        Round2(a.hum.mean()),
		AvgGas:        round2Ptr(a.gas.optionalMean()),
		AvgLight:      round2Ptr(a.light.optionalMean()),
		MaxTemp:       a.temp.max,
		MinTemp:       a.temp.min,
		MaxHum:        a.hum.max,
		MinHum:        a.hum.min,
		TotalReadings: a.count,
	}
}

func (a *Accumulator) dayEntry(date string) DayEntry {
	return DayEntry{
		Date:     date,
		AvgSoil:  Round2(a.soil.mean()),
		AvgTemp:  Round2(a.temp.mean()),
		AvgHum:   Round2(a.hum.mean()),
		AvgGas:   round2Ptr(a.gas.optionalMean()),
		AvgLight: round2Ptr(a.light.optionalMean()),
		MaxTemp:  a.temp.max,
		MinTemp:  a.temp.min,
		MaxHum:   a.hum.max,
		MinHum:   a.hum.min,
		Readings: a.count,
	}
}

// monthAccumulator folds whole days. Overall averages are the mean of the
// unrounded per-day means.
type monthAccumulator struct {
	soilMeans stat
	tempMeans stat
	humMeans  stat
	tempMax   float64
	tempMin   float64
	days      int
	readings  int
}

func (m *monthAccumulator) addDay(day *Accumulator) {
	if day.count == 0 {
		return
	}
	m.soilMeans.add(day.soil.mean())
	m.tempMeans.add(day.temp.mean())
	m.humMeans.add(day.hum.mean())
	if m.days == 0 || day.temp.max > m.tempMax {
		m.tempMax = day.temp.max
	}
	if m.days == 0 || day.temp.min < m.tempMin {
		m.tempMin = day.temp.min
	}
	m.days++
	m.readings += day.count
}

func (m *monthAccumulator) summary() *MonthlySummary {
	if m.days == 0 {
		return nil
	}
	return &MonthlySummary{
		TotalDays:      m.days,
		OverallAvgTemp: Round2(m.tempMeans.mean()),
		OverallAvgHum:  Round2(m.humMeans.mean()),
		OverallAvgSoil: Round2(m.soilMeans.mean()),
		MaxTemp:        m.tempMax,
		MinTemp:        m.tempMin,
		TotalReadings:  m.readings,
	}
}
