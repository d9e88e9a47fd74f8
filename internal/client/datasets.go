package client

// DataSet names a category of weather data requested through the dataSets
// query parameter.
type DataSet string

// Supported data sets.
const (
	DataSetCurrentWeather   DataSet = "current_weather"
	DataSetForecastDaily    DataSet = "forecast_daily"
	DataSetForecastHourly   DataSet = "forecast_hourly"
	DataSetTrendComparison  DataSet = "trend_comparison"
	DataSetWeatherAlerts    DataSet = "weather_alerts"
	DataSetForecastNextHour DataSet = "forecast_next_hour"
)

var allDataSets = []DataSet{
	DataSetCurrentWeather,
	DataSetForecastDaily,
	DataSetForecastHourly,
	DataSetTrendComparison,
	DataSetWeatherAlerts,
	DataSetForecastNextHour,
}

var wireNames = map[DataSet]string{
	DataSetCurrentWeather:   "currentWeather",
	DataSetForecastDaily:    "forecastDaily",
	DataSetForecastHourly:   "forecastHourly",
	DataSetTrendComparison:  "trendComparison",
	DataSetWeatherAlerts:    "weatherAlerts",
	DataSetForecastNextHour: "forecastNextHour",
}

// AllDataSets returns every supported data set in declaration order.
func AllDataSets() []DataSet {
	out := make([]DataSet, len(allDataSets))
	copy(out, allDataSets)
	return out
}

// WireName returns the upstream name for d, and false for unknown data sets.
func (d DataSet) WireName() (string, bool) {
	w, ok := wireNames[d]
	return w, ok
}

// WireNames maps sets to upstream names in order. Unknown entries are dropped
// silently; duplicates are kept.
func WireNames(sets []DataSet) []string {
	out := make([]string, 0, len(sets))
	for _, d := range sets {
		if w, ok := d.WireName(); ok {
			out = append(out, w)
		}
	}
	return out
}

// LookupDataSet resolves name given either as a key (forecast_daily) or as a
// wire name (forecastDaily).
func LookupDataSet(name string) (DataSet, bool) {
	if _, ok := wireNames[DataSet(name)]; ok {
		return DataSet(name), true
	}
	for d, w := range wireNames {
		if w == name {
			return d, true
		}
	}
	return "", false
}
