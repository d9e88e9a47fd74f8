package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weatherkit-gateway/internal/client"
)

// ErrInvalidLatitude is returned when latitude is not a number in [-90, 90].
var ErrInvalidLatitude = errors.New("latitude must be a number between -90 and 90")

// ErrInvalidLongitude is returned when longitude is not a number in [-180, 180].
var ErrInvalidLongitude = errors.New("longitude must be a number between -180 and 180")

// ErrInvalidLanguage is returned when language is not a BCP 47 tag.
var ErrInvalidLanguage = errors.New("language must be a BCP 47 language tag")

// ErrInvalidCountry is returned when country is not an ISO 3166-1 alpha-2 code.
var ErrInvalidCountry = errors.New("country must be an ISO 3166-1 alpha-2 code")

// ErrInvalidTimeBound is returned when a daily/hourly bound is not RFC 3339.
var ErrInvalidTimeBound = errors.New("time bounds must be RFC 3339 timestamps")

// ErrUnknownDataSet is returned when dataSets names something WeatherKit does not serve.
var ErrUnknownDataSet = errors.New("unknown data set")

var validate = validator.New()

type coordinates struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

type availabilityQuery struct {
	Country string `validate:"omitempty,iso3166_1_alpha2"`
}

type weatherQuery struct {
	Language    string `validate:"omitempty,bcp47_language_tag"`
	DailyStart  string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DailyEnd    string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	HourlyStart string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	HourlyEnd   string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// fieldErrors maps struct field names to the sentinel reported for them.
var fieldErrors = map[string]error{
	"Latitude":    ErrInvalidLatitude,
	"Longitude":   ErrInvalidLongitude,
	"Language":    ErrInvalidLanguage,
	"Country":     ErrInvalidCountry,
	"DailyStart":  ErrInvalidTimeBound,
	"DailyEnd":    ErrInvalidTimeBound,
	"HourlyStart": ErrInvalidTimeBound,
	"HourlyEnd":   ErrInvalidTimeBound,
}

// ParseCoordinates parses path segments into a latitude/longitude pair.
func ParseCoordinates(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, ErrInvalidLatitude
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, ErrInvalidLongitude
	}
	if err := check(coordinates{Latitude: lat, Longitude: lon}); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// ParseCountry normalizes country to upper case. Empty is allowed and left to
// the caller's default.
func ParseCountry(country string) (string, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if err := check(availabilityQuery{Country: country}); err != nil {
		return "", err
	}
	return country, nil
}

// ParseDataSets splits a comma-separated list of data set keys or wire names.
// Empty entries are skipped. Unknown names are rejected so a typo does not
// silently shrink the response.
func ParseDataSets(csv string) ([]client.DataSet, error) {
	var sets []client.DataSet
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, ok := client.LookupDataSet(part)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDataSet, part)
		}
		sets = append(sets, d)
	}
	return sets, nil
}

// ParseWeatherOptions builds client options from gateway query parameters:
// dataSets, language, dailyStart, dailyEnd, hourlyStart, hourlyEnd.
// defaultLanguage fills an absent language.
func ParseWeatherOptions(q url.Values, defaultLanguage string) (client.WeatherOptions, error) {
	wq := weatherQuery{
		Language:    strings.TrimSpace(q.Get("language")),
		DailyStart:  strings.TrimSpace(q.Get("dailyStart")),
		DailyEnd:    strings.TrimSpace(q.Get("dailyEnd")),
		HourlyStart: strings.TrimSpace(q.Get("hourlyStart")),
		HourlyEnd:   strings.TrimSpace(q.Get("hourlyEnd")),
	}
	if err := check(wq); err != nil {
		return client.WeatherOptions{}, err
	}
	sets, err := ParseDataSets(q.Get("dataSets"))
	if err != nil {
		return client.WeatherOptions{}, err
	}
	if wq.Language == "" {
		wq.Language = defaultLanguage
	}
	return client.WeatherOptions{
		DataSets:    sets,
		Language:    wq.Language,
		DailyStart:  wq.DailyStart,
		DailyEnd:    wq.DailyEnd,
		HourlyStart: wq.HourlyStart,
		HourlyEnd:   wq.HourlyEnd,
	}, nil
}

// check runs struct validation and reports the first failing field as its sentinel.
func check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if sentinel, ok := fieldErrors[verrs[0].Field()]; ok {
			return sentinel
		}
	}
	return err
}
