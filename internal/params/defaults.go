package params

import (
	"time"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

const day = 24 * time.Hour

func ptr[T any](v T) *T { return &v }

func layer(span, step time.Duration) Layer {
	return Layer{Span: ptr(span), Step: ptr(step)}
}

func disabled(span, step time.Duration) Layer {
	l := layer(span, step)
	l.Enabled = ptr(false)
	return l
}

func moons(center string) CategoryConfig {
	return CategoryConfig{Default: &Layer{
		Span:    ptr(60 * day),
		Step:    ptr(day),
		Center:  ptr(center),
		Enabled: ptr(false),
	}}
}

// DefaultConfig returns the built-in parameter table with the reference
// stop set to now plus ValidityBuffer.
func DefaultConfig(now time.Time) Config {
	stop := now.UTC().Truncate(time.Second).Add(ValidityBuffer)

	return Config{
		Default: Layer{
			Span:   ptr(365 * day),
			Stop:   &stop,
			Step:   ptr(day),
			Center: ptr(RootCenter),
		},
		Objects: map[orbit.Category]CategoryConfig{
			orbit.SunAndPlanets: {Individual: map[string]Layer{
				"199": layer(88*day, 6*time.Hour),
				"299": layer(224*day, 12*time.Hour),
				"399": {Step: ptr(12 * time.Hour)},
				"499": layer(686*day, 12*time.Hour),
				"599": disabled(4333*day, 7*day),
				"699": disabled(10759*day, 7*day),
				"799": disabled(30685*day, 14*day),
				"899": disabled(60190*day, 21*day),
			}},
			orbit.JovianSatellites:    moons("599"),
			orbit.SaturianSatellites:  moons("699"),
			orbit.UranianSatellites:   moons("799"),
			orbit.NeptunianSatellites: moons("899"),
			orbit.OtherSatellites: {
				Default: &Layer{Span: ptr(60 * day), Step: ptr(day), Center: ptr(DwarfPlanetCenter)},
				Individual: map[string]Layer{
					"301": {Span: ptr(27 * day), Step: ptr(time.Hour), Center: ptr("399"), TrailDuration: ptr(7 * day)},
					"401": {Span: ptr(8 * time.Hour), Step: ptr(15 * time.Minute), Center: ptr("499"), TrailDuration: ptr(2 * time.Hour)},
					"402": {Span: ptr(30 * time.Hour), Step: ptr(15 * time.Minute), Center: ptr("499"), TrailDuration: ptr(8 * time.Hour)},
				},
			},
			orbit.Spacecrafts:  {Default: ptr(layer(60*day, time.Hour))},
			orbit.Comets:       {Default: ptr(layer(180*day, day))},
			orbit.NEOAsteroids: {Default: ptr(layer(60*day, day))},
			orbit.IMBAsteroids: {Default: ptr(layer(30*day, day))},
			orbit.MBAAsteroids: {Default: ptr(layer(30*day, day))},
		},
	}
}
