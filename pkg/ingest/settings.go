package ingest

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/zip-ingest/pkg/yelp"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Setting keys accepted by ParseSettings.
const (
	KeyMaxAPICalls        = "max_api_calls"
	KeyTargetCountPerArea = "target_count_per_area"
	KeySearchRadius       = "search_radius"
	KeyPageSize           = "page_size"
	KeyCategory           = "category"
	KeyTrustTotal         = "trust_total"
)

// Default setting values.
const (
	DefaultMaxAPICalls        = 5000
	DefaultTargetCountPerArea = 50
	DefaultSearchRadius       = 5000
	DefaultPageSize           = yelp.MaxPageSize
	DefaultCategory           = "restaurants"
)

// settingAliases maps legacy option names to their current key.
var settingAliases = map[string]string{
	"restaurants_per_zip": KeyTargetCountPerArea,
	"radius_meters":       KeySearchRadius,
	"batch_size":          KeyPageSize,
}

// Settings configure one ingestion run.
type Settings struct {
	// MaxAPICalls is the global ceiling on search calls for the run.
	MaxAPICalls int

	// TargetCountPerArea is the number of accepted records wanted per ZIP code.
	TargetCountPerArea int

	// SearchRadius in meters.
	SearchRadius int

	// PageSize is the number of items per search call, at most 50.
	PageSize int

	// Category is the search category filter.
	Category string

	// TrustTotal stops paging once the source's reported total is reached.
	// When false, paging continues until an empty page.
	TrustTotal bool
}

// DefaultSettings returns the default run settings.
func DefaultSettings() Settings {
	return Settings{
		MaxAPICalls:        DefaultMaxAPICalls,
		TargetCountPerArea: DefaultTargetCountPerArea,
		SearchRadius:       DefaultSearchRadius,
		PageSize:           DefaultPageSize,
		Category:           DefaultCategory,
		TrustTotal:         true,
	}
}

// ParseSettings builds Settings from a mapping of option names to values.
// Unspecified options take their defaults; page_size is clamped to 50.
// A value that cannot be read as the option's type is an error.
func ParseSettings(options map[string]any) (Settings, error) {
	v := viper.New()
	v.SetDefault(KeyMaxAPICalls, DefaultMaxAPICalls)
	v.SetDefault(KeyTargetCountPerArea, DefaultTargetCountPerArea)
	v.SetDefault(KeySearchRadius, DefaultSearchRadius)
	v.SetDefault(KeyPageSize, DefaultPageSize)
	v.SetDefault(KeyCategory, DefaultCategory)
	v.SetDefault(KeyTrustTotal, true)

	if err := v.MergeConfigMap(canonicalOptions(options)); err != nil {
		return Settings{}, fmt.Errorf("merge settings: %w", err)
	}

	s := Settings{Category: strings.TrimSpace(v.GetString(KeyCategory))}

	ints := []struct {
		key string
		dst *int
	}{
		{KeyMaxAPICalls, &s.MaxAPICalls},
		{KeyTargetCountPerArea, &s.TargetCountPerArea},
		{KeySearchRadius, &s.SearchRadius},
		{KeyPageSize, &s.PageSize},
	}
	for _, f := range ints {
		n, err := cast.ToIntE(v.Get(f.key))
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = n
	}

	trust, err := cast.ToBoolE(v.Get(KeyTrustTotal))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", KeyTrustTotal, err)
	}
	s.TrustTotal = trust

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s.normalized(), nil
}

// Validate rejects negative limits.
func (s Settings) Validate() error {
	if s.MaxAPICalls < 0 {
		return fmt.Errorf("%s must be >= 0 (got %d)", KeyMaxAPICalls, s.MaxAPICalls)
	}
	if s.TargetCountPerArea < 0 {
		return fmt.Errorf("%s must be >= 0 (got %d)", KeyTargetCountPerArea, s.TargetCountPerArea)
	}
	if s.SearchRadius < 0 {
		return fmt.Errorf("%s must be >= 0 (got %d)", KeySearchRadius, s.SearchRadius)
	}
	return nil
}

// normalized clamps the page size and fills an empty category.
func (s Settings) normalized() Settings {
	if s.PageSize <= 0 || s.PageSize > yelp.MaxPageSize {
		s.PageSize = yelp.MaxPageSize
	}
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	return s
}

// canonicalOptions lowercases keys and resolves legacy aliases.
// A current key wins over its alias when both are present.
func canonicalOptions(options map[string]any) map[string]any {
	out := make(map[string]any, len(options))
	for k, val := range options {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, isAlias := settingAliases[key]; isAlias {
			continue
		}
		out[key] = val
	}
	for k, val := range options {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, isAlias := settingAliases[key]; isAlias {
			if _, exists := out[canonical]; !exists {
				out[canonical] = val
			}
		}
	}
	return out
}
