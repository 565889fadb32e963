package template

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/phillip-england/staffplan/internal/roster"
)

// Profiles are externally supplied weekly slot layers.
type Profiles struct {
	Default   Layer
	Locations map[roster.Location]Layer
}

type profileFile struct {
	Default   map[string][]Entry            `yaml:"default"`
	Locations map[string]map[string][]Entry `yaml:"locations"`
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
	"sun":       time.Sunday,
}

// LoadProfiles reads the profile override file. A missing path yields empty
// profiles.
func LoadProfiles(path string) (Profiles, error) {
	if strings.TrimSpace(path) == "" {
		return Profiles{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Profiles{}, nil
		}
		return Profiles{}, fmt.Errorf("read template profiles: %w", err)
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (Profiles, error) {
	var raw profileFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Profiles{}, fmt.Errorf("parse template profiles: %w", err)
	}
	profiles := Profiles{
		Default:   toLayer(raw.Default),
		Locations: map[roster.Location]Layer{},
	}
	for code, days := range raw.Locations {
		loc, err := roster.ParseLocation(code)
		if err != nil || loc == roster.LocationBoth {
			continue
		}
		profiles.Locations[loc] = toLayer(days)
	}
	return profiles, nil
}

func toLayer(days map[string][]Entry) Layer {
	if len(days) == 0 {
		return nil
	}
	layer := Layer{}
	for name, entries := range days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		layer[wd] = entries
	}
	return layer
}
