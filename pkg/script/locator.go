package script

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/keyword-runner/pkg/calendar"
	"github.com/devicelab-dev/keyword-runner/pkg/core"
)

// LocatorMap maps element keys to locator strings.
type LocatorMap map[string]string

// LoadLocators reads a YAML locator map. Nested mappings are flattened
// into dotted keys, so
//
//	checkin:
//	  header: //div[@class='month']
//
// is the same as "checkin.header: //div[@class='month']".
func LoadLocators(path string) (LocatorMap, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided locator file
	if err != nil {
		return nil, fmt.Errorf("failed to read locator map: %w", err)
	}
	m, err := ParseLocators(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseLocators parses YAML locator map content.
func ParseLocators(data []byte) (LocatorMap, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid locator map").WithCause(err)
	}
	m := make(LocatorMap)
	if err := flatten("", raw, m); err != nil {
		return nil, err
	}
	return m, nil
}

func flatten(prefix string, raw map[string]interface{}, out LocatorMap) error {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		case string:
			out[key] = val
		case nil:
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("locator %q is empty", key))
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return nil
}

// Resolve returns the locator for key.
func (m LocatorMap) Resolve(key string) (core.Locator, bool) {
	raw, ok := m[key]
	if !ok {
		return core.Locator{}, false
	}
	loc := core.ParseLocator(raw)
	return loc, !loc.IsEmpty()
}

// Keys returns the sorted keys of the map.
func (m LocatorMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// widget resolves the calendar locator set under prefix and returns the
// keys that are missing.
func (m LocatorMap) widget(prefix string) (calendar.Widget, []string) {
	var (
		w       calendar.Widget
		missing []string
	)
	required := []struct {
		suffix string
		dst    *core.Locator
	}{
		{"header", &w.Header},
		{"previous", &w.Previous},
		{"next", &w.Next},
		{"days", &w.Days},
	}
	for _, r := range required {
		loc, ok := m.Resolve(prefix + "." + r.suffix)
		if !ok {
			missing = append(missing, prefix+"."+r.suffix)
			continue
		}
		*r.dst = loc
	}
	if loc, ok := m.Resolve(prefix + ".open"); ok {
		w.Open = loc
	}
	return w, missing
}
