package featureopt

import (
	"regexp"
	"strconv"
	"strings"
)

var hardwareIDPattern = regexp.MustCompile(`^[0-9A-F]{12}$`)

// FeatureOptions is the lookup interface consumed by the bridge.
type FeatureOptions interface {
	HasFeature(option, deviceID, controllerID string) bool
	GetNumber(option, deviceID, controllerID string) (int, bool)
	GetFloat(option, deviceID, controllerID string) (float64, bool)
	GetValue(option, deviceID, controllerID string) (string, bool)
}

type entry struct {
	enabled bool
	value   string
}

type scopeKey struct {
	option string
	id     string
}

// Resolver answers feature option lookups.
type Resolver struct {
	catalog map[string]Option
	entries map[scopeKey]entry
	unknown []string
	invalid []string
}

// New parses the configured entries against catalog.
func New(catalog []Option, configured []string) *Resolver {
	r := &Resolver{
		catalog: make(map[string]Option, len(catalog)),
		entries: make(map[scopeKey]entry, len(configured)),
	}

	for _, opt := range catalog {
		r.catalog[strings.ToLower(opt.Name)] = opt
	}

	for _, raw := range configured {
		r.parse(raw)
	}

	return r
}

func (r *Resolver) parse(raw string) {
	tokens := strings.Split(strings.TrimSpace(raw), ".")
	if len(tokens) < 2 {
		r.invalid = append(r.invalid, raw)
		return
	}

	var enabled bool
	switch strings.ToLower(tokens[0]) {
	case "enable":
		enabled = true
	case "disable":
		enabled = false
	default:
		r.invalid = append(r.invalid, raw)
		return
	}
	tokens = tokens[1:]

	// Longest catalog name that prefixes the remaining tokens.
	nameLen := 0
	for i := len(tokens); i > 0; i-- {
		if _, ok := r.catalog[strings.ToLower(strings.Join(tokens[:i], "."))]; ok {
			nameLen = i
			break
		}
	}

	if nameLen == 0 {
		// Unknown option: everything up to a hardware id is the name.
		nameLen = len(tokens)
		for i, tok := range tokens {
			if i > 0 && hardwareIDPattern.MatchString(strings.ToUpper(tok)) {
				nameLen = i
				break
			}
		}
		r.unknown = append(r.unknown, raw)
	}

	key := scopeKey{option: strings.ToLower(strings.Join(tokens[:nameLen], "."))}
	rest := tokens[nameLen:]

	if len(rest) > 0 && hardwareIDPattern.MatchString(strings.ToUpper(rest[0])) {
		key.id = strings.ToUpper(rest[0])
		rest = rest[1:]
	}

	e := entry{enabled: enabled}
	if enabled && len(rest) > 0 {
		e.value = strings.Join(rest, ".")
	}

	r.entries[key] = e
}

// Unknown returns configured entries naming options outside the catalog.
func (r *Resolver) Unknown() []string {
	return append([]string(nil), r.unknown...)
}

// Invalid returns configured entries that could not be parsed.
func (r *Resolver) Invalid() []string {
	return append([]string(nil), r.invalid...)
}

// lookup returns the most specific entry for option.
func (r *Resolver) lookup(option, deviceID, controllerID string) (entry, bool) {
	name := strings.ToLower(option)

	for _, id := range []string{ID(deviceID), ID(controllerID)} {
		if id == "" {
			continue
		}
		if e, ok := r.entries[scopeKey{option: name, id: id}]; ok {
			return e, true
		}
	}

	e, ok := r.entries[scopeKey{option: name}]
	return e, ok
}

// HasFeature reports whether option is enabled for the device and controller.
func (r *Resolver) HasFeature(option, deviceID, controllerID string) bool {
	if e, ok := r.lookup(option, deviceID, controllerID); ok {
		return e.enabled
	}
	return r.catalog[strings.ToLower(option)].Default
}

// GetValue returns the value attached to option. It is false when the option
// is disabled or carries no value.
func (r *Resolver) GetValue(option, deviceID, controllerID string) (string, bool) {
	def := r.catalog[strings.ToLower(option)]

	e, ok := r.lookup(option, deviceID, controllerID)
	if !ok {
		if !def.Default || def.DefaultValue == "" {
			return "", false
		}
		return def.DefaultValue, true
	}

	if !e.enabled {
		return "", false
	}
	if e.value != "" {
		return e.value, true
	}
	if def.DefaultValue != "" {
		return def.DefaultValue, true
	}
	return "", false
}

// GetNumber returns the option value as an integer.
func (r *Resolver) GetNumber(option, deviceID, controllerID string) (int, bool) {
	v, ok := r.GetValue(option, deviceID, controllerID)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetFloat returns the option value as a float.
func (r *Resolver) GetFloat(option, deviceID, controllerID string) (float64, bool) {
	v, ok := r.GetValue(option, deviceID, controllerID)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ID normalises a MAC address or hardware id for option scoping:
// separators removed, upper case.
func ID(mac string) string {
	if mac == "" {
		return ""
	}
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToUpper(r.Replace(mac))
}
