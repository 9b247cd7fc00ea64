package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"finquest/core"
)

// rewardsEnv overrides single reward table entries, e.g.
// "login=15,quiz_completed=10:3" where the optional second number is the
// streak bonus.
const rewardsEnv = "FINQUEST_ENGINE_REWARDS"

var durationType = reflect.TypeOf(time.Duration(0))

// loadFromEnv overlays env-tagged fields and reward overrides onto cfg.
func loadFromEnv(cfg *Config) error {
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), "config"); err != nil {
		return err
	}
	if v := os.Getenv(rewardsEnv); v != "" {
		if err := applyRewardOverrides(&cfg.Engine.Rewards, v); err != nil {
			return fmt.Errorf("%s: %w", rewardsEnv, err)
		}
	}
	return nil
}

// loadStruct walks nested structs and sets every field whose env tag names a
// non-empty variable. path names the field in errors.
func loadStruct(val reflect.Value, path string) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := path + "." + jsonName(sf)

		if field.Kind() == reflect.Struct {
			if err := loadStruct(field, name); err != nil {
				return err
			}
			continue
		}

		key := sf.Tag.Get("env")
		if key == "" {
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("%s from %s: %w", name, key, err)
		}
	}
	return nil
}

func jsonName(sf reflect.StructField) string {
	if tag, _, _ := strings.Cut(sf.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(sf.Name)
}

// setField parses raw into field according to its kind.
func setField(field reflect.Value, raw string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.String:
		field.SetString(raw)
		return nil
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", raw)
		}
		field.SetBool(b)
		return nil
	case field.CanInt():
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
		return nil
	case field.CanUint():
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", raw)
		}
		field.SetUint(n)
		return nil
	case field.CanFloat():
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float %q", raw)
		}
		field.SetFloat(f)
		return nil
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := splitList(raw)
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(p)
		}
		field.Set(slice)
		return nil
	case field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.String:
		m := reflect.MakeMap(field.Type())
		for _, pair := range splitList(raw) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid map entry %q, want key=value", pair)
			}
			m.SetMapIndex(reflect.ValueOf(strings.TrimSpace(k)).Convert(field.Type().Key()),
				reflect.ValueOf(strings.TrimSpace(v)).Convert(field.Type().Elem()))
		}
		field.Set(m)
		return nil
	}
	return fmt.Errorf("unsupported field type %s", field.Type())
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyRewardOverrides merges "type=base[:streak_bonus]" entries into t.
func applyRewardOverrides(t *core.RewardTable, raw string) error {
	if t.Events == nil {
		t.Events = map[core.EventType]core.Reward{}
	}
	for _, entry := range splitList(raw) {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("invalid entry %q, want type=base[:streak_bonus]", entry)
		}
		base, bonus, hasBonus := strings.Cut(value, ":")
		r := t.Events[core.EventType(name)]
		n, err := strconv.ParseInt(base, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid base in %q", entry)
		}
		r.Base = n
		if hasBonus {
			if r.StreakBonus, err = strconv.ParseInt(bonus, 10, 64); err != nil {
				return fmt.Errorf("invalid streak bonus in %q", entry)
			}
		}
		t.Events[core.EventType(name)] = r
	}
	return nil
}
