/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/satellitehive/pkg/logger"
)

var (
	ErrDstMustBeNonNilPointer   = errors.New("dst must be a non-nil pointer")
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

//nolint:gochecknoglobals // reflect type lookups
var (
	durationType    = reflect.TypeOf(time.Duration(0))
	unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// EnvConfigLoader fills a config struct from environment variables named
// after its JSON tags. Nested structs join with an underscore, so with the
// HIVE_ prefix Database.Driver (json "database"/"driver") reads
// HIVE_DATABASE_DRIVER. PREFIX+CONFIG_JSON, when set, replaces the walk with
// a single JSON document.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{logger: log, prefix: prefix}
}

func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if doc := os.Getenv(e.prefix + "CONFIG_JSON"); doc != "" {
		if err := json.Unmarshal([]byte(doc), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		e.debug("Loaded configuration from CONFIG_JSON")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	if v.Elem().Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	var errs []error

	e.walk(v.Elem(), e.prefix, &errs)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.debug("Loaded configuration from environment")

	return nil
}

func (e *EnvConfigLoader) debug(msg string) {
	if e.logger != nil {
		e.logger.Debug().Str("prefix", e.prefix).Msg(msg)
	}
}

func (e *EnvConfigLoader) walk(v reflect.Value, prefix string, errs *[]error) {
	t := v.Type()

	for i := range t.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		key := prefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if nested, ok := structTarget(field); ok {
			e.walk(nested, key+"_", errs)
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}

		if err := assignEnv(field, raw); err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		}
	}
}

// structTarget returns the struct a field should be walked into, allocating
// nil struct pointers. Types with their own JSON decoding are leaves.
func structTarget(field reflect.Value) (reflect.Value, bool) {
	if reflect.PointerTo(field.Type()).Implements(unmarshalerType) {
		return reflect.Value{}, false
	}

	switch {
	case field.Kind() == reflect.Struct:
		return field, true
	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if reflect.PointerTo(field.Type().Elem()).Implements(unmarshalerType) {
			return reflect.Value{}, false
		}

		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return field.Elem(), true
	default:
		return reflect.Value{}, false
	}
}

// assignEnv decodes one variable into field. Strings and durations are taken
// verbatim, string slices are comma separated, and everything else is parsed
// as JSON (numbers, bools, maps and other slices).
func assignEnv(field reflect.Value, raw string) error {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}

		return assignEnv(field.Elem(), raw)
	}

	target := field.Addr().Interface()

	if u, ok := target.(json.Unmarshaler); ok {
		return u.UnmarshalJSON([]byte(strconv.Quote(raw)))
	}

	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}

		field.SetInt(int64(d))
	case field.Kind() == reflect.String:
		field.SetString(raw)
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(b)
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String && !strings.HasPrefix(raw, "["):
		parts := strings.Split(raw, ",")
		out := reflect.MakeSlice(field.Type(), len(parts), len(parts))

		for i, p := range parts {
			out.Index(i).SetString(strings.TrimSpace(p))
		}

		field.Set(out)
	default:
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return fmt.Errorf("cannot decode %s value: %w", field.Kind(), err)
		}
	}

	return nil
}
