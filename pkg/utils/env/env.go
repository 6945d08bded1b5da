/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package env

import (
	"os"
	"strconv"
	"time"
)

// withDefault parses the environment variable via parse, falling back to def
// when the variable is unset or malformed.
func withDefault[T any](key string, def T, parse func(string) (T, error)) T {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	parsed, err := parse(val)
	if err != nil {
		return def
	}
	return parsed
}

// WithDefaultString returns the environment variable value or def when unset.
func WithDefaultString(key string, def string) string {
	return withDefault(key, def, func(s string) (string, error) { return s, nil })
}

// WithDefaultInt returns the int value of the environment variable or def.
func WithDefaultInt(key string, def int) int {
	return withDefault(key, def, strconv.Atoi)
}

// WithDefaultFloat64 returns the float64 value of the environment variable or def.
func WithDefaultFloat64(key string, def float64) float64 {
	return withDefault(key, def, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// WithDefaultBool returns the bool value of the environment variable or def.
func WithDefaultBool(key string, def bool) bool {
	return withDefault(key, def, strconv.ParseBool)
}

// WithDefaultDuration returns the duration value of the environment variable or def.
func WithDefaultDuration(key string, def time.Duration) time.Duration {
	return withDefault(key, def, time.ParseDuration)
}
