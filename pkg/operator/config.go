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

package operator

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config carries provider credentials and endpoint overrides loaded from
// an optional eigenos.yaml. Flags and environment variables win over the
// file.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers"`
}

type ProvidersConfig struct {
	IBM struct {
		Token   string `mapstructure:"token"`
		Hub     string `mapstructure:"hub"`
		Group   string `mapstructure:"group"`
		Project string `mapstructure:"project"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"ibm"`
	Rigetti struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"rigetti"`
	Cirq struct {
		Project  string `mapstructure:"project"`
		APIToken string `mapstructure:"api_token"`
		BaseURL  string `mapstructure:"base_url"`
	} `mapstructure:"cirq"`
	IonQ struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"ionq"`
}

// LoadConfig reads eigenos.yaml from the working directory or /etc/eigenos.
// A missing file is not an error; environment variables prefixed EIGENOS_
// override file values.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("eigenos")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/eigenos")
	v.SetEnvPrefix("EIGENOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	return config, nil
}
