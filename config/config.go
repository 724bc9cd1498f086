// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// global config variables
var Portal portalConfig
var Manifests manifestConfig
var Service serviceConfig

// This struct performs the unmarshalling from the YAML config file and then
// copies its fields to the globals above.
type configFile struct {
	Portal    portalConfig   `yaml:"portal"`
	Manifests manifestConfig `yaml:"manifests"`
	Service   serviceConfig  `yaml:"service"`
}

// This helper reads configuration data, returning an error indicating success
// or failure. All environment variables of the form ${ENV_VAR} are expanded.
func readConfig(bytes []byte) error {
	// Before we do anything else, expand any provided environment variables.
	bytes = []byte(os.ExpandEnv(string(bytes)))

	var conf configFile
	conf.Portal.Timeout = 30
	conf.Manifests.PollInterval = 5
	conf.Manifests.MaxWait = 600
	conf.Service.Port = 8080
	conf.Service.MaxConnections = 100
	conf.Service.TokenExpiration = 60
	conf.Service.SampleSize = 100
	err := yaml.Unmarshal(bytes, &conf)
	if err != nil {
		slog.Error(fmt.Sprintf("Couldn't parse configuration data: %s", err))
		return err
	}

	// copy the config data into place
	Portal = conf.Portal
	Manifests = conf.Manifests
	Service = conf.Service

	return err
}

// This helper validates the given portal parameters.
func validatePortalParameters(params portalConfig) error {
	if params.URL == "" {
		return nil // no portal configured (server-only configuration)
	}
	u, err := url.ParseRequestURI(params.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("Invalid portal URL: %s", params.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("Invalid portal URL scheme: %s (must be http or https)", u.Scheme)
	}
	if params.Username == "" {
		return fmt.Errorf("No username was given for portal %s", params.URL)
	}
	if params.Timeout <= 0 {
		return fmt.Errorf("Invalid portal timeout: %d (must be positive)", params.Timeout)
	}
	return nil
}

// This helper validates manifest polling parameters.
func validateManifestParameters(params manifestConfig) error {
	if params.PollInterval <= 0 {
		return fmt.Errorf("Invalid manifest poll_interval: %g (must be positive)",
			params.PollInterval)
	}
	if params.MaxWait < 0 {
		return fmt.Errorf("Invalid manifest max_wait: %g (must be non-negative)",
			params.MaxWait)
	}
	return nil
}

// This helper validates the given service parameters, returning an
// error indicating success or failure.
func validateServiceParameters(params serviceConfig) error {
	if params.Port < 0 || params.Port > 65535 {
		return fmt.Errorf("Invalid port: %d (must be 0-65535)", params.Port)
	}
	if params.MaxConnections <= 0 {
		return fmt.Errorf("Invalid max_connections: %d (must be positive)",
			params.MaxConnections)
	}
	if params.TokenExpiration <= 0 {
		return fmt.Errorf("Invalid token_expiration: %d (must be positive)",
			params.TokenExpiration)
	}
	if params.SampleSize <= 0 {
		return fmt.Errorf("Invalid sample_size: %d (must be positive)", params.SampleSize)
	}
	if params.SamplingDelay < 0 {
		return fmt.Errorf("Invalid sampling_delay: %g (must be non-negative)",
			params.SamplingDelay)
	}
	for user := range params.Users {
		if strings.TrimSpace(user) == "" {
			return fmt.Errorf("Blank user name in service users")
		}
	}
	return nil
}

// This helper validates the configuration, returning an error that indicates
// success or failure.
func validateConfig() error {
	// is there anything to do?
	if Portal.URL == "" && len(Service.Users) == 0 {
		return fmt.Errorf("Neither a portal nor any service users were provided!")
	}
	err := validatePortalParameters(Portal)
	if err != nil {
		return err
	}
	err = validateManifestParameters(Manifests)
	if err != nil {
		return err
	}
	return validateServiceParameters(Service)
}

// Initializes the configuration using the given YAML byte data.
func Init(yamlData []byte) error {
	err := readConfig(yamlData)
	if err != nil {
		return err
	}
	return validateConfig()
}

// Reads the configuration file with the given name and initializes the
// configuration with its contents.
func InitFromFile(filename string) error {
	slog.Debug(fmt.Sprintf("Reading configuration from '%s'...", filename))
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return Init(data)
}
