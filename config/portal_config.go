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

// the portal hosting the datastore admin API, used by clients
type portalConfig struct {
	// base URL at which the portal is accessed
	URL string `yaml:"url"`
	// name of the user used to obtain access tokens
	Username string `yaml:"username"`
	// the user's password
	// DO NOT STORE THIS IN A CONFIG FILE! Use an environment variable instead
	Password string `yaml:"password"`
	// HTTP request timeout (seconds)
	Timeout int `yaml:"timeout"`
}

// parameters governing how clients wait for manifests
type manifestConfig struct {
	// interval between manifest status requests (seconds)
	PollInterval float64 `yaml:"poll_interval"`
	// maximum time to wait for a manifest (seconds, 0 indicates no limit)
	MaxWait float64 `yaml:"max_wait"`
	// path of a local cache for completed manifests (optional)
	Cache string `yaml:"cache,omitempty"`
}
