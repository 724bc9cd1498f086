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

package portal

import (
	"fmt"
)

// indicates that a user couldn't be authenticated by the portal
type UnauthorizedError struct {
	Portal, User, Message string
}

func (e UnauthorizedError) Error() string {
	if e.User != "" {
		return fmt.Sprintf("Unable to authorize user '%s' for portal '%s': %s", e.User, e.Portal, e.Message)
	} else {
		return fmt.Sprintf("Unable to authorize user for portal '%s': %s", e.Portal, e.Message)
	}
}

// indicates that a portal exists but is currently unavailable
type UnavailableError struct {
	Portal string
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("Cannot reach portal '%s': unavailable", e.Portal)
}

// indicates that the portal answered a request with an unexpected status
type ResponseError struct {
	Method, Resource string
	StatusCode       int
	Message          string
}

func (e ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed (%d): %s", e.Method, e.Resource, e.StatusCode, e.Message)
	} else {
		return fmt.Sprintf("%s %s failed (%d)", e.Method, e.Resource, e.StatusCode)
	}
}

// indicates that a redirect from HTTPS to HTTP was refused
type DowngradedRedirectError struct {
	Endpoint string
}

func (e DowngradedRedirectError) Error() string {
	return fmt.Sprintf("The endpoint %s attempted to redirect from HTTPS to HTTP", e.Endpoint)
}
