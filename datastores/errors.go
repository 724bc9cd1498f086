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

package datastores

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kbase/bdfs/portal"
)

// indicates that a datastore with the given name is already registered
type NameConflictError struct {
	Name string
}

func (e NameConflictError) Error() string {
	return fmt.Sprintf("Cannot register datastore '%s': name already exists", e.Name)
}

// indicates that the portal couldn't access the path given for a datastore
type PathUnreachableError struct {
	Path, Message string
}

func (e PathUnreachableError) Error() string {
	return fmt.Sprintf("Cannot register path '%s': %s", e.Path, e.Message)
}

// indicates that a datastore was sought but not found
type NotFoundError struct {
	Datastore string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("The datastore '%s' was not found", e.Datastore)
}

// indicates that the portal couldn't generate a datastore's manifest
type ManifestFailedError struct {
	Datastore, Message string
}

func (e ManifestFailedError) Error() string {
	return fmt.Sprintf("The manifest for datastore '%s' could not be generated: %s",
		e.Datastore, e.Message)
}

// indicates that a datastore's manifest wasn't ready within the allotted time
type ManifestTimeoutError struct {
	Datastore string
	Wait      time.Duration
}

func (e ManifestTimeoutError) Error() string {
	return fmt.Sprintf("The manifest for datastore '%s' was not ready after %s",
		e.Datastore, e.Wait)
}

// translates portal response errors for requests involving the given
// datastore (name or ID) and path into errors of the above types
func translate(err error, datastore, path string) error {
	var respErr *portal.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case http.StatusNotFound:
		return &NotFoundError{Datastore: datastore}
	case http.StatusConflict:
		return &NameConflictError{Name: datastore}
	case http.StatusUnprocessableEntity:
		return &PathUnreachableError{Path: path, Message: respErr.Message}
	default:
		return err
	}
}
