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

package manifest

import (
	"fmt"
)

// indicates that a dataset in a manifest has no name
type UnnamedDatasetError struct {
	Index int
}

func (e UnnamedDatasetError) Error() string {
	return fmt.Sprintf("Dataset %d in manifest has no name", e.Index)
}

// indicates that two datasets in a manifest have the same name
type DuplicateDatasetError struct {
	Dataset string
}

func (e DuplicateDatasetError) Error() string {
	return fmt.Sprintf("Manifest contains more than one dataset named '%s'", e.Dataset)
}

// indicates that a dataset schema contains a field more than once
type DuplicateFieldError struct {
	Dataset, Field string
}

func (e DuplicateFieldError) Error() string {
	return fmt.Sprintf("Field '%s' appears more than once in the schema for dataset '%s'",
		e.Field, e.Dataset)
}

// indicates that a manifest can't be converted to a data package because it
// is not ready or contains no datasets
type EmptyManifestError struct {
	Status Status
}

func (e EmptyManifestError) Error() string {
	if e.Status != StatusReady {
		return fmt.Sprintf("Manifest is not ready (status: %s)", e.Status)
	}
	return "Manifest contains no datasets"
}
