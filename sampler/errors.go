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

package sampler

import (
	"fmt"
)

// indicates that a path given for a share is malformed
type InvalidPathError struct {
	Path, Message string
}

func (e InvalidPathError) Error() string {
	return fmt.Sprintf("Invalid share path '%s': %s", e.Path, e.Message)
}

// indicates that the storage named by a path can't be accessed by this server
type UnsupportedShareError struct {
	Path, Scheme string
}

func (e UnsupportedShareError) Error() string {
	return fmt.Sprintf("Can't access share '%s': no connector for '%s' storage",
		e.Path, e.Scheme)
}

// indicates that a share's root is not a folder
type NotAFolderError struct {
	Path string
}

func (e NotAFolderError) Error() string {
	return fmt.Sprintf("Share root '%s' is not a folder", e.Path)
}

// indicates that a delimited file has a malformed header row
type InvalidHeaderError struct {
	File, Message string
}

func (e InvalidHeaderError) Error() string {
	return fmt.Sprintf("Invalid header in '%s': %s", e.File, e.Message)
}

// indicates that a file in a dataset couldn't be sampled
type SampleError struct {
	Dataset, File, Message string
}

func (e SampleError) Error() string {
	return fmt.Sprintf("Couldn't sample '%s' in dataset '%s': %s", e.File, e.Dataset, e.Message)
}
