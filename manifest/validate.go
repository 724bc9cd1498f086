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

// checks that every dataset is named uniquely and that no schema lists a
// field twice
func (m Manifest) Validate() error {
	datasetNames := make(map[string]bool)
	for i, dataset := range m.Datasets {
		if dataset.Name == "" {
			return &UnnamedDatasetError{Index: i}
		}
		if datasetNames[dataset.Name] {
			return &DuplicateDatasetError{Dataset: dataset.Name}
		}
		datasetNames[dataset.Name] = true
		if err := dataset.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// checks that the dataset's schema lists no field twice
func (d Dataset) Validate() error {
	fieldNames := make(map[string]bool)
	for _, field := range d.Schema.Fields {
		if fieldNames[field.Name] {
			return &DuplicateFieldError{Dataset: d.Name, Field: field.Name}
		}
		fieldNames[field.Name] = true
	}
	return nil
}
