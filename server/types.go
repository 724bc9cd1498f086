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

package server

import (
	"time"

	"github.com/kbase/bdfs/manifest"
)

// this type encodes a JSON object for responding to info queries
type InfoResponse struct {
	Name          string   `json:"name" example:"BDFS" doc:"The name of the service API"`
	Version       string   `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int      `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string   `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
	Features      []string `json:"features" doc:"Features supported by the service"`
}

// a request for an access token (POST)
type TokenRequest struct {
	Username string `json:"username" example:"analyst" doc:"the name of a registered user"`
	Password string `json:"password" doc:"the user's password"`
}

// a response for an access token request (POST)
type TokenResponse struct {
	Token   string    `json:"token" doc:"a bearer token for the Authorization header"`
	Expires time.Time `json:"expires" doc:"the time at which the token expires"`
}

// a request to register a big data file share (POST)
type RegistrationRequest struct {
	Name string `json:"name" example:"hazards" doc:"a unique name for the datastore"`
	Path string `json:"path" example:"hdfs://namenode:8020/data/hazards" doc:"the path or URL of the share's root folder"`
}

// a response describing a registered datastore
type DatastoreResponse struct {
	Id      string          `json:"id" example:"e3b0c442-98fc-4c14-9afb-f4c8996fb924" doc:"the datastore's unique identifier"`
	Name    string          `json:"name" example:"hazards" doc:"the datastore's name"`
	Title   string          `json:"title" example:"/bigDataFileShares/hazards" doc:"the datastore's path within the portal"`
	Type    string          `json:"type" example:"HDFS" doc:"FileShare, HDFS, Hive, or CloudStore"`
	Path    string          `json:"path" doc:"the path or URL of the share's root folder"`
	Created time.Time       `json:"created" doc:"the time at which the datastore was registered"`
	Status  manifest.Status `json:"status" example:"ready" doc:"the status of the datastore's manifest"`
}

// the portal path prefix for big data file shares
const titlePrefix = "/bigDataFileShares/"

func datastoreResponse(rec record) DatastoreResponse {
	return DatastoreResponse{
		Id:      rec.Id.String(),
		Name:    rec.Name,
		Title:   titlePrefix + rec.Name,
		Type:    rec.Type,
		Path:    rec.Path,
		Created: rec.Created,
		Status:  rec.Manifest.Status,
	}
}
