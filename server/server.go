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

// Package server implements an admin service that registers big data file
// shares, samples them, and serves their manifests.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/manifest"
	"github.com/kbase/bdfs/sampler"
)

// Version numbers
var majorVersion = 0
var minorVersion = 1
var patchVersion = 0

// Version string
var version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// the feature advertised by the service
const featureBigDataFileShares = "bigDataFileShares"

// the time allowed for checking that a share is reachable
const probeTimeout = 30 * time.Second

// The admin service. It registers big data file shares in a SQLite registry
// and samples each one on a worker goroutine.
type Server struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server

	auth     *authenticator
	registry *registry
	worker   *samplingWorker
}

// constructs an admin service given our configuration, ready to handle
// requests
func New() (*Server, error) {
	if len(config.Service.Users) == 0 {
		return nil, fmt.Errorf("No service users were specified.")
	}

	service := new(Server)
	service.Name = "BDFS admin"
	service.Version = version
	service.Port = -1
	service.StartTime = time.Now()

	var err error
	service.auth, err = newAuthenticator(config.Service.Secret, config.Service.Users,
		time.Duration(config.Service.TokenExpiration)*time.Minute)
	if err != nil {
		return nil, err
	}

	registryFile := ""
	if config.Service.DataDirectory != "" {
		registryFile = filepath.Join(config.Service.DataDirectory, "datastores.db")
	}
	service.registry, err = openRegistry(registryFile)
	if err != nil {
		return nil, err
	}
	service.worker = newSamplingWorker(service.registry,
		sampler.Options{SampleSize: config.Service.SampleSize},
		time.Duration(config.Service.SamplingDelay*float64(time.Second)))
	service.worker.Start()

	// resume sampling for shares left unprocessed by a previous run
	records, err := service.registry.List()
	if err != nil {
		service.Close()
		return nil, err
	}
	for _, rec := range records {
		if rec.Manifest.Status == manifest.StatusProcessing {
			service.worker.Enqueue(context.Background(), rec)
		}
	}

	// set up routing
	service.Router = mux.NewRouter()
	apiConfig := huma.DefaultConfig(service.Name, service.Version)
	// response bodies carry no $schema links
	apiConfig.CreateHooks = nil
	api := humamux.New(service.Router, apiConfig)
	service.API = api

	// API v1
	huma.Get(api, "/api/v1/info", service.getInfo)
	huma.Post(api, "/api/v1/tokens", service.createToken)
	huma.Get(api, "/api/v1/datastores", service.getDatastores)
	huma.Post(api, "/api/v1/datastores", service.createDatastore,
		func(o *huma.Operation) { o.DefaultStatus = http.StatusCreated })
	huma.Get(api, "/api/v1/datastores/{id}", service.getDatastore)
	huma.Delete(api, "/api/v1/datastores/{id}", service.deleteDatastore)
	huma.Get(api, "/api/v1/datastores/{id}/datasets", service.getDatasets)
	huma.Get(api, "/api/v1/datastores/{id}/manifest", service.getManifest)
	huma.Post(api, "/api/v1/datastores/{id}/refresh", service.refreshDatastore,
		func(o *huma.Operation) { o.DefaultStatus = http.StatusAccepted })

	return service, nil
}

// returns the service's HTTP handler
func (service *Server) Handler() http.Handler {
	return service.Router
}

// returns the uptime for the service in seconds
func (service *Server) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// authorize clients for the service, returning the client's username
func (service *Server) authorize(authorizationHeader string) (string, error) {
	user, err := service.auth.Authorize(authorizationHeader)
	if err != nil {
		return "", huma.Error401Unauthorized(err.Error())
	}
	return user, nil
}

// finds the registered datastore with the given ID
func (service *Server) lookup(id string) (record, error) {
	datastoreId, err := uuid.Parse(id)
	if err != nil {
		return record{}, huma.Error404NotFound(fmt.Sprintf("Datastore %s not found", id))
	}
	rec, err := service.registry.Get(datastoreId)
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return rec, huma.Error404NotFound(err.Error())
		}
		return rec, err
	}
	return rec, nil
}

type InfoOutput struct {
	Body InfoResponse `doc:"information about the service itself"`
}

// handler method for service info (no authorization needed for this one)
func (service *Server) getInfo(ctx context.Context,
	input *struct{}) (*InfoOutput, error) {

	slog.Info("Querying service info...")
	return &InfoOutput{
		Body: InfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
			Features:      []string{featureBigDataFileShares},
		},
	}, nil
}

type TokenOutput struct {
	Body TokenResponse `doc:"an access token and its expiration time"`
}

// handler method for exchanging credentials for an access token
func (service *Server) createToken(ctx context.Context,
	input *struct {
		Body TokenRequest
	}) (*TokenOutput, error) {

	slog.Info(fmt.Sprintf("Issuing access token for %s...", input.Body.Username))
	token, expires, err := service.auth.IssueToken(input.Body.Username, input.Body.Password)
	if err != nil {
		var unauthorized *UnauthorizedError
		if errors.As(err, &unauthorized) {
			return nil, huma.Error401Unauthorized(unauthorized.Message)
		}
		return nil, err
	}
	return &TokenOutput{
		Body: TokenResponse{
			Token:   token,
			Expires: expires,
		},
	}, nil
}

type DatastoreOutput struct {
	Body DatastoreResponse `doc:"a registered datastore"`
}

type DatastoresOutput struct {
	Body []DatastoreResponse `doc:"registered datastores in order of registration"`
}

// handler method for listing registered datastores
func (service *Server) getDatastores(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
	}) (*DatastoresOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info("Querying datastores...")
	records, err := service.registry.List()
	if err != nil {
		return nil, err
	}
	output := &DatastoresOutput{
		Body: make([]DatastoreResponse, len(records)),
	}
	for i, rec := range records {
		output.Body[i] = datastoreResponse(rec)
	}
	return output, nil
}

// handler method for registering a big data file share
func (service *Server) createDatastore(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Body          RegistrationRequest
	}) (*DatastoreOutput, error) {

	user, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	name, path := input.Body.Name, strings.TrimSpace(input.Body.Path)
	slog.Info(fmt.Sprintf("Registering datastore '%s' (%s) for %s...", name, path, user))
	if name == "" || name != strings.TrimSpace(name) || strings.ContainsAny(name, `/\`) {
		return nil, huma.Error400BadRequest(fmt.Sprintf("Invalid datastore name: '%s'", name))
	}
	if path == "" {
		return nil, huma.Error400BadRequest("No path was given for the datastore")
	}

	taken, err := service.registry.NameTaken(name)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, huma.Error409Conflict(NameConflictError{Name: name}.Error())
	}
	if err := probe(ctx, path); err != nil {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("Path %s is unreachable: %s", path, err.Error()))
	}

	rec := record{
		Id:         uuid.New(),
		Name:       name,
		Type:       sampler.KindForPath(path).String(),
		Path:       path,
		Created:    time.Now().UTC(),
		Owner:      user,
		Manifest:   manifest.Processing(),
		Generation: 1,
	}
	if err := service.registry.Insert(rec); err != nil {
		var conflict *NameConflictError
		if errors.As(err, &conflict) {
			return nil, huma.Error409Conflict(err.Error())
		}
		return nil, err
	}
	if err := service.worker.Enqueue(ctx, rec); err != nil {
		return nil, err
	}
	return &DatastoreOutput{
		Body: datastoreResponse(rec),
	}, nil
}

// checks that the share at the given path can be accessed
func probe(ctx context.Context, path string) error {
	share, err := sampler.OpenShare(path)
	if err != nil {
		return err
	}
	defer share.Close()
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return share.Stat(ctx)
}

// handler method for fetching a single datastore
func (service *Server) getDatastore(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Id            string `path:"id" doc:"the datastore's unique identifier"`
	}) (*DatastoreOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Querying datastore %s...", input.Id))
	rec, err := service.lookup(input.Id)
	if err != nil {
		return nil, err
	}
	return &DatastoreOutput{
		Body: datastoreResponse(rec),
	}, nil
}

// handler method for removing a datastore registration
func (service *Server) deleteDatastore(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Id            string `path:"id" doc:"the datastore's unique identifier"`
	}) (*struct{}, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Deleting datastore %s...", input.Id))
	rec, err := service.lookup(input.Id)
	if err != nil {
		return nil, err
	}
	if err := service.registry.Delete(rec.Id); err != nil {
		return nil, err
	}
	return nil, nil
}

type DatasetsOutput struct {
	Body []manifest.Dataset `doc:"datasets within the datastore (empty until sampling completes)"`
}

// handler method for listing a datastore's datasets
func (service *Server) getDatasets(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Id            string `path:"id" doc:"the datastore's unique identifier"`
	}) (*DatasetsOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Querying datasets for datastore %s...", input.Id))
	rec, err := service.lookup(input.Id)
	if err != nil {
		return nil, err
	}
	datasets := []manifest.Dataset{}
	if rec.Manifest.Ready() {
		datasets = rec.Manifest.Datasets
	}
	return &DatasetsOutput{
		Body: datasets,
	}, nil
}

type ManifestOutput struct {
	Body manifest.Manifest `doc:"the datastore's manifest"`
}

// handler method for fetching a datastore's manifest
func (service *Server) getManifest(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Id            string `path:"id" doc:"the datastore's unique identifier"`
	}) (*ManifestOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Querying manifest for datastore %s...", input.Id))
	rec, err := service.lookup(input.Id)
	if err != nil {
		return nil, err
	}
	return &ManifestOutput{
		Body: rec.Manifest,
	}, nil
}

// handler method for re-sampling a datastore
func (service *Server) refreshDatastore(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Id            string `path:"id" doc:"the datastore's unique identifier"`
	}) (*DatastoreOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Refreshing datastore %s...", input.Id))
	rec, err := service.lookup(input.Id)
	if err != nil {
		return nil, err
	}
	rec, err = service.registry.Resample(rec.Id)
	if err != nil {
		return nil, err
	}
	if err := service.worker.Enqueue(ctx, rec); err != nil {
		return nil, err
	}
	return &DatastoreOutput{
		Body: datastoreResponse(rec),
	}, nil
}

// starts the admin service on the given port
func (service *Server) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s service on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// start the server
	service.Server = &http.Server{
		Handler: service.Router}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *Server) Shutdown(ctx context.Context) error {
	service.worker.Stop()
	var err error
	if service.Server != nil {
		err = service.Server.Shutdown(ctx)
	}
	if closeErr := service.registry.Close(); err == nil {
		err = closeErr
	}
	return err
}

// closes down the service abruptly, freeing all resources
func (service *Server) Close() {
	service.worker.Stop()
	if service.Server != nil {
		service.Server.Close()
	}
	service.registry.Close()
}
