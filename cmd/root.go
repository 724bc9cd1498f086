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

// Package cmd implements the bdfs command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kbase/bdfs/cache"
	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/datastores"
	"github.com/kbase/bdfs/portal"
)

// options shared by all commands
type rootOptions struct {
	ConfigFile string
	Verbose    bool
}

// NewRootCommand creates the top level bdfs command with all of its
// subcommands, writing output to stdout and logs to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	rc := &cobra.Command{
		Use:   "bdfs",
		Short: "bdfs - register big data file shares and inspect their manifests",
		Long: `Registers big data file shares (folders on file shares, HDFS, or cloud
stores whose subfolders hold datasets) with a portal, and reads the manifests
the portal generates for them. The serve command runs a portal admin service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			h := slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(h))
			return config.InitFromFile(opts.ConfigFile)
		},
	}
	flags := rc.PersistentFlags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "bdfs.yaml", "YAML configuration file")
	flags.BoolVar(&opts.Verbose, "verbose", false, "log debugging messages")

	rc.AddCommand(
		newServeCommand(),
		newInfoCommand(),
		newSearchCommand(),
		newRegisterCommand(),
		newGetCommand(),
		newDatasetsCommand(),
		newManifestCommand(),
		newRefreshCommand(),
		newDeleteCommand(),
	)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// creates a session for the configured portal
func newSession() (*portal.Session, error) {
	return portal.NewSessionFromConfig()
}

// creates a datastore manager with a connected session for the configured
// portal, returning a function that releases its resources
func newManager(ctx context.Context) (*datastores.Manager, func(), error) {
	session, err := newSession()
	if err != nil {
		return nil, nil, err
	}
	if err := session.Connect(ctx); err != nil {
		return nil, nil, err
	}
	mgr := datastores.NewManager(session)
	release := func() {}
	if config.Manifests.Cache != "" {
		c, err := cache.Open(config.Manifests.Cache)
		if err != nil {
			return nil, nil, fmt.Errorf("Couldn't open manifest cache: %s", err)
		}
		mgr.Cache = c
		release = func() { c.Close() }
	}
	return mgr, release, nil
}
