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

package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbase/bdfs/datastores"
	"github.com/kbase/bdfs/portal"
)

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show information about the portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			info, err := session.Info(cmd.Context())
			if err != nil {
				return err
			}
			supported := "no"
			if slices.Contains(info.Features, portal.FeatureBigDataFileShares) {
				supported = "yes"
			}
			t := newTable("PROPERTY", "VALUE").
				Row("portal", session.URL()).
				Row("name", info.Name).
				Row("version", info.Version).
				Row("features", strings.Join(info.Features, ", ")).
				Row("big data file shares", supported)
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "List registered big data file shares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, release, err := newManager(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			list, err := mgr.Search(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDatastores(list))
			return nil
		},
	}
}

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register NAME PATH",
		Short: "Register a folder, HDFS path, or cloud store as a big data file share",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, release, err := newManager(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			ds, err := mgr.AddBigData(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDatastore(ds))
			return nil
		},
	}
}

// runs the given function on the datastore named by a command's argument
func withDatastore(f func(cmd *cobra.Command, mgr *datastores.Manager, ds *datastores.Datastore) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		mgr, release, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer release()
		ds, err := mgr.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return f(cmd, mgr, ds)
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a registered big data file share",
		Args:  cobra.ExactArgs(1),
		RunE: withDatastore(func(cmd *cobra.Command, mgr *datastores.Manager, ds *datastores.Datastore) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderDatastore(ds))
			return nil
		}),
	}
}

func newDatasetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets NAME",
		Short: "List the datasets within a big data file share",
		Args:  cobra.ExactArgs(1),
		RunE: withDatastore(func(cmd *cobra.Command, mgr *datastores.Manager, ds *datastores.Datastore) error {
			datasets, err := ds.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDatasets(datasets))
			return nil
		}),
	}
}

func newManifestCommand() *cobra.Command {
	var wait, dataPackage bool
	manifestCommand := &cobra.Command{
		Use:   "manifest NAME",
		Short: "Print the manifest for a big data file share as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withDatastore(func(cmd *cobra.Command, mgr *datastores.Manager, ds *datastores.Datastore) error {
			m, err := ds.Manifest(cmd.Context())
			if err == nil && wait {
				m, err = ds.WaitForManifest(cmd.Context(), datastores.WaitOptionsFromConfig())
			}
			if err != nil {
				return err
			}

			var output any = m
			if dataPackage {
				pkg, err := m.DataPackage(ds.Name)
				if err != nil {
					return err
				}
				output = pkg.Descriptor()
			}
			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}),
	}
	flags := manifestCommand.Flags()
	flags.BoolVarP(&wait, "wait", "w", false, "wait for the manifest to be ready")
	flags.BoolVar(&dataPackage, "datapackage", false, "print the manifest as a Frictionless data package")
	return manifestCommand
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh NAME",
		Short: "Ask the portal to sample a big data file share again",
		Args:  cobra.ExactArgs(1),
		RunE: withDatastore(func(cmd *cobra.Command, mgr *datastores.Manager, ds *datastores.Datastore) error {
			if err := ds.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDatastore(ds))
			return nil
		}),
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove the registration for a big data file share",
		Args:  cobra.ExactArgs(1),
		RunE: withDatastore(func(cmd *cobra.Command, mgr *datastores.Manager, ds *datastores.Datastore) error {
			if err := mgr.Delete(cmd.Context(), ds.Id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("Deleted %s", ds.Title)))
			return nil
		}),
	}
}
