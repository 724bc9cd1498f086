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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbase/bdfs/config"
	"github.com/kbase/bdfs/server"
)

func newServeCommand() *cobra.Command {
	var port int
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal admin service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = config.Service.Port
			}
			service, err := server.New()
			if err != nil {
				return err
			}

			// Start the service in a goroutine so it doesn't block.
			errChan := make(chan error, 1)
			go func() {
				errChan <- service.Start(port)
			}()

			// Intercept the SIGINT, SIGHUP, SIGTERM, and SIGQUIT signals, shutting
			// down the service as gracefully as possible if they are encountered.
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan,
				syscall.SIGINT,
				syscall.SIGHUP,
				syscall.SIGTERM,
				syscall.SIGQUIT)
			defer signal.Stop(sigChan)

			// Block till we receive one of the above signals or the service fails.
			select {
			case <-sigChan:
			case err := <-errChan:
				service.Close()
				return err
			}

			// Wait for connections to close until the deadline elapses.
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			slog.Info(fmt.Sprintf("Shutting down %s service", service.Name))
			return service.Shutdown(ctx)
		},
	}
	serveCommand.Flags().IntVarP(&port, "port", "p", 8080, "port on which to listen (default: configured port)")
	return serveCommand
}
