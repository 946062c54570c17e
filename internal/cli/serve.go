package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/serve"
)

const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a wheelhouse as a Simple API index over HTTP",
		Long: `Serve exposes a generated wheelhouse (default from config:
wheelhouse.ignore) as a package index, so resolvers that only talk HTTP can
be pointed at it with --index-url. Project pages are served as PEP 503 HTML
or PEP 691 JSON depending on the Accept header.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runServe(cmd.Context(), dir, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, dir, addr string) error {
	logger := loggerFromContext(ctx)

	if dir == "" {
		cfg, err := c.loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.WheelhouseDir
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return wberrors.New(wberrors.ErrCodeNotFound, "no wheelhouse at %s; run '%s generate' first", dir, appName)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           serve.NewRouter(dir, serve.Options{Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	printSuccess("Serving %s", StyleValue.Render(dir))
	printNextStep("Index URL", StyleLink.Render(fmt.Sprintf("http://%s/", ln.Addr())))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	printInfo("Server stopped")
	return nil
}
