package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/config"
	"github.com/rs/zerolog"
)

// Start begins the node's operation as a http server. It blocks until ctx
// is done, then shuts the server down gracefully.
func Start(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, log zerolog.Logger) error {
	if err := checkValidPort(cfg.Port); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.IP, strconv.Itoa(cfg.Port)))
	if err != nil {
		return err
	}
	return Serve(ctx, ln, handler, cfg.ShutdownTimeout, log)
}

// Serve serves handler on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, shutdownTimeout time.Duration, log zerolog.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("starting server")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return gracefulShutdown(server, shutdownTimeout, log)
}

// gracefulShutdown waits for in-flight requests up to timeout.
func gracefulShutdown(server *http.Server, timeout time.Duration, log zerolog.Logger) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("shutting down")
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func checkValidPort(port int) error {
	if port < 1 {
		return errors.New("port number must be positive")
	}
	if port > 65535 {
		return errors.New("port number exceeds limit of 65535")
	}
	return nil
}
