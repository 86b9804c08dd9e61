package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/sonic/storage"
	"github.com/luma/sonic/transport"
)

var (
	// The host to listen on
	serveHost string

	// The port to listen for http requests on
	httpPort string

	// Backup to restore before accepting clients
	restorePath string
)

func init() {
	flags := ServeCmd.Flags()

	flags.StringVar(&httpPort, "http-port", "", "The port to listen to HTTP requests on, defaults to the config's http_port")
	flags.StringVar(&serveHost, "listen", "0.0.0.0", "The host to listen on")
	flags.StringVar(&restorePath, "restore", "", "A backup to load before accepting clients")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start up a development Sonic server",
	Long: `Start up a development Sonic server

The server speaks the Sonic channel protocol on top of an in-memory index and
answers /ping and /stats over HTTP.

Usage
	sonic serve --port 1491 --password SecretPassword

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		if httpPort == "" {
			httpPort = conf.HTTPPort
		}

		store := storage.NewInmemoryStore()
		defer store.Close()

		if restorePath != "" {
			if err := store.Restore(restorePath); err != nil {
				return err
			}

			log.Info("Restored index", zap.String("path", restorePath), zap.Any("stats", store.Stats()))
		}

		tcp := transport.NewTCP(transport.Options{
			Host:       serveHost,
			Port:       conf.Port,
			Password:   conf.Password,
			Reuseport:  conf.Reuseport,
			BufferSize: conf.BufferSize,
			Trace:      conf.Trace,
			Store:      store,
			Log:        log.Named("transport"),
		})

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		router := setupRouter(conf.DebugHTTP, log)

		// Ping test
		router.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		router.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"server": tcp.Stats(),
				"index":  store.Stats(),
			})
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(serveHost, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Listening",
			zap.String("addr", tcp.Addr()),
			zap.String("httpPort", httpPort),
			zap.Int("bufferSize", conf.BufferSize))

		// Wait for an interrupt or a shutdown trigger
		select {
		case <-ctx.Done():
		case <-tcp.Done():
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC
	r.Use(ginzap.GinzapWithConfig(log.Named("http"), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
