package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/edulab/buildci/pkg/agentmq"
	"github.com/edulab/buildci/pkg/buildlog"
	"github.com/edulab/buildci/pkg/buildspec"
	"github.com/edulab/buildci/pkg/correlator"
	"github.com/edulab/buildci/pkg/dispatcher"
	"github.com/edulab/buildci/pkg/imagecache"
	"github.com/edulab/buildci/pkg/log"
	"github.com/edulab/buildci/pkg/protocol"
	"github.com/edulab/buildci/pkg/store"
	"github.com/edulab/buildci/pkg/token"
	"github.com/edulab/buildci/pkg/utils"
)

var config *Config

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Local CI build job orchestration service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("buildci")
		viper.AutomaticEnv()

		viper.SetConfigName("buildci.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/buildci/")
		viper.AddConfigPath("$HOME/.config/buildci")
		viper.AddConfigPath(".")

		viper.ReadInConfig()

		if err := utils.UnmarshalConfig(*viper.GetViper(), &config); err != nil {
			log.Fatal(err)
		}

		config.SetDefaults()
		config.Log()

		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			panic(err)
		}

		switch {
		case verbosity >= 2:
			log.SetLevel(log.TraceLevel)
		case verbosity >= 1:
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		db, err := store.Open(config.Database)
		if err != nil {
			log.Fatal(err)
		}

		// Filesystem storage for build logs.
		stashFs, err := config.LogStash.CreateFs()
		if err != nil {
			log.Fatal(err)
		}
		maxSize, err := config.LogStash.MaxSizeBytes()
		if err != nil {
			log.Fatal(err)
		}
		stash := buildlog.NewStash(stashFs, maxSize)
		recorder := buildlog.NewRecorder(stash, db)

		specs := buildspec.NewCache()
		images := imagecache.NewTracker(db, time.Minute)
		issuer := token.NewIssuer(db, config.TokenTTL)
		transport := agentmq.NewPublisher(config.Broker)

		disp, err := dispatcher.New(db, transport, config.Dispatcher)
		if err != nil {
			log.Fatal(err)
		}

		corr := correlator.New(db, disp, images, recorder)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Timeout and dispatch-failure outcomes flow through the same
		// exactly-once path as agent completions.
		disp.SetCompletionSink(func(buildJobID string, outcome protocol.BuildOutcome) {
			if err := corr.ReportCompletion(ctx, buildJobID, outcome); err != nil {
				log.Debugf("int - result - synthetic outcome dropped - id: %s: %v", buildJobID, err)
			}
		})

		consumer := agentmq.NewConsumer(config.Broker, corr,
			func(msg *protocol.StartedMessage) {
				if err := disp.MarkRunning(msg.BuildJobID, msg.AgentAddress, msg.StartedAt); err != nil {
					log.Debugf("int - job - started notice dropped - id: %s: %v", msg.BuildJobID, err)
				}
			},
			func(msg *protocol.LogMessage) {
				if err := recorder.Append(msg.BuildJobID, msg.Lines); err != nil {
					log.Warnf("err - logstash - append failed - id: %s: %v", msg.BuildJobID, err)
				}
			},
			config.CompletionWorkers)

		eg, ctx := errgroup.WithContext(ctx)

		uris := viper.GetStringSlice("listen_http")
		for _, uri := range uris {
			host, err := utils.ParseHttpUrl(uri)
			if err != nil {
				log.Fatal(err)
			}

			log.Info("Listening on http", host)

			r := echo.New()
			r.HideBanner = true
			r.Use(utils.HttpLogger)
			r.Add(echo.GET, "/debug/pprof/*", echo.WrapHandler(http.DefaultServeMux))

			newApiHandler(db, disp, specs, recorder, issuer, images, r)
			buildlog.NewHttpHandler(recorder, r)
			dispatcher.NewHttpHandler(disp, r)

			server := &http.Server{Addr: host, Handler: r}
			eg.Go(func() error {
				err := server.ListenAndServe()
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
		}

		eg.Go(func() error {
			return consumer.Run(ctx)
		})
		eg.Go(func() error {
			images.Run(ctx)
			return nil
		})
		eg.Go(func() error {
			disp.Run(ctx)
			return nil
		})

		if err := eg.Wait(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.Flags().StringSliceP("listen-http", "l", []string{"tcp://:8080"}, "Addresses to listen on for HTTP connections")
	rootCmd.Flags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.BindPFlag("listen_http", rootCmd.Flags().Lookup("listen-http"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
