package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/etuitionbd/backend/config"
	"bitbucket.org/etuitionbd/backend/db"
	"bitbucket.org/etuitionbd/backend/events"
	"bitbucket.org/etuitionbd/backend/helpers"
	"bitbucket.org/etuitionbd/backend/logging"
	"bitbucket.org/etuitionbd/backend/middlewares"
	"bitbucket.org/etuitionbd/backend/models"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	joonix "github.com/joonix/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

const shutdownTimeout = 10 * time.Second

func recoveryHandler(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	defer func() {
		if err := recover(); err != nil {
			logging.FromContext(r.Context()).WithField("panic", err).Error("recovered from panic")
			middlewares.NewResponseWriter(w, r, false).WriteJSON(http.StatusInternalServerError, nil,
				errors.Errorf("panic: %v", err), middlewares.Responses.InternalServerError.In(middlewares.RequestLanguage(r)))
		}
	}()
	next(w, r)
}

type AppHandlerFunc func(*config.AppContext, *middlewares.ResponseWriter, *http.Request)

type AppHandler struct {
	Context     *config.AppContext
	HandlerFunc AppHandlerFunc
}

func (a *AppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.HandlerFunc(a.Context, middlewares.NewResponseWriter(w, r, !a.Context.Config.IsProduction()), r)
}

// Route is one entry of the routing table. Routes with Roles are protected
// even if IsProtected is false.
type Route struct {
	Path        string
	Handler     AppHandlerFunc
	Methods     []string
	IsProtected bool
	Roles       []models.Role
}

func NewRouter(ctx *config.AppContext, routes []*Route) *mux.Router {
	router := mux.NewRouter()
	for _, r := range routes {
		handler := &AppHandler{Context: ctx, HandlerFunc: r.Handler}
		if !r.IsProtected && len(r.Roles) == 0 {
			router.Handle(r.Path, handler).Methods(r.Methods...)
			continue
		}

		chain := negroni.New(negroni.HandlerFunc(middlewares.NewJWTMiddleware([]byte(ctx.Config.JWTSecret)).HandlerNext))
		if len(r.Roles) > 0 {
			chain.Use(middlewares.RequireRoles(r.Roles...))
		}
		chain.UseHandler(handler)
		router.Handle(r.Path, chain).Methods(r.Methods...)
	}

	if ctx.Registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(ctx.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return router
}

// SetupLogger installs the JSON formatter used in every environment.
func SetupLogger() {
	log.SetFormatter(joonix.NewFormatter())
}

func GetAppContext() *ContextWrapper {
	SetupLogger()
	var conf config.Configuration
	if err := envdecode.Decode(&conf); err != nil {
		log.WithError(err).Fatal("could not load the app configuration")
	}
	if err := conf.Validate(); err != nil {
		log.WithError(err).Fatal("invalid app configuration")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &ContextWrapper{
		Context: &config.AppContext{
			Config:   conf,
			Registry: registry,
		},
	}
}

type ContextWrapper struct {
	Context *config.AppContext
}

func (wrapper *ContextWrapper) CreateSQLConnection() {
	conf := wrapper.Context.Config.SQL
	conn, err := config.CreateConnectionSQL(conf)
	if err != nil {
		log.WithError(err).Fatalf("%s: failed to open connection", conf.Driver)
	}
	conn.SetConnMaxLifetime(time.Minute * 5)
	wrapper.Context.SQLConn = conn
	storage, err := db.New(conn)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatalf("%s: failed to connect", conf.Driver)
	}
	wrapper.Context.DB = storage
}

func (wrapper *ContextWrapper) CreateSMTPConnection() {
	conn := config.CreateNewConnectionSMTP(wrapper.Context.Config.AwsSMTP)
	if conn == nil {
		log.Warn("SMTP_HOST not set, receipt mails disabled")
		return
	}
	wrapper.Context.AwsSMTP = conn
}

func (wrapper *ContextWrapper) CreateStripeIntegration() {
	wrapper.Context.Stripe = config.CreateStripeIntegration(wrapper.Context.Config)
}

func (wrapper *ContextWrapper) CreateNewAwsSession() {
	session, err := config.CreateNewAwsSession(wrapper.Context.Config.AwsS3)
	if err != nil {
		log.Fatal(errors.Errorf("failed to create new aws session - %s", err.Error()))
	}
	wrapper.Context.AwsSession = session
}

// CreateSettlementService wires the settlement core over the database and
// Stripe, with the completion listeners the configuration enables.
func (wrapper *ContextWrapper) CreateSettlementService() {
	ctx := wrapper.Context
	if ctx.DB == nil || ctx.Stripe == nil {
		log.Fatal(errors.New("settlement needs the database and stripe"))
	}

	fees, err := settlement.NewFeeCalculator(ctx.Config.Payment.FeePercentage)
	if err != nil {
		log.WithError(err).Fatal("invalid platform fee")
	}

	var reg prometheus.Registerer
	if ctx.Registry != nil {
		reg = ctx.Registry
	}
	service := settlement.NewService(ctx.DB, ctx.Stripe, fees, settlement.Options{
		SuccessURL: ctx.Config.SuccessURL(),
		CancelURL:  ctx.Config.CancelURL(),
		Metrics:    settlement.NewMetrics(reg),
	})

	if topic := ctx.Config.AwsSNS.TopicARN; topic != "" && ctx.AwsSession != nil {
		service.AddListener(events.NewSNSPublisher(sns.New(ctx.AwsSession), topic))
		log.WithField("topic", topic).Info("payment events enabled")
	}

	if bucket := ctx.Config.AwsS3.S3Bucket; bucket != "" || ctx.AwsSMTP != nil {
		var upload events.UploadFunc
		if bucket != "" && ctx.AwsSession != nil {
			upload = func(c context.Context, key string, body *bytes.Buffer) (string, error) {
				return helpers.AddFileToS3(c, ctx.AwsSession, helpers.S3File{
					Bucket:      bucket,
					Key:         key,
					ContentType: "application/pdf",
					Body:        body,
				})
			}
		}
		receiptMail := events.ReceiptMail{
			EmailFrom:    ctx.Config.Mail.EmailFrom,
			NameFrom:     ctx.Config.Mail.NameFrom,
			Subject:      ctx.Config.Mail.PaymentSuccess.Subject,
			TemplatePath: ctx.Config.Mail.PaymentSuccess.Template,
		}
		if ctx.AwsSMTP != nil {
			receiptMail.Mailer = ctx.AwsSMTP
		}
		ctx.Receipts = events.NewReceiptListener(ctx.DB, nil, upload, receiptMail, ctx.Config.Payment.Currency)
		service.AddListener(ctx.Receipts)
		log.Info("payment receipts enabled")
	}

	ctx.Settlement = service
}

func UpServer(routes []*Route, wrapper *ContextWrapper) {
	server, err := createServer(wrapper.Context, routes)
	if err != nil {
		log.Fatal(err)
	}

	if wrapper.Context.SQLConn != nil {
		defer wrapper.Context.SQLConn.Close()
	}

	stop, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("Environment " + wrapper.Context.Config.Environment)
		log.Info("Listening on " + server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-stop.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed shutting down")
	}
	if wrapper.Context.Receipts != nil {
		wrapper.Context.Receipts.Wait()
	}
}

// NewHandler builds the full middleware chain around the routes.
func NewHandler(context *config.AppContext, routes []*Route) http.Handler {
	n := negroni.New()
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{context.Config.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT", "PATCH", "HEAD"},
		AllowedHeaders:   []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization", "Accept-Language", "Stripe-Signature"},
		AllowCredentials: true,
	})
	n.Use(c)
	n.Use(negroni.HandlerFunc(middlewares.LoggerRequest))
	n.UseFunc(recoveryHandler)
	n.Use(middlewares.UserMiddleware())
	n.UseHandler(NewRouter(context, routes))
	return n
}

func createServer(context *config.AppContext, routes []*Route) (*http.Server, error) {
	if context.Config.Port <= 0 {
		return nil, errors.Errorf("invalid port %d", context.Config.Port)
	}
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", context.Config.Port),
		ReadTimeout:  time.Duration(context.Config.Timeout) * time.Second,
		WriteTimeout: time.Duration(context.Config.Timeout) * time.Second,
		Handler:      NewHandler(context, routes),
	}, nil
}
