package config

import (
	"fmt"
	"strconv"
	"strings"

	"bitbucket.org/etuitionbd/backend/db"
	"bitbucket.org/etuitionbd/backend/events"
	"bitbucket.org/etuitionbd/backend/gateway"
	"bitbucket.org/etuitionbd/backend/settlement"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/gomail.v2"
)

const EnvironmentProduction = "production"

type Configuration struct {
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT,default=3001"`
	Timeout     int    `env:"TIMEOUT,default=15"`
	Environment string `env:"ENVIRONMENT,default=development"`
	AppName     string `env:"APP_NAME,default=etuitionbd"`
	ClientURL   string `env:"CLIENT_URL,default=http://localhost:5173"`
	SQL         database
	Payment     payment
	Stripe      stripeConf
	AwsSMTP     awsSMTP
	AwsS3       awsS3
	AwsSNS      awsSNS
	Mail        mail
	Reconcile   reconcile
}

type database struct {
	Driver         string `env:"DATA_BASE_DRIVER,default=mysql"`
	URL            string `env:"DATA_BASE_URL,required"`
	Name           string `env:"DATA_BASE_NAME,required"`
	User           string `env:"DATA_BASE_USER,required"`
	Port           int    `env:"DATA_BASE_PORT,default=3306"`
	Password       string `env:"DATA_BASE_PASSWORD,required"`
	SSLMode        string `env:"DATA_BASE_SSL_MODE,default=disable"`
	OpenConnection int    `env:"DATA_BASE_MAX_OPEN_CONNECTION,default=5"`
}

type payment struct {
	FeePercentage    int    `env:"PLATFORM_FEE_PERCENTAGE,default=10"`
	Currency         string `env:"PAYMENT_CURRENCY,default=bdt"`
	AmountMultiplier int64  `env:"PAYMENT_AMOUNT_MULTIPLIER,default=100"`
}

type stripeConf struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

type awsSMTP struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

type awsS3 struct {
	S3Region string `env:"S3_REGION,default=ap-south-1"`
	S3Bucket string `env:"S3_BUCKET"`
}

type awsSNS struct {
	TopicARN string `env:"SNS_PAYMENT_TOPIC_ARN"`
}

type mail struct {
	PaymentSuccess mailPaymentSuccess
	NameFrom       string `env:"MAIL_NAME_FROM,default=eTuitionBd"`
	EmailFrom      string `env:"MAIL_EMAIL_FROM,default=no-reply@etuitionbd.com"`
}

type mailPaymentSuccess struct {
	Subject  string `env:"MAIL_PAYMENT_SUCCESS_SUBJECT,default=Payment received"`
	Template string `env:"MAIL_PAYMENT_SUCCESS_TEMPLATE,default=./templates/mail/payment-success.html"`
}

type reconcile struct {
	OrphanPaymentTTLMinutes int `env:"ORPHAN_PAYMENT_TTL_MINUTES,default=60"`
}

// Validate checks what envdecode cannot express with tags.
func (c *Configuration) Validate() error {
	if c.Payment.FeePercentage < 0 || c.Payment.FeePercentage > 100 {
		return errors.Errorf("PLATFORM_FEE_PERCENTAGE must be between 0 and 100, got %d", c.Payment.FeePercentage)
	}
	if c.Payment.AmountMultiplier < 1 {
		return errors.Errorf("PAYMENT_AMOUNT_MULTIPLIER must be at least 1, got %d", c.Payment.AmountMultiplier)
	}
	switch c.SQL.Driver {
	case db.DriverMySQL, db.DriverPostgres:
	default:
		return errors.Errorf("DATA_BASE_DRIVER must be %s or %s, got %q", db.DriverMySQL, db.DriverPostgres, c.SQL.Driver)
	}
	if c.Reconcile.OrphanPaymentTTLMinutes < 1 {
		return errors.Errorf("ORPHAN_PAYMENT_TTL_MINUTES must be positive, got %d", c.Reconcile.OrphanPaymentTTLMinutes)
	}
	return nil
}

func (c *Configuration) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func (c *Configuration) SuccessURL() string {
	return strings.TrimRight(c.ClientURL, "/") + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
}

func (c *Configuration) CancelURL() string {
	return strings.TrimRight(c.ClientURL, "/") + "/payment/cancel"
}

type AppContext struct {
	Config     Configuration
	SQLConn    *sqlx.DB
	DB         db.Storage
	AwsSMTP    *gomail.Dialer
	AwsSession *session.Session
	Stripe     *gateway.Stripe
	Settlement *settlement.Service
	Receipts   *events.ReceiptListener
	Registry   *prometheus.Registry
}

// DataSourceName builds the DSN of conf for its driver.
func DataSourceName(conf database) string {
	if conf.Driver == db.DriverPostgres {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			conf.URL, conf.Port, conf.User, conf.Password, conf.Name, conf.SSLMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC", conf.User, conf.Password, conf.URL, strconv.Itoa(conf.Port), conf.Name)
}

func CreateConnectionSQL(conf database) (*sqlx.DB, error) {
	connection, err := sqlx.Open(conf.Driver, DataSourceName(conf))
	if err != nil {
		return nil, err
	}
	connection.SetMaxOpenConns(conf.OpenConnection)
	return connection, nil
}

func CreateNewConnectionSMTP(conf awsSMTP) *gomail.Dialer {
	if conf.SMTPHost == "" {
		return nil
	}
	return gomail.NewDialer(conf.SMTPHost, conf.SMTPPort, conf.SMTPUser, conf.SMTPPassword)
}

func CreateStripeIntegration(conf Configuration) *gateway.Stripe {
	return gateway.NewStripe(gateway.StripeConfig{
		SecretKey:     conf.Stripe.SecretKey,
		WebhookSecret: conf.Stripe.WebhookSecret,
		Currency:      conf.Payment.Currency,
		Multiplier:    conf.Payment.AmountMultiplier,
	})
}

func CreateNewAwsSession(conf awsS3) (*session.Session, error) {
	return session.NewSession(&aws.Config{Region: aws.String(conf.S3Region)})
}
