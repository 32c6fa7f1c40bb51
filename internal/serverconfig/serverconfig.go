package serverconfig

import (
	"errors"
	"flag"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type ConfigStore struct {
	FlagRunAddr   string        `env:"RUN_ADDRESS" envDefault:":8001"`
	FlagDatabase  string        `env:"DATABASE_URI"`
	FlagLogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
	FlagJWTSecret string        `env:"JWT_SECRET"`
	FlagInvoices  string        `env:"INVOICE_DIR" envDefault:"public/invoices"`
	FlagPublicURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8001"`
	InvoicePrefix string        `env:"INVOICE_PREFIX" envDefault:"ANTIA"`
	MinimumCents  int64         `env:"MIN_WITHDRAWAL_CENTS" envDefault:"500"`
	Currency      string        `env:"CURRENCY" envDefault:"EUR"`
	WebhookURL    string        `env:"NOTIFY_WEBHOOK_URL"`
	QueueSize     int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"64"`
	Timeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

// ParseFlags loads a .env file if present, then the environment, then command line
// arguments. A flag given explicitly wins over the environment.
func (configStore *ConfigStore) ParseFlags(name string, args []string) error {
	_ = godotenv.Load()

	if err := env.Parse(configStore); err != nil {
		return err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&configStore.FlagRunAddr, "a", configStore.FlagRunAddr, "address and port to run server")
	fs.StringVar(&configStore.FlagDatabase, "d", configStore.FlagDatabase, "data for connecting to db")
	fs.StringVar(&configStore.FlagLogLevel, "l", configStore.FlagLogLevel, "log level")
	fs.StringVar(&configStore.FlagJWTSecret, "s", configStore.FlagJWTSecret, "secret used to verify bearer tokens")
	fs.StringVar(&configStore.FlagInvoices, "i", configStore.FlagInvoices, "directory invoices are written to")
	fs.StringVar(&configStore.FlagPublicURL, "b", configStore.FlagPublicURL, "public base url of this service")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return configStore.Validate()
}

func (configStore *ConfigStore) Validate() error {
	var err error
	if configStore.FlagDatabase == "" {
		err = multierr.Append(err, errors.New("DATABASE_URI (-d) must be set"))
	}
	if configStore.FlagJWTSecret == "" {
		err = multierr.Append(err, errors.New("JWT_SECRET (-s) must be set"))
	}
	if configStore.MinimumCents <= 0 {
		err = multierr.Append(err, errors.New("MIN_WITHDRAWAL_CENTS must be positive"))
	}
	if configStore.Timeout <= 0 {
		err = multierr.Append(err, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	return err
}
