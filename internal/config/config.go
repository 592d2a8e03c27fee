package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	DataPath   string `envconfig:"DATA_PATH" default:"/app/data"`
	LogPath    string `envconfig:"LOG_PATH" default:""`

	// Forwarding target defaults
	DefaultNamespace string `envconfig:"KUBECTL_NAMESPACE" default:"argocd"`
	DefaultPort      int    `envconfig:"DEFAULT_POD_PORT" default:"8080"`

	// Executor settings
	KubectlPath string        `envconfig:"KUBECTL_PATH" default:"kubectl"`
	BindAddress string        `envconfig:"BIND_ADDRESS" default:"0.0.0.0"`
	StartupWait time.Duration `envconfig:"STARTUP_WAIT" default:"1s"`
	GracePeriod time.Duration `envconfig:"GRACE_PERIOD" default:"5s"`

	// Session settings
	SessionLifetime time.Duration `envconfig:"FORWARD_TIMEOUT" default:"1h"`
	PortRangeStart  int           `envconfig:"PORT_RANGE_START" default:"9000"`
	PortRangeEnd    int           `envconfig:"PORT_RANGE_END" default:"9999"`

	// Reconciler settings
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`

	// Optional static bearer token; empty means requests are not rejected,
	// only logged as unauthenticated.
	AuthToken string `envconfig:"AUTH_TOKEN" default:""`

	// Optional YAML file with preset forward targets
	ProfilesPath string `envconfig:"PROFILES_PATH" default:""`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("PODFORWARD", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
