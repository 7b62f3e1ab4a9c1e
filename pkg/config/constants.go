package config

// EnvPrefix namespaces every environment variable read by the service.
const EnvPrefix = "NINOWASH"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "NINOWASH_APP_ENV"
	EnvPort   = "NINOWASH_APP_PORT"

	EnvDBDSN  = "NINOWASH_DB_DSN"
	EnvDBHost = "NINOWASH_DB_HOST"
	EnvDBUser = "NINOWASH_DB_USER"
	EnvDBName = "NINOWASH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
