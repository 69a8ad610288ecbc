package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "CERTTRACKER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CERTTRACKER_DB_DSN"
	EnvDBHost = "CERTTRACKER_DB_HOST"
	EnvDBUser = "CERTTRACKER_DB_USER"
	EnvDBName = "CERTTRACKER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
