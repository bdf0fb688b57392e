package config

const (
	EnvPrefix = "CONSULTLY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "CONSULTLY_APP_ENV"
	EnvPort     = "CONSULTLY_APP_PORT"
	EnvLogLevel = "CONSULTLY_LOG_LEVEL"

	EnvDBDSN  = "CONSULTLY_DB_DSN"
	EnvDBHost = "CONSULTLY_DB_HOST"
	EnvDBUser = "CONSULTLY_DB_USER"
	EnvDBName = "CONSULTLY_DB_NAME"

	EnvRedisURL = "CONSULTLY_REDIS_URL"

	EnvJWTSecret  = "CONSULTLY_JWT_SECRET"
	EnvJWTIssuer  = "CONSULTLY_JWT_ISSUER"
	EnvJWTExpMins = "CONSULTLY_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "CONSULTLY_USE_SQLITE"

	EnvBookingMaxSchedules = "CONSULTLY_BOOKING_MAX_ACTIVE_SCHEDULES"
	EnvBookingMaxExpand    = "CONSULTLY_BOOKING_MAX_EXPAND_INSTANTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
